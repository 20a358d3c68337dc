package stacking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picksy/desktop/internal/contract"
)

func photo(id, filename string) contract.Photo {
	return contract.Photo{ID: id, Filename: filename, ImagePath: "/" + filename}
}

func stacked(p contract.Photo, stackID string, primary bool) contract.Photo {
	p.StackID = contract.StringPtr(stackID)
	p.IsStackPrimary = primary
	return p
}

func filenames(groups [][]contract.Photo) [][]string {
	out := make([][]string, len(groups))
	for i, g := range groups {
		for _, p := range g {
			out[i] = append(out[i], p.Filename)
		}
	}
	return out
}

func ids(photos []contract.Photo) []string {
	return contract.Photos(photos).IDs()
}

func TestHeuristicStacks(t *testing.T) {
	t.Run("splits bursts on suffix gaps", func(t *testing.T) {
		photos := []contract.Photo{
			photo("1", "IMG_2024.jpg"),
			photo("2", "IMG_2025.jpg"),
			photo("3", "IMG_2100.jpg"),
			photo("4", "vacation.png"),
		}

		groups := HeuristicStacks(photos)

		assert.Equal(t, [][]string{{"IMG_2024.jpg", "IMG_2025.jpg"}}, filenames(groups))
	})

	t.Run("is deterministic across runs", func(t *testing.T) {
		photos := []contract.Photo{
			photo("a", "beach-3.jpg"), photo("b", "beach-1.jpg"),
			photo("c", "dsc_10.jpg"), photo("d", "dsc_12.jpg"), photo("e", "dsc_30.jpg"), photo("f", "dsc_31.jpg"),
		}

		first := filenames(HeuristicStacks(photos))
		for i := 0; i < 20; i++ {
			assert.Equal(t, first, filenames(HeuristicStacks(photos)))
		}
		assert.Equal(t, [][]string{
			{"beach-1.jpg", "beach-3.jpg"},
			{"dsc_10.jpg", "dsc_12.jpg"},
			{"dsc_30.jpg", "dsc_31.jpg"},
		}, first)
	})

	t.Run("mixed suffix presence yields one candidate", func(t *testing.T) {
		photos := []contract.Photo{
			photo("a", "Party.jpg"),
			photo("b", "party 7.png"),
			photo("c", "party_90.heic"),
		}

		assert.Equal(t, [][]string{{"Party.jpg", "party 7.png", "party_90.heic"}}, filenames(HeuristicStacks(photos)))
	})

	t.Run("dates separate otherwise equal bases", func(t *testing.T) {
		photos := []contract.Photo{
			photo("a", "trip 2024-06-01 1.jpg"),
			photo("b", "trip 2024-06-01 2.jpg"),
			photo("c", "trip 2024-07-01 3.jpg"),
		}

		groups := HeuristicStacks(photos)

		require.Len(t, groups, 1)
		assert.Equal(t, []string{"a", "b"}, ids(groups[0]))
	})

	t.Run("ignores photos already in a stack", func(t *testing.T) {
		photos := []contract.Photo{
			stacked(photo("a", "IMG_1.jpg"), "s", true),
			photo("b", "IMG_2.jpg"),
		}

		assert.Empty(t, HeuristicStacks(photos))
	})
}

func TestFilenameSignature(t *testing.T) {
	cases := []struct {
		name   string
		key    string
		suffix float64
		has    bool
	}{
		{"IMG_2024.JPG", "img", 2024, true},
		{"vacation.png", "vacation", 0, false},
		{"scan 2023-12-24.tiff", "scan 2023-12|2023-12-24", 24, true},
		{"shot-20240102.jpg", "shot|20240102", 20240102, true},
		{"archive.tar.gz", "archive.tar", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sig := FilenameSignature(tc.name)
			assert.Equal(t, tc.key, sig.Key)
			assert.Equal(t, tc.has, sig.HasSuffix)
			assert.Equal(t, tc.suffix, sig.Suffix)
		})
	}
}

func TestDisplayPhotos(t *testing.T) {
	t.Run("one representative per stack in encounter order", func(t *testing.T) {
		photos := []contract.Photo{
			stacked(photo("a", "a.jpg"), "s1", false),
			photo("b", "b.jpg"),
			stacked(photo("c", "c.jpg"), "s1", true),
			stacked(photo("d", "d.jpg"), "s2", false),
			stacked(photo("e", "e.jpg"), "s2", false),
		}

		display := DisplayPhotos(photos)

		assert.Equal(t, []string{"c", "b", "d"}, ids(display))
	})

	t.Run("does not alias its input", func(t *testing.T) {
		photos := []contract.Photo{stacked(photo("a", "a.jpg"), "s", true)}
		display := DisplayPhotos(photos)
		*display[0].StackID = "changed"

		assert.Equal(t, "s", *photos[0].StackID)
	})
}

func TestStackGroups(t *testing.T) {
	photos := []contract.Photo{
		stacked(photo("a", "a.jpg"), "s1", true),
		photo("b", "b.jpg"),
		stacked(photo("c", "c.jpg"), "s1", false),
	}

	groups := StackGroups(photos)

	require.Len(t, groups, 1)
	assert.Equal(t, []string{"a", "c"}, ids(groups["s1"]))
	assert.Equal(t, 2, StackSize(photos, "s1"))
	assert.Equal(t, 0, StackSize(photos, ""))
}

func TestAuthors(t *testing.T) {
	withAuthor := func(p contract.Photo, author string) contract.Photo {
		p.AuthorPeerID = contract.StringPtr(author)
		return p
	}
	photos := []contract.Photo{
		withAuthor(photo("a", "a.jpg"), "peer-b"),
		withAuthor(photo("b", "b.jpg"), "peer-a"),
		photo("c", "c.jpg"),
		withAuthor(photo("d", "d.jpg"), "peer-b"),
	}

	assert.Equal(t, []string{"peer-a", "peer-b"}, Authors(photos))
	assert.Equal(t, []string{"a", "d"}, ids(FilterByAuthor(photos, "peer-b")))
	assert.Len(t, FilterByAuthor(photos, AllAuthors), 4)
	assert.Len(t, FilterByAuthor(photos, ""), 4)
}

func TestPatches(t *testing.T) {
	base := []contract.Photo{photo("a", "a.jpg"), photo("b", "b.jpg"), photo("c", "c.jpg")}

	t.Run("assign then clear is a full inverse", func(t *testing.T) {
		assigned := Assign(base, []string{"a", "b"}, "s", "b")
		require.Equal(t, "s", assigned[0].StackKey())
		assert.False(t, assigned[0].IsStackPrimary)
		assert.True(t, assigned[1].IsStackPrimary)
		assert.False(t, assigned[2].InStack())

		cleared := Clear(assigned, []string{"a", "b"})
		for _, p := range cleared {
			assert.Nil(t, p.StackID, p.ID)
			assert.False(t, p.IsStackPrimary, p.ID)
		}
	})

	t.Run("adding to a stack with a new primary demotes the old one", func(t *testing.T) {
		photos := Assign(base, []string{"a", "b"}, "s", "a")
		photos = Assign(photos, []string{"c"}, "s", "c")

		assert.Empty(t, PrimaryViolations(photos))
		assert.Equal(t, []string{"c"}, primaries(photos))
	})

	t.Run("adding without the primary keeps the existing one", func(t *testing.T) {
		photos := Assign(base, []string{"a", "b"}, "s", "a")
		photos = Assign(photos, []string{"c"}, "s", "a")

		assert.Equal(t, []string{"a"}, primaries(photos))
	})

	t.Run("set primary re-picks within the stack only", func(t *testing.T) {
		photos := Assign(base, []string{"a", "b"}, "s", "a")

		repicked := SetPrimary(photos, "s", "b")
		assert.Equal(t, []string{"b"}, primaries(repicked))

		unchanged := SetPrimary(photos, "s", "c")
		assert.Equal(t, []string{"a"}, primaries(unchanged))
	})

	t.Run("patches leave the input untouched", func(t *testing.T) {
		_ = Assign(base, []string{"a"}, "s", "a")
		assert.False(t, base[0].InStack())
	})

	t.Run("violations report stacks with two primaries", func(t *testing.T) {
		photos := []contract.Photo{
			stacked(photo("a", "a.jpg"), "s", true),
			stacked(photo("b", "b.jpg"), "s", true),
		}
		assert.Equal(t, []string{"s"}, PrimaryViolations(photos))
	})
}

func primaries(photos []contract.Photo) []string {
	var out []string
	for _, p := range photos {
		if p.IsStackPrimary {
			out = append(out, p.ID)
		}
	}
	return out
}

func TestSortByFilename(t *testing.T) {
	group := []contract.Photo{photo("2", "b.jpg"), photo("1", "A.jpg"), photo("3", "c.jpg")}

	assert.Equal(t, []string{"1", "2", "3"}, ids(SortByFilename(group)))
	assert.Equal(t, "2", group[0].ID)
}
