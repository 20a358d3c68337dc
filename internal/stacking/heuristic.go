package stacking

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/picksy/desktop/internal/contract"
)

// MaxSuffixGap is the largest difference between consecutive numeric
// suffixes that still counts as the same burst.
const MaxSuffixGap = 3

var (
	extensionPattern    = regexp.MustCompile(`\.[^/.]+$`)
	compactDatePattern  = regexp.MustCompile(`\b(20\d{2}[01]\d[0-3]\d)\b`)
	dashedDatePattern   = regexp.MustCompile(`\b(20\d{2}-[01]\d-[0-3]\d)\b`)
	numericSuffix       = regexp.MustCompile(`(\d+)\s*$`)
	suffixWithSeparator = regexp.MustCompile(`[\s_-]*\d+$`)
)

// Signature is the grouping key derived from a filename.
type Signature struct {
	Key       string
	Suffix    float64
	HasSuffix bool
}

// FilenameSignature lowercases name, drops its extension, and keys it by the
// remaining base plus any embedded date. A trailing number becomes the
// suffix.
func FilenameSignature(name string) Signature {
	lower := strings.ToLower(name)
	stem := extensionPattern.ReplaceAllString(lower, "")

	date := ""
	if m := compactDatePattern.FindStringSubmatch(stem); m != nil {
		date = m[1]
	} else if m := dashedDatePattern.FindStringSubmatch(stem); m != nil {
		date = m[1]
	}

	var sig Signature
	if m := numericSuffix.FindStringSubmatch(stem); m != nil {
		// digit runs always parse; very long ones lose precision like any float
		sig.Suffix, _ = strconv.ParseFloat(m[1], 64)
		sig.HasSuffix = true
	}

	base := strings.TrimSpace(suffixWithSeparator.ReplaceAllString(stem, ""))
	sig.Key = base
	if date != "" {
		sig.Key = base + "|" + date
	}
	return sig
}

type candidate struct {
	photo contract.Photo
	sig   Signature
}

// HeuristicStacks proposes stacks among the unstacked photos. Photos sharing
// a signature key form one candidate, unless every one of them has a numeric
// suffix: then they are sorted by suffix and split wherever consecutive
// suffixes differ by more than MaxSuffixGap. Only candidates of two or more
// photos are returned, in order of each key's first appearance.
func HeuristicStacks(photos []contract.Photo) [][]contract.Photo {
	var order []string
	byKey := make(map[string][]candidate)
	for _, p := range photos {
		if p.InStack() {
			continue
		}
		sig := FilenameSignature(p.Filename)
		if _, ok := byKey[sig.Key]; !ok {
			order = append(order, sig.Key)
		}
		byKey[sig.Key] = append(byKey[sig.Key], candidate{photo: p.Clone(), sig: sig})
	}

	var groups [][]contract.Photo
	for _, key := range order {
		entries := byKey[key]
		if len(entries) < 2 {
			continue
		}

		allSuffixed := true
		for _, e := range entries {
			if !e.sig.HasSuffix {
				allSuffixed = false
				break
			}
		}
		if !allSuffixed {
			groups = append(groups, photosOf(entries))
			continue
		}

		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].sig.Suffix < entries[j].sig.Suffix
		})
		run := []candidate{entries[0]}
		for i := 1; i < len(entries); i++ {
			if entries[i].sig.Suffix-entries[i-1].sig.Suffix <= MaxSuffixGap {
				run = append(run, entries[i])
				continue
			}
			if len(run) >= 2 {
				groups = append(groups, photosOf(run))
			}
			run = []candidate{entries[i]}
		}
		if len(run) >= 2 {
			groups = append(groups, photosOf(run))
		}
	}
	return groups
}

func photosOf(entries []candidate) []contract.Photo {
	out := make([]contract.Photo, len(entries))
	for i, e := range entries {
		out[i] = e.photo
	}
	return out
}

// SortByFilename orders a candidate the way auto-stacking commits it: the
// first photo becomes the primary.
func SortByFilename(group []contract.Photo) []contract.Photo {
	out := make([]contract.Photo, len(group))
	copy(out, group)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Filename), strings.ToLower(out[j].Filename)
		if a != b {
			return a < b
		}
		return out[i].Filename < out[j].Filename
	})
	return out
}

