// Package stacking derives grid views from a photo set. Every function is
// pure: inputs are never modified and results never alias them.
package stacking

import (
	"sort"

	"github.com/picksy/desktop/internal/contract"
)

// AllAuthors disables author filtering.
const AllAuthors = "all"

// StackGroups groups stacked photos by stack id, members in encounter order.
func StackGroups(photos []contract.Photo) map[string][]contract.Photo {
	groups := make(map[string][]contract.Photo)
	for _, p := range photos {
		if !p.InStack() {
			continue
		}
		groups[p.StackKey()] = append(groups[p.StackKey()], p.Clone())
	}
	return groups
}

// DisplayPhotos returns the photos a grid renders: every unstacked photo and
// one representative per stack, in encounter order. The representative is
// the primary member, or the first member when none is primary.
func DisplayPhotos(photos []contract.Photo) []contract.Photo {
	representative := make(map[string]int)
	for i, p := range photos {
		if !p.InStack() {
			continue
		}
		idx, seen := representative[p.StackKey()]
		if !seen || (p.IsStackPrimary && !photos[idx].IsStackPrimary) {
			representative[p.StackKey()] = i
		}
	}

	out := make([]contract.Photo, 0, len(photos))
	emitted := make(map[string]bool)
	for _, p := range photos {
		if !p.InStack() {
			out = append(out, p.Clone())
			continue
		}
		key := p.StackKey()
		if emitted[key] {
			continue
		}
		emitted[key] = true
		out = append(out, photos[representative[key]].Clone())
	}
	return out
}

// StackSize counts the members of stackID.
func StackSize(photos []contract.Photo, stackID string) int {
	if stackID == "" {
		return 0
	}
	n := 0
	for _, p := range photos {
		if p.StackKey() == stackID {
			n++
		}
	}
	return n
}

// FilterByAuthor keeps photos whose author is author. AllAuthors or an empty
// author returns everything.
func FilterByAuthor(photos []contract.Photo, author string) []contract.Photo {
	out := make([]contract.Photo, 0, len(photos))
	for _, p := range photos {
		if author == "" || author == AllAuthors || p.Author() == author {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Authors lists the distinct non-empty author ids, sorted.
func Authors(photos []contract.Photo) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range photos {
		a := p.Author()
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// PrimaryViolations returns the stack ids that have more than one primary.
// Zero primaries is tolerated: a stack can be between assignments.
func PrimaryViolations(photos []contract.Photo) []string {
	primaries := make(map[string]int)
	for _, p := range photos {
		if p.InStack() && p.IsStackPrimary {
			primaries[p.StackKey()]++
		}
	}
	var out []string
	for id, n := range primaries {
		if n > 1 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
