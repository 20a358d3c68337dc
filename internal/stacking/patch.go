package stacking

import "github.com/picksy/desktop/internal/contract"

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Assign puts ids into stackID with primaryID as the representative. When
// primaryID is among ids, members of stackID outside ids lose their primary
// flag so the stack never shows two primaries.
func Assign(photos []contract.Photo, ids []string, stackID, primaryID string) []contract.Photo {
	listed := idSet(ids)
	demote := listed[primaryID]

	out := make([]contract.Photo, len(photos))
	for i, p := range photos {
		p = p.Clone()
		switch {
		case listed[p.ID]:
			p.StackID = contract.StringPtr(stackID)
			p.IsStackPrimary = p.ID == primaryID
		case demote && p.StackKey() == stackID:
			p.IsStackPrimary = false
		}
		out[i] = p
	}
	return out
}

// Clear removes ids from whatever stack they are in.
func Clear(photos []contract.Photo, ids []string) []contract.Photo {
	listed := idSet(ids)
	out := make([]contract.Photo, len(photos))
	for i, p := range photos {
		p = p.Clone()
		if listed[p.ID] {
			p.StackID = nil
			p.IsStackPrimary = false
		}
		out[i] = p
	}
	return out
}

// SetPrimary makes primaryID the representative of stackID. Nothing changes
// unless primaryID is a member of that stack.
func SetPrimary(photos []contract.Photo, stackID, primaryID string) []contract.Photo {
	member := false
	for _, p := range photos {
		if p.ID == primaryID && p.StackKey() == stackID && stackID != "" {
			member = true
			break
		}
	}

	out := make([]contract.Photo, len(photos))
	for i, p := range photos {
		p = p.Clone()
		if member && p.StackKey() == stackID {
			p.IsStackPrimary = p.ID == primaryID
		}
		out[i] = p
	}
	return out
}
