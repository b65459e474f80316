package namespace

import (
	"github.com/andresuchdata/tutorstore/internal/domain"
	"github.com/google/uuid"
)

// Dedupe drops items whose id was already seen, and items with the same
// container, lowercased title and display size as an earlier one. Items
// without an id get a fresh one. Children of a dropped folder are moved into
// the folder that was kept, which may in turn expose new duplicates, so
// passes repeat until nothing changes. Order of the survivors is preserved.
func Dedupe(items []domain.StorageItem) []domain.StorageItem {
	return dedupe(items, uuid.NewString)
}

func dedupe(items []domain.StorageItem, newID func() string) []domain.StorageItem {
	for {
		var merged bool
		items, merged = dedupePass(items, newID)
		if !merged {
			return items
		}
	}
}

// dedupePass returns the survivors and whether any item was reparented.
// Each reparenting follows a drop, so repeated passes terminate.
func dedupePass(items []domain.StorageItem, newID func() string) ([]domain.StorageItem, bool) {
	seenIDs := make(map[string]struct{}, len(items))
	keptBySig := make(map[string]int, len(items))
	alias := make(map[string]string)
	out := make([]domain.StorageItem, 0, len(items))

	for _, it := range items {
		if it.ID == "" {
			it.ID = newID()
		}
		if _, dup := seenIDs[it.ID]; dup {
			continue
		}
		seenIDs[it.ID] = struct{}{}
		sig := it.Signature()
		if idx, dup := keptBySig[sig]; dup {
			if kept := out[idx]; it.IsFolder() && kept.IsFolder() {
				alias[it.ID] = kept.ID
			}
			continue
		}
		keptBySig[sig] = len(out)
		out = append(out, it)
	}

	merged := false
	for i := range out {
		if target, ok := alias[out[i].ParentID]; ok {
			out[i].ParentID = target
			merged = true
		}
	}
	return out, merged
}
