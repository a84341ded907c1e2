// Package correlate implements the identity correlation used during
// reconciliation: pure, order-stable functions that deduplicate and merge
// record lists keyed by record identity.
package correlate

import "github.com/collabdesk/collabdesk/internal/client/models"

// DedupeByID walks records in order and keeps the first occurrence of each
// identity, dropping later duplicates. Used when a single source list might
// legitimately contain repeats, e.g. a page re-fetch overlapping a previous
// one. Nil input yields nil.
func DedupeByID(records []*models.Record) []*models.Record {
	if len(records) == 0 {
		return nil
	}
	out := make([]*models.Record, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		id := r.Identity()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, r)
	}
	return out
}

// MergeAndDedupe merges incoming into existing. For each identity the last
// occurrence wins, so an incoming confirmed or edited version supersedes an
// existing provisional or stale one, while the position of first appearance
// is preserved: a record never moves in the list when it is confirmed in
// place.
//
// Correlation goes both ways: an incoming record that carries the
// ProvisionalID of an existing provisional record resolves it (the record
// gains its ConfirmedID and stops being pending, at the same position).
//
// Identities present in excluded (tombstones) are dropped, never merged.
// Nil inputs are treated as empty.
func MergeAndDedupe(existing, incoming []*models.Record, excluded map[string]bool) []*models.Record {
	out := make([]*models.Record, 0, len(existing)+len(incoming))
	pos := make(map[string]int, len(existing)+len(incoming))

	place := func(r *models.Record) {
		if r == nil {
			return
		}
		if excluded[r.Identity()] || (r.ProvisionalID != "" && excluded[r.ProvisionalID]) {
			return
		}
		if i, ok := pos[r.Identity()]; ok {
			out[i] = supersede(out[i], r)
			indexAt(pos, out[i], i)
			return
		}
		if r.ProvisionalID != "" {
			if i, ok := pos[r.ProvisionalID]; ok {
				out[i] = supersede(out[i], r)
				indexAt(pos, out[i], i)
				return
			}
		}
		out = append(out, r)
		indexAt(pos, r, len(out)-1)
	}

	for _, r := range existing {
		place(r)
	}
	for _, r := range incoming {
		place(r)
	}
	return out
}

func indexAt(pos map[string]int, r *models.Record, i int) {
	pos[r.Identity()] = i
	if r.ProvisionalID != "" {
		pos[r.ProvisionalID] = i
	}
}

// supersede resolves a duplicate identity in favour of next (last occurrence
// wins), carrying over the fields that only the local copy knows about.
func supersede(prev, next *models.Record) *models.Record {
	merged := next.Clone()
	if merged.ProvisionalID == "" {
		merged.ProvisionalID = prev.ProvisionalID
	}
	if merged.ConversationKey == "" {
		merged.ConversationKey = prev.ConversationKey
	}
	if merged.ConfirmedID != "" {
		merged.Pending = false
	}
	// Read state is local-only; an inbound broadcast must not reset it.
	if prev.Read {
		merged.Read = true
	}
	return merged
}
