// Package models defines the client-side data types shared by the sync
// layer: collaborative records, reaction sets, and the wire envelope.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConversationType distinguishes direct-message threads from project threads.
type ConversationType string

const (
	ConversationDM      ConversationType = "dm"
	ConversationProject ConversationType = "project"
)

// ConversationKeyFor builds the partition key for a conversation,
// e.g. "project#42" or "dm#alice".
func ConversationKeyFor(ct ConversationType, id string) string {
	return fmt.Sprintf("%s#%s", ct, id)
}

// SplitConversationKey is the inverse of ConversationKeyFor. The second
// return value is false when the key has no "#" separator.
func SplitConversationKey(key string) (ConversationType, string, bool) {
	t, id, ok := strings.Cut(key, "#")
	if !ok {
		return "", "", false
	}
	return ConversationType(t), id, true
}

// ReactionSet maps an emoji to the set of user ids that reacted with it.
// Membership is a set: toggling the same (emoji, user) pair twice returns
// the set to its original state.
type ReactionSet map[string]map[string]bool

// Toggle symmetric-differences userID into or out of the emoji's set and
// reports the resulting membership.
func (rs ReactionSet) Toggle(emoji, userID string) bool {
	users := rs[emoji]
	if users == nil {
		users = make(map[string]bool)
		rs[emoji] = users
	}
	if users[userID] {
		delete(users, userID)
		if len(users) == 0 {
			delete(rs, emoji)
		}
		return false
	}
	users[userID] = true
	return true
}

// Has reports whether userID is in the emoji's set.
func (rs ReactionSet) Has(emoji, userID string) bool {
	return rs[emoji][userID]
}

// Count returns the number of users that reacted with emoji.
func (rs ReactionSet) Count(emoji string) int {
	return len(rs[emoji])
}

// Clone returns a deep copy.
func (rs ReactionSet) Clone() ReactionSet {
	if rs == nil {
		return nil
	}
	out := make(ReactionSet, len(rs))
	for emoji, users := range rs {
		cp := make(map[string]bool, len(users))
		for u := range users {
			cp[u] = true
		}
		out[emoji] = cp
	}
	return out
}

// Record is one collaborative item: a chat message, a timeline event or a
// budget line. All three share the same reconciliation mechanics, so they
// share one type; domain fields live in Payload.
type Record struct {
	// ConfirmedID is assigned by the backend once the record is durably
	// stored. Empty while the record is provisional.
	ConfirmedID string `json:"id,omitempty"`

	// ProvisionalID is generated on the client at creation time and never
	// changes afterwards.
	ProvisionalID string `json:"provisionalId,omitempty"`

	// ConversationKey is the partition key, see ConversationKeyFor.
	ConversationKey string `json:"conversationKey"`

	// Timestamp is assigned by the client at creation (RFC 3339) and is
	// never revised by later edits.
	Timestamp string `json:"timestamp"`

	// Payload carries the domain fields (text, file reference, hours,
	// costs, ...). Opaque to the sync layer.
	Payload map[string]any `json:"payload,omitempty"`

	Reactions ReactionSet `json:"reactions,omitempty"`

	Edited   bool   `json:"edited,omitempty"`
	EditedAt string `json:"editedAt,omitempty"`

	// Tombstoned marks a soft-deleted record. Tombstoned records are
	// filtered from display but their identity stays reserved so a late
	// duplicate cannot resurrect them.
	Tombstoned bool `json:"tombstoned,omitempty"`

	// Pending is true while the record awaits transport confirmation.
	Pending bool `json:"pending,omitempty"`

	Read bool `json:"read,omitempty"`
}

// NewProvisional creates a pending record with a fresh provisional identity
// (millisecond timestamp plus a random suffix) and a client-assigned
// creation timestamp.
func NewProvisional(conversationKey string, payload map[string]any) *Record {
	now := time.Now().UTC()
	return &Record{
		ProvisionalID:   fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()),
		ConversationKey: conversationKey,
		Timestamp:       now.Format(time.RFC3339Nano),
		Payload:         payload,
		Pending:         true,
	}
}

// Identity returns the key by which two representations of the same logical
// record are recognised during merge: the confirmed id when present,
// otherwise the provisional one.
func (r *Record) Identity() string {
	if r.ConfirmedID != "" {
		return r.ConfirmedID
	}
	return r.ProvisionalID
}

// Clone returns a deep copy. Used for history snapshots so stack entries
// never alias the live collection.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Payload != nil {
		cp.Payload = make(map[string]any, len(r.Payload))
		for k, v := range r.Payload {
			cp.Payload[k] = v
		}
	}
	cp.Reactions = r.Reactions.Clone()
	return &cp
}

// CloneRecords deep-copies a record list.
func CloneRecords(records []*Record) []*Record {
	if records == nil {
		return nil
	}
	out := make([]*Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
