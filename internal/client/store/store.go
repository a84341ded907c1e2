// Package store owns the canonical in-memory collection of collaborative
// records, one ordered list per conversation. It applies local optimistic
// mutations, merges inbound confirmations and broadcasts, and persists every
// result to the expiring cache so a restart within the TTL resumes warm.
//
// All mutating methods are synchronous and never touch the network except
// through the retrying sender, which is fire-and-forget.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/collabdesk/collabdesk/internal/client/cache"
	"github.com/collabdesk/collabdesk/internal/client/correlate"
	"github.com/collabdesk/collabdesk/internal/client/models"
	"github.com/collabdesk/collabdesk/internal/client/sender"
	"github.com/collabdesk/collabdesk/internal/logging"
	"github.com/collabdesk/collabdesk/internal/telemetry"
)

// Store is the reconciliation store. Methods are safe for concurrent use;
// in practice mutations come from the UI goroutine and the inbound pump.
type Store struct {
	cache  cache.Cache
	sender *sender.Sender
	log    logging.Logger
	ttl    time.Duration
	userID string

	mu            sync.Mutex
	conversations map[string][]*models.Record
	// excluded holds tombstoned identities per conversation for the
	// lifetime of the session, so a stale pre-delete broadcast cannot
	// resurrect a deleted record.
	excluded map[string]map[string]bool
	readAt   map[string]string // conversationKey -> RFC 3339 mark-read time
	subs     map[string]map[int]func([]*models.Record)
	nextSub  int
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the cache TTL used for persisted conversations.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithUserID sets the local user id stamped onto outbound reaction toggles.
func WithUserID(id string) Option {
	return func(s *Store) { s.userID = id }
}

// New returns an empty Store persisting through c and transmitting through
// snd. Either may be nil in tests that do not exercise that side.
func New(c cache.Cache, snd *sender.Sender, log logging.Logger, opts ...Option) *Store {
	s := &Store{
		cache:         c,
		sender:        snd,
		log:           log,
		ttl:           cache.DefaultTTL,
		conversations: make(map[string][]*models.Record),
		excluded:      make(map[string]map[string]bool),
		readAt:        make(map[string]string),
		subs:          make(map[string]map[int]func([]*models.Record)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Records returns the live (non-tombstoned) view of a conversation. The
// returned slice is a copy; the records are shared.
func (s *Store) Records(conversationKey string) []*models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked(conversationKey)
}

func (s *Store) liveLocked(conversationKey string) []*models.Record {
	all := s.conversations[conversationKey]
	out := make([]*models.Record, 0, len(all))
	for _, r := range all {
		if !r.Tombstoned {
			out = append(out, r)
		}
	}
	return out
}

// UnreadCount returns the number of live records not yet marked read.
func (s *Store) UnreadCount(conversationKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.conversations[conversationKey] {
		if !r.Tombstoned && !r.Read {
			n++
		}
	}
	return n
}

// PendingRecords returns all records still awaiting confirmation, across
// every conversation. Used by the reconnect replay.
func (s *Store) PendingRecords() []*models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Record
	for _, records := range s.conversations {
		for _, r := range records {
			if r.Pending && !r.Tombstoned {
				out = append(out, r)
			}
		}
	}
	return out
}

// Subscribe registers fn to be called synchronously, with the live view,
// after every mutation of conversationKey. Returns an unsubscribe function.
func (s *Store) Subscribe(conversationKey string, fn func([]*models.Record)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[conversationKey] == nil {
		s.subs[conversationKey] = make(map[int]func([]*models.Record))
	}
	id := s.nextSub
	s.nextSub++
	s.subs[conversationKey][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[conversationKey], id)
	}
}

// ApplyOptimistic merges a locally created or edited record into its
// conversation, persists the result and returns immediately. It never
// blocks on the network.
func (s *Store) ApplyOptimistic(ctx context.Context, rec *models.Record) {
	s.applyRecord(ctx, rec)
}

// ApplyInbound merges a record delivered by the push stream: either the
// server's confirmation of a just-sent record (correlated through the
// provisional id carried in the payload) or another participant's
// broadcast.
func (s *Store) ApplyInbound(ctx context.Context, rec *models.Record) {
	s.applyRecord(ctx, rec)
}

func (s *Store) applyRecord(ctx context.Context, rec *models.Record) {
	if rec == nil || rec.ConversationKey == "" {
		return
	}
	key := rec.ConversationKey

	s.mu.Lock()
	merged := correlate.MergeAndDedupe(s.conversations[key], []*models.Record{rec}, s.excluded[key])
	s.conversations[key] = merged
	live, subs := s.snapshotLocked(key)
	s.mu.Unlock()

	telemetry.RecordsMerged.Inc()
	s.persist(ctx, key)
	notify(subs, live)
}

// ApplyTombstone removes the record with the given identity from the live
// list and remembers the identity in the conversation's excluded set.
func (s *Store) ApplyTombstone(ctx context.Context, conversationKey, identity string) {
	s.mu.Lock()
	if s.excluded[conversationKey] == nil {
		s.excluded[conversationKey] = make(map[string]bool)
	}
	s.excluded[conversationKey][identity] = true

	records := s.conversations[conversationKey]
	kept := make([]*models.Record, 0, len(records))
	for _, r := range records {
		if r.Identity() == identity || r.ProvisionalID == identity {
			// reserve every identity the record was known under
			if r.ConfirmedID != "" {
				s.excluded[conversationKey][r.ConfirmedID] = true
			}
			if r.ProvisionalID != "" {
				s.excluded[conversationKey][r.ProvisionalID] = true
			}
			continue
		}
		kept = append(kept, r)
	}
	s.conversations[conversationKey] = kept
	live, subs := s.snapshotLocked(conversationKey)
	s.mu.Unlock()

	s.persist(ctx, conversationKey)
	notify(subs, live)
}

// ToggleReaction locates the record by identity across all locally held
// conversations (a reaction event does not always carry a conversation key
// reliably), symmetric-differences userID in the emoji's set and transmits a
// toggleReaction message. Fire-and-forget: no rollback path exists if the
// send ultimately fails; the operation is idempotent and safely retried by
// the user re-clicking.
func (s *Store) ToggleReaction(ctx context.Context, identity, emoji, userID string) {
	key, ok := s.applyReaction(ctx, identity, emoji, userID)
	if !ok || s.sender == nil {
		return
	}

	ct, id, _ := models.SplitConversationKey(key)
	env := &models.Envelope{
		Action:           models.ActionToggleReaction,
		ConversationType: ct,
		ConversationID:   id,
		Identity:         identity,
		Emoji:            emoji,
		UserID:           userID,
	}
	if err := s.sender.TrySend(ctx, env); err != nil {
		s.log.Warn(ctx, "failed to queue reaction toggle", "identity", identity, "error", err)
	}
}

// ApplyReactionInbound applies a peer's reaction toggle without echoing it
// back out.
func (s *Store) ApplyReactionInbound(ctx context.Context, identity, emoji, userID string) {
	s.applyReaction(ctx, identity, emoji, userID)
}

func (s *Store) applyReaction(ctx context.Context, identity, emoji, userID string) (string, bool) {
	s.mu.Lock()
	var key string
	var target *models.Record
	for k, records := range s.conversations {
		for _, r := range records {
			if r.Identity() == identity || r.ProvisionalID == identity {
				key, target = k, r
				break
			}
		}
		if target != nil {
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		s.log.Debug(ctx, "reaction for unknown record", "identity", identity)
		return "", false
	}
	if target.Reactions == nil {
		target.Reactions = make(models.ReactionSet)
	}
	target.Reactions.Toggle(emoji, userID)
	live, subs := s.snapshotLocked(key)
	s.mu.Unlock()

	s.persist(ctx, key)
	notify(subs, live)
	return key, true
}

// MarkRead marks every live record in the conversation read, persists the
// read watermark and notifies the backend.
func (s *Store) MarkRead(ctx context.Context, conversationKey string) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	s.mu.Lock()
	for _, r := range s.conversations[conversationKey] {
		r.Read = true
	}
	s.readAt[conversationKey] = now
	live, subs := s.snapshotLocked(conversationKey)
	s.mu.Unlock()

	s.persist(ctx, conversationKey)
	s.persistReadStatus(ctx)
	notify(subs, live)

	if s.sender != nil {
		ct, id, _ := models.SplitConversationKey(conversationKey)
		env := &models.Envelope{Action: models.ActionMarkRead, ConversationType: ct, ConversationID: id, UserID: s.userID}
		if err := s.sender.TrySend(ctx, env); err != nil {
			s.log.Warn(ctx, "failed to queue markRead", "conversation", conversationKey, "error", err)
		}
	}
}

func (s *Store) snapshotLocked(conversationKey string) ([]*models.Record, []func([]*models.Record)) {
	live := s.liveLocked(conversationKey)
	subs := make([]func([]*models.Record), 0, len(s.subs[conversationKey]))
	for _, fn := range s.subs[conversationKey] {
		subs = append(subs, fn)
	}
	return live, subs
}

// notify runs outside the store lock so a callback may re-enter the store.
func notify(subs []func([]*models.Record), live []*models.Record) {
	for _, fn := range subs {
		fn(live)
	}
}
