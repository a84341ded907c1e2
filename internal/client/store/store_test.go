package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabdesk/collabdesk/internal/client/cache"
	"github.com/collabdesk/collabdesk/internal/client/models"
	"github.com/collabdesk/collabdesk/internal/client/sender"
	"github.com/collabdesk/collabdesk/internal/logging"
)

// openTransport is always connected and records transmitted envelopes.
type openTransport struct {
	mu   sync.Mutex
	sent []*models.Envelope
}

func (f *openTransport) IsOpen() bool { return true }

func (f *openTransport) Send(data []byte) error {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, &env)
	return nil
}

func (f *openTransport) Subscribe(func(data []byte)) func() { return func() {} }
func (f *openTransport) Close() error                       { return nil }

func (f *openTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *openTransport) lastSent() *models.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func newTestStore(t *testing.T) (*Store, *openTransport, *cache.Memory) {
	t.Helper()
	ft := &openTransport{}
	log := logging.NewNopLogger()
	snd := sender.New(ft, log, sender.WithRetryInterval(time.Millisecond))
	mem := cache.NewMemory()
	return New(mem, snd, log, WithUserID("u1")), ft, mem
}

func TestSendMessage_OptimisticThenConfirmed(t *testing.T) {
	s, ft, _ := newTestStore(t)
	ctx := context.Background()

	rec := s.SendMessage(ctx, models.ConversationProject, "1", map[string]any{"text": "hi"})

	// rendered instantly, still pending
	live := s.Records("project#1")
	require.Len(t, live, 1)
	assert.True(t, live[0].Pending)

	require.Eventually(t, func() bool { return ft.sentCount() == 1 },
		time.Second, time.Millisecond)

	// the confirmation echo correlates through the provisional id
	s.ApplyInbound(ctx, &models.Record{
		ConfirmedID:     "m1",
		ProvisionalID:   rec.ProvisionalID,
		ConversationKey: "project#1",
		Payload:         map[string]any{"text": "hi"},
	})

	live = s.Records("project#1")
	require.Len(t, live, 1)
	assert.Equal(t, "m1", live[0].ConfirmedID)
	assert.False(t, live[0].Pending)
}

func TestApplyInbound_PeerBroadcastAppends(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	s.SendMessage(ctx, models.ConversationProject, "1", map[string]any{"text": "mine"})
	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m2", ConversationKey: "project#1", Payload: map[string]any{"text": "theirs"}})

	live := s.Records("project#1")
	require.Len(t, live, 2)
	assert.Equal(t, "theirs", live[1].Payload["text"])
}

func TestApplyTombstone_BlocksResurrection(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m1", ConversationKey: "dm#a"})
	s.ApplyTombstone(ctx, "dm#a", "m1")
	assert.Empty(t, s.Records("dm#a"))

	// a stale pre-delete broadcast arrives late
	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m1", ConversationKey: "dm#a"})
	assert.Empty(t, s.Records("dm#a"))
}

func TestApplyTombstone_ReservesProvisionalIdentityToo(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	rec := s.SendMessage(ctx, models.ConversationDM, "a", map[string]any{"text": "hi"})
	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m1", ProvisionalID: rec.ProvisionalID, ConversationKey: "dm#a"})
	s.ApplyTombstone(ctx, "dm#a", "m1")

	// stale broadcast still keyed by the provisional id
	s.ApplyInbound(ctx, &models.Record{ProvisionalID: rec.ProvisionalID, ConversationKey: "dm#a"})
	assert.Empty(t, s.Records("dm#a"))
}

func TestDeleteMessage_SendsDeleteEnvelope(t *testing.T) {
	s, ft, _ := newTestStore(t)
	ctx := context.Background()

	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m1", ConversationKey: "project#1"})
	s.DeleteMessage(ctx, "project#1", "m1")

	require.Eventually(t, func() bool { return ft.sentCount() == 1 },
		time.Second, time.Millisecond)
	env := ft.lastSent()
	assert.Equal(t, models.ActionDeleteMessage, env.Action)
	assert.Equal(t, "m1", env.Identity)
}

func TestEditMessage_KeepsIdentityAndTimestamp(t *testing.T) {
	s, ft, _ := newTestStore(t)
	ctx := context.Background()

	s.ApplyInbound(ctx, &models.Record{
		ConfirmedID:     "m1",
		ConversationKey: "project#1",
		Timestamp:       "2026-01-02T03:04:05Z",
		Payload:         map[string]any{"text": "old"},
	})

	ok := s.EditMessage(ctx, "project#1", "m1", map[string]any{"text": "new"})
	require.True(t, ok)

	live := s.Records("project#1")
	require.Len(t, live, 1)
	assert.Equal(t, "new", live[0].Payload["text"])
	assert.True(t, live[0].Edited)
	assert.NotEmpty(t, live[0].EditedAt)
	assert.Equal(t, "2026-01-02T03:04:05Z", live[0].Timestamp, "creation timestamp never revised")

	require.Eventually(t, func() bool { return ft.sentCount() == 1 },
		time.Second, time.Millisecond)
	assert.Equal(t, models.ActionEditMessage, ft.lastSent().Action)

	assert.False(t, s.EditMessage(ctx, "project#1", "missing", nil))
}

func TestToggleReaction_InvolutionAndCrossConversationLookup(t *testing.T) {
	s, ft, _ := newTestStore(t)
	ctx := context.Background()

	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m1", ConversationKey: "dm#a"})
	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m2", ConversationKey: "project#1"})

	// no conversation key supplied: found across all conversations
	s.ToggleReaction(ctx, "m2", "👍", "u1")
	live := s.Records("project#1")
	require.Len(t, live, 1)
	assert.True(t, live[0].Reactions.Has("👍", "u1"))

	require.Eventually(t, func() bool { return ft.sentCount() == 1 },
		time.Second, time.Millisecond)
	env := ft.lastSent()
	assert.Equal(t, models.ActionToggleReaction, env.Action)
	assert.Equal(t, "👍", env.Emoji)

	// toggling again restores the original membership
	s.ToggleReaction(ctx, "m2", "👍", "u1")
	live = s.Records("project#1")
	assert.False(t, live[0].Reactions.Has("👍", "u1"))
}

func TestApplyReactionInbound_DoesNotEcho(t *testing.T) {
	s, ft, _ := newTestStore(t)
	ctx := context.Background()

	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m1", ConversationKey: "dm#a"})
	s.ApplyReactionInbound(ctx, "m1", "🎉", "peer")

	live := s.Records("dm#a")
	require.Len(t, live, 1)
	assert.True(t, live[0].Reactions.Has("🎉", "peer"))

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, ft.sentCount())
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	s, ft, _ := newTestStore(t)
	ctx := context.Background()

	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m1", ConversationKey: "dm#a"})
	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m2", ConversationKey: "dm#a"})
	assert.Equal(t, 2, s.UnreadCount("dm#a"))

	s.MarkRead(ctx, "dm#a")
	assert.Equal(t, 0, s.UnreadCount("dm#a"))

	require.Eventually(t, func() bool { return ft.sentCount() == 1 },
		time.Second, time.Millisecond)
	assert.Equal(t, models.ActionMarkRead, ft.lastSent().Action)
}

func TestSubscribe_NotifiedSynchronously(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	var calls [][]*models.Record
	unsubscribe := s.Subscribe("dm#a", func(live []*models.Record) {
		calls = append(calls, live)
	})

	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m1", ConversationKey: "dm#a"})
	require.Len(t, calls, 1)
	assert.Len(t, calls[0], 1)

	unsubscribe()
	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m2", ConversationKey: "dm#a"})
	assert.Len(t, calls, 1)
}

func TestPendingRecords_ForReplay(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	rec := s.SendMessage(ctx, models.ConversationDM, "a", map[string]any{"text": "hi"})
	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m9", ConversationKey: "dm#a"})

	pending := s.PendingRecords()
	require.Len(t, pending, 1)
	assert.Equal(t, rec.ProvisionalID, pending[0].ProvisionalID)
}

func TestPersistAndHydrateProject(t *testing.T) {
	s, _, mem := newTestStore(t)
	ctx := context.Background()

	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m1", ConversationKey: "project#7", Payload: map[string]any{"text": "hi"}})

	// a fresh store over the same cache resumes warm
	s2 := New(mem, nil, logging.NewNopLogger())
	require.NoError(t, s2.HydrateProject(ctx, "7"))
	live := s2.Records("project#7")
	require.Len(t, live, 1)
	assert.Equal(t, "m1", live[0].ConfirmedID)
	assert.Equal(t, "hi", live[0].Payload["text"])
}

func TestHydrate_ExpiredCacheIsColdStart(t *testing.T) {
	clock := struct{ t time.Time }{t: time.Unix(1_700_000_000, 0)}
	mem := cache.NewMemory().WithClock(func() time.Time { return clock.t })
	log := logging.NewNopLogger()

	s := New(mem, nil, log)
	ctx := context.Background()
	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m1", ConversationKey: "project#7"})

	clock.t = clock.t.Add(cache.DefaultTTL + time.Minute)

	s2 := New(mem, nil, log)
	require.NoError(t, s2.HydrateProject(ctx, "7"))
	assert.Empty(t, s2.Records("project#7"))
}

func TestHydrateDMThreads_AppliesReadWatermark(t *testing.T) {
	s, _, mem := newTestStore(t)
	ctx := context.Background()

	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m1", ConversationKey: "dm#a", Timestamp: "2026-01-01T00:00:00Z"})
	s.MarkRead(ctx, "dm#a")
	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m2", ConversationKey: "dm#b", Timestamp: "2026-01-01T00:00:00Z"})

	s2 := New(mem, nil, logging.NewNopLogger())
	require.NoError(t, s2.HydrateDMThreads(ctx))

	assert.Equal(t, 0, s2.UnreadCount("dm#a"))
	assert.Equal(t, 1, s2.UnreadCount("dm#b"))
}

// captureCache keeps the raw value handed to Set so tests can inspect what
// the store snapshots for persistence.
type captureCache struct {
	mu   sync.Mutex
	last any
}

func (c *captureCache) Set(_ context.Context, _ string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = value
	return nil
}

func (c *captureCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (c *captureCache) Delete(context.Context, string) error           { return nil }

func (c *captureCache) lastValue() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func TestPersist_SnapshotsDoNotAliasLiveRecords(t *testing.T) {
	cc := &captureCache{}
	log := logging.NewNopLogger()
	s := New(cc, nil, log, WithUserID("u1"))
	ctx := context.Background()

	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m1", ConversationKey: "project#1"})

	snapshot, ok := cc.lastValue().([]*models.Record)
	require.True(t, ok)
	require.Len(t, snapshot, 1)

	// later in-place mutations must not leak into the persisted snapshot
	s.ApplyReactionInbound(ctx, "m1", "👍", "peer")

	assert.False(t, snapshot[0].Reactions.Has("👍", "peer"))
	assert.True(t, s.Records("project#1")[0].Reactions.Has("👍", "peer"))
}

func TestPersist_ConcurrentWithReactionToggles(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m1", ConversationKey: "project#1"})

	// persist marshals its snapshot while another goroutine mutates the
	// live records; a shared-pointer snapshot trips the race detector here
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			s.ApplyReactionInbound(ctx, "m1", "👍", "peer")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			s.ApplyInbound(ctx, &models.Record{ConfirmedID: "m2", ConversationKey: "project#1"})
		}
	}()
	wg.Wait()

	require.Len(t, s.Records("project#1"), 2)
}

func TestReplaceFromFetch_DedupesAndKeepsProvisional(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	mine := s.SendMessage(ctx, models.ConversationProject, "1", map[string]any{"text": "mine"})

	// overlapping pages repeat m1
	s.ReplaceFromFetch(ctx, "project#1", []*models.Record{
		{ConfirmedID: "m1", ConversationKey: "project#1"},
		{ConfirmedID: "m1", ConversationKey: "project#1"},
		{ConfirmedID: "m2", ConversationKey: "project#1"},
	})

	live := s.Records("project#1")
	require.Len(t, live, 3)
	assert.Equal(t, mine.ProvisionalID, live[0].Identity(), "local provisional keeps its position")
}
