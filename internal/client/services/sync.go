// Package services wires the transport, the reconciliation store and the
// budget editors together: it pumps inbound envelopes into the right store
// mutation and replays still-pending records after a reconnect.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/collabdesk/collabdesk/internal/client/models"
	"github.com/collabdesk/collabdesk/internal/client/store"
	"github.com/collabdesk/collabdesk/internal/client/transport"
	"github.com/collabdesk/collabdesk/internal/logging"
)

// DefaultReplayInterval is how often the replay loop checks for pending
// records while the channel is open.
const DefaultReplayInterval = 5 * time.Second

// BudgetSink receives budget line broadcasts for one project. Implemented
// by budget.Editor.
type BudgetSink interface {
	ApplyInbound(ctx context.Context, rec *models.Record)
}

// SyncService dispatches the push stream into the store.
type SyncService struct {
	store         *store.Store
	transport     transport.Transport
	log           logging.Logger
	defaultAction models.Action

	mu      sync.Mutex
	budgets map[string]BudgetSink // projectID -> sink
}

// NewSyncService returns a service dispatching inbound envelopes to st.
// Envelopes without an action are normalised to defaultAction, never
// rejected.
func NewSyncService(st *store.Store, tr transport.Transport, log logging.Logger, defaultAction models.Action) *SyncService {
	return &SyncService{
		store:         st,
		transport:     tr,
		log:           log,
		defaultAction: defaultAction,
		budgets:       make(map[string]BudgetSink),
	}
}

// RegisterBudget routes projectUpdated line items for projectID to sink.
func (s *SyncService) RegisterBudget(projectID string, sink BudgetSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[projectID] = sink
}

// Start subscribes to the transport and returns an unsubscribe function.
func (s *SyncService) Start(ctx context.Context) func() {
	return s.transport.Subscribe(func(data []byte) {
		s.handle(ctx, data)
	})
}

func (s *SyncService) handle(ctx context.Context, data []byte) {
	env, err := models.DecodeEnvelope(data, s.defaultAction)
	if err != nil {
		s.log.Warn(ctx, "dropping undecodable inbound message", "error", err)
		return
	}

	switch env.Action {
	case models.ActionSendMessage, models.ActionEditMessage, models.ActionTimelineUpdated:
		if env.Record == nil {
			s.log.Debug(ctx, "inbound envelope without record", "action", env.Action)
			return
		}
		if env.Record.ConversationKey == "" {
			env.Record.ConversationKey = env.ConversationKey()
		}
		s.store.ApplyInbound(ctx, env.Record)

	case models.ActionDeleteMessage:
		if env.Identity == "" {
			return
		}
		s.store.ApplyTombstone(ctx, env.ConversationKey(), env.Identity)

	case models.ActionToggleReaction:
		if env.Identity == "" || env.Emoji == "" {
			return
		}
		s.store.ApplyReactionInbound(ctx, env.Identity, env.Emoji, env.UserID)

	case models.ActionProjectUpdated:
		s.mu.Lock()
		sink := s.budgets[env.ConversationID]
		s.mu.Unlock()
		if sink != nil && env.Record != nil {
			sink.ApplyInbound(ctx, env.Record)
			return
		}
		if env.Record != nil {
			if env.Record.ConversationKey == "" {
				env.Record.ConversationKey = env.ConversationKey()
			}
			s.store.ApplyInbound(ctx, env.Record)
		}

	case models.ActionMarkRead:
		// peers' read receipts are not tracked locally

	default:
		s.log.Debug(ctx, "ignoring inbound action", "action", env.Action)
	}
}

// StartPendingReplay launches a loop that, while the channel is open,
// re-queues records still pending after a disconnect. Returns when ctx is
// cancelled.
func (s *SyncService) StartPendingReplay(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultReplayInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !s.transport.IsOpen() {
				continue
			}
			for _, rec := range s.store.PendingRecords() {
				s.log.Debug(ctx, "replaying pending record", "identity", rec.Identity())
				s.store.Resend(ctx, rec)
			}
		case <-ctx.Done():
			return
		}
	}
}
