package store

import (
	"context"
	"time"

	"github.com/collabdesk/collabdesk/internal/client/models"
)

// SendMessage creates a provisional record for the conversation, applies it
// optimistically and queues it for transmission. The record renders
// immediately; confirmation arrives later through the inbound stream.
func (s *Store) SendMessage(ctx context.Context, ct models.ConversationType, conversationID string, payload map[string]any) *models.Record {
	rec := models.NewProvisional(models.ConversationKeyFor(ct, conversationID), payload)
	s.ApplyOptimistic(ctx, rec)
	s.transmit(ctx, models.ActionSendMessage, ct, conversationID, rec)
	return rec
}

// EditMessage updates the payload of an existing record, keeping its
// identity and creation timestamp, and queues the edit.
func (s *Store) EditMessage(ctx context.Context, conversationKey, identity string, payload map[string]any) bool {
	s.mu.Lock()
	var target *models.Record
	for _, r := range s.conversations[conversationKey] {
		if r.Identity() == identity || r.ProvisionalID == identity {
			target = r
			break
		}
	}
	if target == nil || target.Tombstoned {
		s.mu.Unlock()
		return false
	}
	edited := target.Clone()
	s.mu.Unlock()

	edited.Payload = payload
	edited.Edited = true
	edited.EditedAt = time.Now().UTC().Format(time.RFC3339Nano)

	s.ApplyOptimistic(ctx, edited)

	ct, id, _ := models.SplitConversationKey(conversationKey)
	s.transmit(ctx, models.ActionEditMessage, ct, id, edited)
	return true
}

// DeleteMessage tombstones the record locally and queues the delete. There
// is no rollback if the send never confirms; the tombstone is terminal.
func (s *Store) DeleteMessage(ctx context.Context, conversationKey, identity string) {
	s.ApplyTombstone(ctx, conversationKey, identity)

	if s.sender == nil {
		return
	}
	ct, id, _ := models.SplitConversationKey(conversationKey)
	env := &models.Envelope{
		Action:           models.ActionDeleteMessage,
		ConversationType: ct,
		ConversationID:   id,
		Identity:         identity,
	}
	if err := s.sender.TrySend(ctx, env); err != nil {
		s.log.Warn(ctx, "failed to queue delete", "identity", identity, "error", err)
	}
}

// SetActiveConversation tells the backend which conversation the user is
// looking at, so presence and push routing can follow along.
func (s *Store) SetActiveConversation(ctx context.Context, ct models.ConversationType, conversationID string) {
	if s.sender == nil {
		return
	}
	env := &models.Envelope{
		Action:           models.ActionSetActiveConversation,
		ConversationType: ct,
		ConversationID:   conversationID,
		UserID:           s.userID,
	}
	if err := s.sender.TrySend(ctx, env); err != nil {
		s.log.Warn(ctx, "failed to queue setActiveConversation", "error", err)
	}
}

// Resend re-queues a still-pending record, e.g. from a manual retry
// affordance or the reconnect replay.
func (s *Store) Resend(ctx context.Context, rec *models.Record) {
	if rec == nil || !rec.Pending {
		return
	}
	ct, id, ok := models.SplitConversationKey(rec.ConversationKey)
	if !ok {
		return
	}
	s.transmit(ctx, models.ActionSendMessage, ct, id, rec)
}

func (s *Store) transmit(ctx context.Context, action models.Action, ct models.ConversationType, conversationID string, rec *models.Record) {
	if s.sender == nil {
		return
	}
	env := &models.Envelope{
		Action:           action,
		ConversationType: ct,
		ConversationID:   conversationID,
		Record:           rec,
		UserID:           s.userID,
	}
	if err := s.sender.TrySend(ctx, env); err != nil {
		s.log.Warn(ctx, "failed to queue send", "action", action, "error", err)
	}
}
