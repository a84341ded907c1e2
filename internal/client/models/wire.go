package models

import (
	"encoding/json"
	"fmt"
)

// Action names a wire operation carried in an Envelope.
type Action string

const (
	ActionSendMessage           Action = "sendMessage"
	ActionEditMessage           Action = "editMessage"
	ActionDeleteMessage         Action = "deleteMessage"
	ActionToggleReaction        Action = "toggleReaction"
	ActionTimelineUpdated       Action = "timelineUpdated"
	ActionProjectUpdated        Action = "projectUpdated"
	ActionSetActiveConversation Action = "setActiveConversation"
	ActionMarkRead              Action = "markRead"
)

// Envelope is the JSON message exchanged over the duplex connection.
// Only Action, ConversationType and ConversationID are universal; the
// remaining fields are populated per action.
type Envelope struct {
	Action           Action           `json:"action"`
	ConversationType ConversationType `json:"conversationType,omitempty"`
	ConversationID   string           `json:"conversationId,omitempty"`

	// Record carries the full record for sendMessage, editMessage,
	// timelineUpdated and projectUpdated.
	Record *Record `json:"record,omitempty"`

	// Identity addresses an existing record for deleteMessage and
	// toggleReaction.
	Identity string `json:"identity,omitempty"`

	Emoji  string `json:"emoji,omitempty"`
	UserID string `json:"userId,omitempty"`
}

// ConversationKey returns the partition key addressed by the envelope.
func (e *Envelope) ConversationKey() string {
	return ConversationKeyFor(e.ConversationType, e.ConversationID)
}

// Encode serialises the envelope for transmission.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// DecodeEnvelope parses an inbound payload. A payload lacking an action is
// never rejected: it is normalised by assigning defaultAction before
// dispatch.
func DecodeEnvelope(data []byte, defaultAction Action) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if e.Action == "" {
		e.Action = defaultAction
	}
	return &e, nil
}
