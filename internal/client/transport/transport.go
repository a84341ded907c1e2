// Package transport abstracts the persistent duplex connection the sync
// layer speaks over. The sync code only depends on the Transport interface;
// the websocket adapter is the default implementation.
package transport

import "github.com/collabdesk/collabdesk/internal/shared"

// Transport is a bidirectional message channel.
//
// Send must fail fast with shared.ErrorChannelNotOpen when the channel is
// down; the retrying sender treats exactly that error as transient and
// anything else as terminal.
type Transport interface {
	// IsOpen reports whether the channel is currently connected.
	IsOpen() bool

	// Send transmits one message. It never blocks on reconnection.
	Send(data []byte) error

	// Subscribe registers fn for every inbound message and returns an
	// unsubscribe function. Callbacks run sequentially on the reader
	// goroutine.
	Subscribe(fn func(data []byte)) (unsubscribe func())

	// Close shuts the channel down permanently.
	Close() error
}

// ErrChannelNotOpen is re-exported for callers that only import transport.
var ErrChannelNotOpen = shared.ErrorChannelNotOpen
