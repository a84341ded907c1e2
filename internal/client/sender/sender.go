// Package sender implements the retrying send protocol: an outbound
// envelope is queued and retried on a fixed interval while the channel is
// not open, up to a hard ceiling.
//
// This is deliberately not exponential backoff. The transport's own
// reconnect logic is expected to restore the channel within a few seconds,
// so a short constant interval bounds latency without hammering a
// reconnecting socket.
package sender

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/collabdesk/collabdesk/internal/client/models"
	"github.com/collabdesk/collabdesk/internal/client/transport"
	"github.com/collabdesk/collabdesk/internal/logging"
	"github.com/collabdesk/collabdesk/internal/shared"
	"github.com/collabdesk/collabdesk/internal/telemetry"
)

const (
	DefaultMaxAttempts   = 5
	DefaultRetryInterval = time.Second
)

// Sender queues envelopes onto a Transport.
type Sender struct {
	transport   transport.Transport
	log         logging.Logger
	maxAttempts int
	interval    time.Duration

	// onFailure, when set, is invoked (on the sender's goroutine) for every
	// envelope abandoned after the retry ceiling or a terminal transmit
	// error. The corresponding record stays pending; there is no rollback.
	onFailure func(env *models.Envelope, err error)
}

// Option configures a Sender.
type Option func(*Sender)

// WithMaxAttempts overrides the retry ceiling (total attempts, not retries).
func WithMaxAttempts(n int) Option {
	return func(s *Sender) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRetryInterval overrides the fixed interval between attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(s *Sender) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithFailureHandler registers the permanent-failure callback.
func WithFailureHandler(fn func(env *models.Envelope, err error)) Option {
	return func(s *Sender) { s.onFailure = fn }
}

// New returns a Sender bound to t.
func New(t transport.Transport, log logging.Logger, opts ...Option) *Sender {
	s := &Sender{
		transport:   t,
		log:         log,
		maxAttempts: DefaultMaxAttempts,
		interval:    DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TrySend encodes env and transmits it in the background, returning
// immediately. While the channel is not open the attempt is rescheduled on
// the fixed interval until the ceiling is hit; a transmit error with an open
// channel is terminal and not retried. Permanent failure is reported through
// the failure handler, never to the caller.
func (s *Sender) TrySend(ctx context.Context, env *models.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	go s.sendLoop(ctx, env, data)
	return nil
}

func (s *Sender) sendLoop(ctx context.Context, env *models.Envelope, data []byte) {
	// maxAttempts counts attempts, go-retry counts retries after the first.
	backoff := retry.WithMaxRetries(uint64(s.maxAttempts-1), retry.NewConstant(s.interval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		telemetry.SendAttempts.Inc()
		if !s.transport.IsOpen() {
			return retry.RetryableError(shared.ErrorChannelNotOpen)
		}
		if err := s.transport.Send(data); err != nil {
			if errors.Is(err, shared.ErrorChannelNotOpen) {
				// lost the race with a disconnect; same as not open
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err == nil {
		// no acknowledgment here: confirmation arrives asynchronously on
		// the inbound stream and is reconciled by the store
		return
	}

	telemetry.SendFailures.Inc()
	if errors.Is(err, shared.ErrorChannelNotOpen) {
		err = fmt.Errorf("%w: %w", shared.ErrorSendExhausted, err)
	}
	s.log.Warn(ctx, "send abandoned", "action", env.Action, "conversation", env.ConversationKey(), "error", err)
	if s.onFailure != nil {
		s.onFailure(env, err)
	}
}
