package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/collabdesk/collabdesk/internal/logging"
)

// WebSocket is a reconnecting websocket Transport. A background loop dials
// the endpoint, pumps inbound messages to subscribers and, after a read
// failure, redials on a short fixed interval. Senders observe the connection
// state through IsOpen and fail fast while it is down; the retrying sender
// upstream bridges the gap.
type WebSocket struct {
	url         string
	header      http.Header
	redialEvery time.Duration
	log         logging.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	subs    map[int]func([]byte)
	nextSub int
	closed  bool

	cancel context.CancelFunc
	done   chan struct{}
}

// WebSocketOptions configures DialWebSocket.
type WebSocketOptions struct {
	// BearerToken, when set, is attached as an Authorization header on
	// every dial.
	BearerToken string

	// RedialInterval is the pause between reconnection attempts.
	// Defaults to one second.
	RedialInterval time.Duration
}

// DialWebSocket starts the connection loop for url and returns immediately;
// the first dial happens in the background. The transport keeps redialling
// until Close is called or ctx is cancelled.
func DialWebSocket(ctx context.Context, url string, log logging.Logger, opts WebSocketOptions) *WebSocket {
	header := http.Header{}
	if opts.BearerToken != "" {
		header.Set("Authorization", "Bearer "+opts.BearerToken)
	}
	redial := opts.RedialInterval
	if redial <= 0 {
		redial = time.Second
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &WebSocket{
		url:         url,
		header:      header,
		redialEvery: redial,
		log:         log,
		subs:        make(map[int]func([]byte)),
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go w.connectLoop(ctx)
	return w
}

func (w *WebSocket) connectLoop(ctx context.Context) {
	defer close(w.done)
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.url, w.header)
		if err != nil {
			w.log.Warn(ctx, "websocket dial failed", "url", w.url, "error", err)
			select {
			case <-time.After(w.redialEvery):
				continue
			case <-ctx.Done():
				return
			}
		}

		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			_ = conn.Close()
			return
		}
		w.conn = conn
		w.mu.Unlock()
		w.log.Info(ctx, "websocket connected", "url", w.url)

		w.readLoop(ctx, conn)

		w.mu.Lock()
		w.conn = nil
		w.mu.Unlock()
	}
}

func (w *WebSocket) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				w.log.Warn(ctx, "websocket read failed, reconnecting", "error", err)
			}
			return
		}
		for _, fn := range w.subscribers() {
			fn(data)
		}
	}
}

func (w *WebSocket) subscribers() []func([]byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]func([]byte), 0, len(w.subs))
	for _, fn := range w.subs {
		out = append(out, fn)
	}
	return out
}

// IsOpen reports whether a live connection is established.
func (w *WebSocket) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil && !w.closed
}

// Send writes one text message. Gorilla permits a single concurrent writer,
// so the write happens under the transport lock.
func (w *WebSocket) Send(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil || w.closed {
		return ErrChannelNotOpen
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket write failed: %w", err)
	}
	return nil
}

// Subscribe registers fn for inbound messages.
func (w *WebSocket) Subscribe(fn func(data []byte)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
}

// Close stops the connection loop and closes any live connection.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	conn := w.conn
	w.conn = nil
	w.mu.Unlock()

	w.cancel()
	if conn != nil {
		_ = conn.Close()
	}
	<-w.done
	return nil
}
