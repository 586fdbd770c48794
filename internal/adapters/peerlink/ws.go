package peerlink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/strokelab/courtsync/internal/domain/clocksync"
)

const defaultExchangeTimeout = time.Second

// Sentinel kinds for link errors.
var (
	ErrLinkClosed      = errors.New("peer link closed")
	ErrExchangeTimeout = errors.New("exchange timed out")
)

// WSLink is a WebSocket client implementing clocksync.Exchanger. One
// exchange at a time; the coordinator already guarantees this.
type WSLink struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
	closed  bool
}

// WSOption applies a configuration option to the WSLink.
type WSOption func(*WSLink)

// WithExchangeTimeout bounds how long one exchange may wait for the reply.
func WithExchangeTimeout(d time.Duration) WSOption {
	return func(l *WSLink) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// DialWS connects to the peer's exchange endpoint.
func DialWS(ctx context.Context, url string, opts ...WSOption) (*WSLink, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial peer %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	l := &WSLink{conn: conn, timeout: defaultExchangeTimeout}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Exchange sends one sync request and waits for the matching reply. Stale
// replies from earlier timed-out exchanges are discarded.
func (l *WSLink) Exchange(ctx context.Context, req clocksync.Request) (*clocksync.Reply, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrLinkClosed
	}

	deadline := time.Now().Add(l.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := l.conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := l.conn.WriteJSON(encodeRequest(req)); err != nil {
		return nil, fmt.Errorf("write sync request: %w", err)
	}

	if err := l.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	for {
		var reply syncReply
		if err := l.conn.ReadJSON(&reply); err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				return nil, ErrExchangeTimeout
			}
			return nil, fmt.Errorf("read sync reply: %w", err)
		}
		if reply.ExchangeID != req.ExchangeID {
			continue // stale reply from an abandoned exchange
		}
		return decodeReply(reply), nil
	}
}

// Close shuts the link down. Subsequent exchanges fail with ErrLinkClosed.
func (l *WSLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.conn.Close()
}

// Responder answers sync exchanges on the peer side, stamping receive (t2)
// and reply-send (t3) times from the local clock. Mount it on the HTTP mux
// of whichever device plays the responding role.
type Responder struct {
	clock    clocksync.Clock
	upgrader websocket.Upgrader
}

// NewResponder creates a Responder stamping from clock.
func NewResponder(clock clocksync.Clock) *Responder {
	return &Responder{
		clock: clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  256,
			WriteBufferSize: 256,
		},
	}
}

// ServeHTTP upgrades the connection and answers exchange requests until the
// initiator disconnects.
func (r *Responder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	for {
		var in syncRequest
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		t2 := r.clock.Now()

		out := syncReply{
			ExchangeID: in.ExchangeID,
			T1Micros:   in.T1Micros,
			T2Micros:   t2.Microseconds(),
		}
		out.T3Micros = r.clock.Now().Microseconds()
		if err := conn.WriteJSON(out); err != nil {
			return
		}
	}
}
