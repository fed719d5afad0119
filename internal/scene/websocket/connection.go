package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evdisplay/evd/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	sendChSize   = 10_000
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
	dialTimeout  = 5 * time.Second
)

var errClosed = errors.New("websocket connection closed")

var dialer = &ws.Dialer{
	Proxy:            ws.DefaultDialer.Proxy,
	HandshakeTimeout: dialTimeout,
}

// connection manages a WebSocket connection. Each dialed *ws.Conn gets
// its own read and write loop and a stop channel; only one generation is
// live at a time, so the write loop is the connection's only writer.
type connection struct {
	mu           sync.Mutex
	conn         *ws.Conn
	stop         chan struct{} // closed when conn fails or is replaced
	sendCh       chan []byte
	ackCh        chan streaming.AckMessage
	done         chan struct{} // closed on shutdown
	closed       bool
	reconnecting bool

	wsURL  string
	secret string
	// first delay between reconnect attempts
	retryDelay time.Duration

	// Cached start_session and geometry messages for reconnect replay.
	replay []replayEntry

	writers atomic.Int32 // running write loops

	logger *slog.Logger
}

type replayEntry struct {
	msgType string
	data    []byte
}

func newConnection(logger *slog.Logger) *connection {
	if logger == nil {
		logger = slog.Default()
	}
	return &connection{
		sendCh:     make(chan []byte, sendChSize),
		ackCh:      make(chan streaming.AckMessage, ackChSize),
		done:       make(chan struct{}),
		retryDelay: time.Second,
		logger:     logger,
	}
}

// dial connects to the WebSocket server and starts read/write loops.
func (c *connection) dial(ctx context.Context, rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		_ = conn.Close()
		return errClosed
	}
	c.start(conn)
	return nil
}

// start publishes conn and launches its loops. c.mu must be held.
func (c *connection) start(conn *ws.Conn) {
	stop := make(chan struct{})
	c.conn = conn
	c.stop = stop
	c.writers.Add(1)
	go c.writeLoop(conn, stop)
	go c.readLoop(conn)
}

// connected reports whether a live connection is published.
func (c *connection) connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *connection) dialOnce(ctx context.Context) (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh onto conn until stop or done is closed, or a
// write fails.
func (c *connection) writeLoop(conn *ws.Conn, stop <-chan struct{}) {
	defer c.writers.Add(-1)
	for {
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case data := <-c.sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				c.fail(conn)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.fail(conn)
				return
			}
		}
	}
}

// readLoop reads ack messages from conn and routes them to ackCh.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			c.fail(conn)
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil {
			c.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}

		if ack.Type == "ack" {
			select {
			case c.ackCh <- ack:
			default:
				c.logger.Debug("Ack channel full, dropping", "for", ack.For)
			}
		}
	}
}

// fail retires conn and starts a single reconnect. Calls for a conn that
// is no longer current, or while a reconnect runs, do nothing.
func (c *connection) fail(conn *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.reconnecting || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	close(c.stop)
	c.conn = nil
	c.stop = nil
	c.mu.Unlock()

	_ = conn.Close()
	go c.reconnect()
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. The cached session messages are replayed before
// the new connection is published to the write loop.
func (c *connection) reconnect() {
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	backoff := c.retryDelay
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dialOnce(context.Background())
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = nextBackoff(backoff)
			continue
		}

		c.mu.Lock()
		replay := slices.Clone(c.replay)
		c.mu.Unlock()

		// Replay the session so the viewer knows what it is showing.
		if err := c.writeReplay(conn, replay); err != nil {
			c.logger.Warn("Failed to replay session after reconnect", "error", err)
			_ = conn.Close()
			backoff = nextBackoff(backoff)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.start(conn)
		c.mu.Unlock()

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// nextBackoff doubles d up to maxBackoff.
func nextBackoff(d time.Duration) time.Duration {
	return min(2*d, maxBackoff)
}

// clearReplay drops every cached message.
func (c *connection) clearReplay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replay = nil
}

func (c *connection) writeReplay(conn *ws.Conn, replay []replayEntry) error {
	for _, entry := range replay {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		if err := conn.WriteMessage(ws.TextMessage, entry.data); err != nil {
			return err
		}
	}
	return nil
}

// setReplay caches data for replay, replacing an earlier message of the
// same type in place.
func (c *connection) setReplay(msgType string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.replay {
		if c.replay[i].msgType == msgType {
			c.replay[i].data = data
			return
		}
	}
	c.replay = append(c.replay, replayEntry{msgType: msgType, data: data})
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// sendAndWait sends data and blocks until the server acknowledges with a
// matching ack message, ctx is done or the timeout expires.
func (c *connection) sendAndWait(ctx context.Context, data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
			// Not our ack, keep waiting.
		case <-ctx.Done():
			return fmt.Errorf("waiting for ack of %q: %w", ackFor, ctx.Err())
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close sends a WebSocket close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		// WriteControl may run concurrently with the write loop's WriteMessage.
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}
