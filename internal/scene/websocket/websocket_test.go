package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evdisplay/evd/internal/geometry"
	"github.com/evdisplay/evd/internal/scene"
	"github.com/evdisplay/evd/pkg/core"
	"github.com/evdisplay/evd/pkg/streaming"
)

// Compile-time interface checks.
var (
	_ scene.Renderer       = (*Renderer)(nil)
	_ scene.Flusher        = (*Renderer)(nil)
	_ scene.GeometrySetter = (*Renderer)(nil)
	_ scene.Closer         = (*Renderer)(nil)
)

// ackedTypes are the message types the test viewer acknowledges.
var ackedTypes = map[string]bool{
	streaming.TypeStartSession: true,
	streaming.TypeEndSession:   true,
	streaming.TypeSync:         true,
}

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and acks session and sync messages.
func testServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.setSecret(r.URL.Query().Get("secret"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if ackedTypes[env.Type] {
				ack := streaming.AckMessage{Type: "ack", For: env.Type}
				data, _ := json.Marshal(ack)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
	secret   string
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) setSecret(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = s
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSessionLifecycle(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	r := New(Config{URL: wsURL(srv), Secret: "test", Geometry: "cms.gdml"}, nil)
	require.NoError(t, r.Init(t.Context()))
	require.NoError(t, r.Close())

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, streaming.TypeStartSession, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndSession, msgs[len(msgs)-1].Type)

	var start streaming.StartSessionPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &start))
	assert.Equal(t, "cms.gdml", start.Geometry)
	assert.NotEmpty(t, start.Session)

	ml.mu.Lock()
	assert.Equal(t, "test", ml.secret)
	ml.mu.Unlock()
}

func TestSceneMessages(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	r := New(Config{URL: wsURL(srv), Secret: "s"}, nil)
	require.NoError(t, r.Init(t.Context()))
	defer r.Close()

	r.SetGeometry(geometry.View{Top: "World", VisLevel: 2, Nodes: []string{"World"}})
	r.AddPolyline(core.Polyline{
		Name:     "3_1_gamma",
		EventID:  3,
		TrackID:  1,
		Particle: 22,
		Style:    core.Style{Family: "gamma", Color: color.RGBA{G: 0x99, A: 0xff}},
		Points:   []core.Vec3{{}, {X: 1, Y: 2, Z: 3}},
	})
	r.Clear()

	// The sync ack arrives after everything sent before it.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Flush(ctx))

	types := make(map[string]int)
	var track streaming.TrackPayload
	var view streaming.GeometryPayload
	for _, m := range ml.all() {
		types[m.Type]++
		switch m.Type {
		case streaming.TypeAddTrack:
			require.NoError(t, json.Unmarshal(m.Payload, &track))
		case streaming.TypeGeometry:
			require.NoError(t, json.Unmarshal(m.Payload, &view))
		}
	}

	assert.Equal(t, 1, types[streaming.TypeStartSession])
	assert.Equal(t, 1, types[streaming.TypeGeometry])
	assert.Equal(t, 1, types[streaming.TypeAddTrack])
	assert.Equal(t, 1, types[streaming.TypeClearScene])
	assert.Equal(t, 1, types[streaming.TypeSync])

	assert.Equal(t, "3_1_gamma", track.Name)
	assert.Equal(t, "#009900", track.Color)
	assert.Equal(t, [][3]float64{{0, 0, 0}, {1, 2, 3}}, track.Points)
	assert.Equal(t, 2, view.VisLevel)
}

func TestSetReplayKeepsLatestPerType(t *testing.T) {
	c := newConnection(nil)
	c.setReplay(streaming.TypeStartSession, []byte("a"))
	c.setReplay(streaming.TypeGeometry, []byte("b"))
	c.setReplay(streaming.TypeGeometry, []byte("c"))

	require.Len(t, c.replay, 2)
	assert.Equal(t, streaming.TypeStartSession, c.replay[0].msgType)
	assert.Equal(t, []byte("c"), c.replay[1].data)

	c.clearReplay()
	assert.Empty(t, c.replay)
}

func TestInitDialFailure(t *testing.T) {
	r := New(Config{URL: "ws://127.0.0.1:1/none"}, nil)
	assert.Error(t, r.Init(t.Context()))
}

func TestEnvelopeSerialization(t *testing.T) {
	data, err := marshalEnvelope(streaming.TypeAddTrack, streaming.TrackPayload{Name: "0_1_e-"})
	require.NoError(t, err)

	var decoded streaming.Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, streaming.TypeAddTrack, decoded.Type)

	var tp streaming.TrackPayload
	require.NoError(t, json.Unmarshal(decoded.Payload, &tp))
	assert.Equal(t, "0_1_e-", tp.Name)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second))
	assert.Equal(t, maxBackoff, nextBackoff(20*time.Second))
	assert.Equal(t, maxBackoff, nextBackoff(maxBackoff))
}

func TestSendAndWaitHonorsContext(t *testing.T) {
	c := newConnection(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.sendAndWait(ctx, []byte("{}"), streaming.TypeSync, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

// droppingServer acks start_session on every connection and closes the
// first connection once it has received a geometry message. Messages are
// recorded per connection.
func droppingServer(t *testing.T) (*httptest.Server, func() [][]string) {
	t.Helper()
	var (
		mu    sync.Mutex
		conns [][]string
	)

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		mu.Lock()
		idx := len(conns)
		conns = append(conns, nil)
		mu.Unlock()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			mu.Lock()
			conns[idx] = append(conns[idx], env.Type)
			mu.Unlock()

			if idx == 0 && env.Type == streaming.TypeGeometry {
				return
			}
			if ackedTypes[env.Type] {
				data, _ := json.Marshal(streaming.AckMessage{Type: "ack", For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	received := func() [][]string {
		mu.Lock()
		defer mu.Unlock()
		out := make([][]string, len(conns))
		for i := range conns {
			out[i] = append([]string(nil), conns[i]...)
		}
		return out
	}
	return srv, received
}

func TestReconnectReplaysSession(t *testing.T) {
	srv, received := droppingServer(t)
	defer srv.Close()

	r := New(Config{URL: wsURL(srv), Secret: "s", Geometry: "cms.gdml"}, nil)
	r.conn.retryDelay = 10 * time.Millisecond
	require.NoError(t, r.Init(t.Context()))
	defer r.Close()

	// The viewer drops the connection after the geometry message.
	r.SetGeometry(geometry.View{Top: "World", VisLevel: 1, Nodes: []string{"World"}})

	require.Eventually(t, func() bool {
		conns := received()
		return len(conns) == 2 && len(conns[1]) >= 2 && r.conn.connected()
	}, 5*time.Second, 10*time.Millisecond)

	for i := 1; i <= 3; i++ {
		r.AddPolyline(core.Polyline{Name: fmt.Sprintf("0_%d_e-", i), TrackID: i, Particle: 11})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Flush(ctx))

	conns := received()
	require.Len(t, conns, 2)
	assert.Equal(t, []string{streaming.TypeStartSession, streaming.TypeGeometry}, conns[0])
	assert.Equal(t, []string{
		streaming.TypeStartSession,
		streaming.TypeGeometry,
		streaming.TypeAddTrack,
		streaming.TypeAddTrack,
		streaming.TypeAddTrack,
		streaming.TypeSync,
	}, conns[1])
	// the first connection's write loop has exited
	assert.Eventually(t, func() bool { return r.conn.writers.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestFailOnlyReconnectsOnce(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	c := newConnection(nil)
	c.retryDelay = 10 * time.Millisecond
	require.NoError(t, c.dial(t.Context(), wsURL(srv), "s"))
	defer c.close()

	c.mu.Lock()
	first := c.conn
	c.mu.Unlock()

	// Read and write loops may both report the same broken connection.
	c.fail(first)
	c.fail(first)

	require.Eventually(t, c.connected, 5*time.Second, 10*time.Millisecond)
	c.mu.Lock()
	assert.NotSame(t, first, c.conn)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.sendAndWait(ctx, []byte(`{"type":"sync"}`), streaming.TypeSync, time.Minute))
	assert.Eventually(t, func() bool { return c.writers.Load() == 1 }, time.Second, 10*time.Millisecond)
	msgs := ml.all()
	assert.Equal(t, streaming.TypeSync, msgs[len(msgs)-1].Type)
}

func TestInitWithoutAckCloses(t *testing.T) {
	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	r := New(Config{URL: wsURL(srv)}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, r.Init(ctx), context.DeadlineExceeded)
	assert.False(t, r.conn.connected())
	assert.Eventually(t, func() bool { return r.conn.writers.Load() == 0 }, time.Second, 10*time.Millisecond)
}
