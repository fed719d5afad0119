package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/evdisplay/evd/internal/geo"
	"github.com/evdisplay/evd/internal/geometry"
	"github.com/evdisplay/evd/internal/scene"
	"github.com/evdisplay/evd/pkg/core"
	"github.com/evdisplay/evd/pkg/streaming"
	"github.com/google/uuid"
)

// Config holds WebSocket renderer configuration.
type Config struct {
	URL    string
	Secret string
	// Geometry is the geometry file name announced at session start.
	Geometry string
}

// Renderer streams the scene over WebSocket to a remote viewer.
type Renderer struct {
	conn    *connection
	cfg     Config
	session uuid.UUID
	logger  *slog.Logger
}

// New creates a new WebSocket renderer.
func New(cfg Config, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		conn:    newConnection(logger),
		cfg:     cfg,
		session: uuid.New(),
		logger:  logger,
	}
}

// Init connects to the viewer and announces the session. It waits for the
// viewer to acknowledge; without an ack the connection is closed again.
func (r *Renderer) Init(ctx context.Context) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{
		Session:  r.session.String(),
		Geometry: r.cfg.Geometry,
	})
	if err != nil {
		return err
	}

	if err := r.conn.dial(ctx, r.cfg.URL, r.cfg.Secret); err != nil {
		return err
	}

	// Cache for reconnect replay.
	r.conn.setReplay(streaming.TypeStartSession, data)

	if err := r.conn.sendAndWait(ctx, data, streaming.TypeStartSession, ackTimeout); err != nil {
		_ = r.conn.close()
		return err
	}
	return nil
}

// Close ends the session and disconnects.
func (r *Renderer) Close() error {
	if err := r.sendEnvelopeAndWait(context.Background(), streaming.TypeEndSession, nil); err != nil {
		r.logger.Warn("Viewer did not acknowledge session end", "error", err)
	}
	r.conn.clearReplay()
	return r.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (r *Renderer) sendEnvelope(msgType string, payload any) {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		r.logger.Error("Dropping message", "type", msgType, "error", err)
		return
	}
	r.conn.send(data)
}

// sendEnvelopeAndWait marshals the payload and waits for a viewer ack.
func (r *Renderer) sendEnvelopeAndWait(ctx context.Context, msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return r.conn.sendAndWait(ctx, data, msgType, ackTimeout)
}

// AddPolyline sends p as an add_track message.
func (r *Renderer) AddPolyline(p core.Polyline) {
	r.sendEnvelope(streaming.TypeAddTrack, streaming.TrackPayload{
		Name:       p.Name,
		EventID:    p.EventID,
		TrackID:    p.TrackID,
		Particle:   p.Particle,
		Family:     p.Style.Family,
		Color:      scene.HexColor(p.Style),
		ShowPoints: p.Style.ShowPoints,
		Points:     geo.FormatPolyline(p.Points),
	})
}

// Clear tells the viewer to drop every track.
func (r *Renderer) Clear() {
	r.sendEnvelope(streaming.TypeClearScene, nil)
}

// SetGeometry sends the detector view and keeps it for reconnect replay.
func (r *Renderer) SetGeometry(v geometry.View) {
	data, err := marshalEnvelope(streaming.TypeGeometry, streaming.GeometryPayload(v))
	if err != nil {
		r.logger.Error("Dropping message", "type", streaming.TypeGeometry, "error", err)
		return
	}
	r.conn.setReplay(streaming.TypeGeometry, data)
	r.conn.send(data)
}

// Flush sends a sync message and waits for the viewer to acknowledge it.
// Messages are written in order, so the ack covers everything sent before.
func (r *Renderer) Flush(ctx context.Context) error {
	return r.sendEnvelopeAndWait(ctx, streaming.TypeSync, nil)
}
