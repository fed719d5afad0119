package influx

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/evdisplay/evd/internal/scene"
	"github.com/evdisplay/evd/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// TrackMeasurement is the measurement name of track points.
const TrackMeasurement = "track"

// TrackPoint builds the statistics point of one displayed track.
func TrackPoint(p core.Polyline, session string, ts time.Time) *influxdb2_write.Point {
	point := influxdb2_write.NewPointWithMeasurement(TrackMeasurement).
		AddTag("event", strconv.Itoa(p.EventID)).
		AddTag("particle", core.ParticleLabel(p.Particle)).
		AddTag("family", p.Style.Family).
		AddField("track_id", p.TrackID).
		AddField("pdg", p.Particle).
		AddField("points", len(p.Points)).
		AddField("length", scene.PathLength(p)).
		SetTime(ts)
	if session != "" {
		point.AddTag("session", session)
	}
	return point
}

// Sink is a renderer that records track statistics instead of drawing.
type Sink struct {
	m       *Manager
	session string
	logger  *slog.Logger
	now     func() time.Time
}

// NewSink wraps a connected Manager.
func NewSink(m *Manager, session string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{m: m, session: session, logger: logger, now: time.Now}
}

// AddPolyline writes one track point.
func (s *Sink) AddPolyline(p core.Polyline) {
	point := TrackPoint(p, s.session, s.now())
	if err := s.m.WritePoint(context.Background(), TrackBucket, point); err != nil {
		s.logger.Error("Failed to write track point", "track", p.Name, "error", err)
	}
}

// Clear is a no-op: statistics already written stay written.
func (s *Sink) Clear() {}

// Flush pushes buffered points out.
func (s *Sink) Flush(_ context.Context) error {
	return s.m.Flush()
}

// Close flushes and disconnects.
func (s *Sink) Close() error {
	return s.m.Close()
}
