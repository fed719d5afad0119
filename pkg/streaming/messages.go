package streaming

import (
	"encoding/json"

	"github.com/evdisplay/evd/internal/geometry"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeGeometry     = "geometry"
	TypeAddTrack     = "add_track"
	TypeClearScene   = "clear_scene"
	TypeSync         = "sync"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload identifies the display session and its geometry.
type StartSessionPayload struct {
	Session  string `json:"session"`
	Geometry string `json:"geometry,omitempty"`
}

// GeometryPayload carries the detector view.
type GeometryPayload = geometry.View

// TrackPayload carries one track polyline.
type TrackPayload struct {
	Name       string       `json:"name"`
	EventID    int          `json:"eventId"`
	TrackID    int          `json:"trackId"`
	Particle   int          `json:"pdg"`
	Family     string       `json:"family"`
	Color      string       `json:"color"`
	ShowPoints bool         `json:"showPoints"`
	Points     [][3]float64 `json:"points"`
}
