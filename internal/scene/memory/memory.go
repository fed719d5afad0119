// internal/scene/memory/memory.go
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/evdisplay/evd/internal/geometry"
	"github.com/evdisplay/evd/internal/queue"
	"github.com/evdisplay/evd/pkg/core"
	"github.com/google/uuid"
)

// Config holds configuration for the memory renderer.
type Config struct {
	OutputDir      string
	CompressOutput bool
}

// Renderer keeps the current scene in memory and exports it as JSON.
type Renderer struct {
	cfg     Config
	session uuid.UUID
	created time.Time

	tracks *queue.Queue[core.Polyline]

	mu             sync.RWMutex
	view           *geometry.View
	exports        int
	lastExportPath string
}

// New creates a new memory renderer with a fresh session id.
func New(cfg Config) *Renderer {
	return &Renderer{
		cfg:     cfg,
		session: uuid.New(),
		created: time.Now().UTC(),
		tracks:  queue.New[core.Polyline](),
	}
}

// AddPolyline stores p in the scene.
func (r *Renderer) AddPolyline(p core.Polyline) {
	r.tracks.Push(p)
}

// Clear removes every track from the scene. The geometry view is kept.
func (r *Renderer) Clear() {
	r.tracks.Clear()
}

// SetGeometry records the detector view shown with the tracks.
func (r *Renderer) SetGeometry(v geometry.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = &v
}

// Session returns the session id written into every export.
func (r *Renderer) Session() uuid.UUID {
	return r.session
}

// Len returns the number of tracks in the scene.
func (r *Renderer) Len() int {
	return r.tracks.Len()
}

// Tracks returns a copy of the tracks in the scene, in insertion order.
func (r *Renderer) Tracks() []core.Polyline {
	return r.tracks.Snapshot()
}

// Flush writes the current scene to a new file in the output directory.
func (r *Renderer) Flush(_ context.Context) error {
	return r.exportJSON()
}

// GetExportedFilePath returns the path of the last written export.
func (r *Renderer) GetExportedFilePath() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastExportPath
}
