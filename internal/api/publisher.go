package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/evdisplay/evd/pkg/core"
)

// ErrNothingExported is returned by Flush when no scene file exists yet.
var ErrNothingExported = errors.New("no exported scene to upload")

// Publisher uploads the newest exported scene on every Flush. It must be
// placed after the renderer that writes the file.
type Publisher struct {
	client   *Client
	exported func() string
	meta     SceneMetadata
	logger   *slog.Logger

	mu     sync.Mutex
	tracks int
}

// NewPublisher creates a publisher. exported returns the path of the most
// recent scene file.
func NewPublisher(client *Client, exported func() string, meta SceneMetadata, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, exported: exported, meta: meta, logger: logger}
}

// AddPolyline counts the tracks of the scene.
func (p *Publisher) AddPolyline(core.Polyline) {
	p.mu.Lock()
	p.tracks++
	p.mu.Unlock()
}

// Clear resets the track count.
func (p *Publisher) Clear() {
	p.mu.Lock()
	p.tracks = 0
	p.mu.Unlock()
}

// Flush uploads the last exported scene.
func (p *Publisher) Flush(ctx context.Context) error {
	path := p.exported()
	if path == "" {
		return ErrNothingExported
	}

	meta := p.meta
	p.mu.Lock()
	meta.Tracks = p.tracks
	p.mu.Unlock()

	if err := p.client.Upload(ctx, path, meta); err != nil {
		return err
	}
	p.logger.Info("Scene uploaded", "file", path, "tracks", meta.Tracks)
	return nil
}
