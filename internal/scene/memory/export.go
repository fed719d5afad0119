// internal/scene/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/evdisplay/evd/internal/geo"
	"github.com/evdisplay/evd/internal/geometry"
	"github.com/evdisplay/evd/internal/scene"
	"github.com/evdisplay/evd/pkg/core"
)

// SceneExport is the root JSON structure
type SceneExport struct {
	Session    string         `json:"session"`
	CreatedAt  time.Time      `json:"createdAt"`
	ExportedAt time.Time      `json:"exportedAt"`
	Geometry   *geometry.View `json:"geometry,omitempty"`
	Events     []int          `json:"events"`
	Tracks     []TrackJSON    `json:"tracks"`
}

// TrackJSON represents one track polyline
type TrackJSON struct {
	Name       string       `json:"name"`
	EventID    int          `json:"eventId"`
	TrackID    int          `json:"trackId"`
	Particle   int          `json:"pdg"`
	Label      string       `json:"label"`
	Family     string       `json:"family"`
	Color      string       `json:"color"`
	ShowPoints bool         `json:"showPoints"`
	Length     float64      `json:"length"`
	Points     [][3]float64 `json:"points"`
	WKT        string       `json:"wkt"`
}

// exportJSON writes the scene to a JSON file, gzipped when configured
func (r *Renderer) exportJSON() error {
	export := r.buildExport()

	r.mu.Lock()
	r.exports++
	n := r.exports
	r.mu.Unlock()

	filename := fmt.Sprintf("scene_%s_%03d.json", r.session.String()[:8], n)
	if r.cfg.CompressOutput {
		filename += ".gz"
	}

	outputPath := filepath.Join(r.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(r.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if r.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.lastExportPath = outputPath
	r.mu.Unlock()
	return nil
}

func (r *Renderer) buildExport() SceneExport {
	r.mu.RLock()
	view := r.view
	r.mu.RUnlock()

	tracks := r.tracks.Snapshot()
	export := SceneExport{
		Session:    r.session.String(),
		CreatedAt:  r.created,
		ExportedAt: time.Now().UTC(),
		Geometry:   view,
		Events:     make([]int, 0),
		Tracks:     make([]TrackJSON, 0, len(tracks)),
	}

	for _, p := range tracks {
		if !slices.Contains(export.Events, p.EventID) {
			export.Events = append(export.Events, p.EventID)
		}
		export.Tracks = append(export.Tracks, TrackJSON{
			Name:       p.Name,
			EventID:    p.EventID,
			TrackID:    p.TrackID,
			Particle:   p.Particle,
			Label:      core.ParticleLabel(p.Particle),
			Family:     p.Style.Family,
			Color:      scene.HexColor(p.Style),
			ShowPoints: p.Style.ShowPoints,
			Length:     scene.PathLength(p),
			Points:     geo.FormatPolyline(p.Points),
			WKT:        geo.WKT(p.Points),
		})
	}
	slices.Sort(export.Events)

	return export
}

func writeJSON(path string, data SceneExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	encoder := json.NewEncoder(f)
	if err := encoder.Encode(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeGzipJSON(path string, data SceneExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := encodeGzip(f, data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// encodeGzip writes data as gzipped JSON. The deflate output and footer
// reach w only on Close, so its error is the one that matters.
func encodeGzip(w io.Writer, data SceneExport) error {
	gzWriter := gzip.NewWriter(w)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		_ = gzWriter.Close()
		return err
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return nil
}
