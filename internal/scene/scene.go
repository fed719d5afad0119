// Package scene defines the rendering collaborators that receive assembled
// track polylines. Renderers are fire-and-forget: AddPolyline never fails,
// problems are logged by the renderer itself and surface on Flush.
package scene

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/evdisplay/evd/internal/geometry"
	"github.com/evdisplay/evd/pkg/core"
)

// Renderer receives polylines for display.
type Renderer interface {
	AddPolyline(p core.Polyline)
	Clear()
}

// GeometrySetter is implemented by renderers that show the detector view.
type GeometrySetter interface {
	SetGeometry(v geometry.View)
}

// Flusher is implemented by renderers that write their scene somewhere.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Closer is implemented by renderers holding connections or files.
type Closer interface {
	Close() error
}

// Multi fans every call out to a list of renderers.
type Multi []Renderer

// AddPolyline implements Renderer.
func (m Multi) AddPolyline(p core.Polyline) {
	for _, r := range m {
		r.AddPolyline(p)
	}
}

// Clear implements Renderer.
func (m Multi) Clear() {
	for _, r := range m {
		r.Clear()
	}
}

// SetGeometry forwards v to every renderer that shows geometry.
func (m Multi) SetGeometry(v geometry.View) {
	for _, r := range m {
		if g, ok := r.(GeometrySetter); ok {
			g.SetGeometry(v)
		}
	}
}

// Flush flushes every renderer that supports it and joins their errors.
func (m Multi) Flush(ctx context.Context) error {
	var errs []error
	for _, r := range m {
		if f, ok := r.(Flusher); ok {
			if err := f.Flush(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every renderer that supports it and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if c, ok := r.(Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// HexColor formats the style color as #rrggbb.
func HexColor(s core.Style) string {
	return fmt.Sprintf("#%02x%02x%02x", s.Color.R, s.Color.G, s.Color.B)
}

// PathLength returns the summed segment length of p.
func PathLength(p core.Polyline) float64 {
	var length float64
	for i := 1; i < len(p.Points); i++ {
		a, b := p.Points[i-1], p.Points[i]
		length += math.Sqrt((b.X-a.X)*(b.X-a.X) + (b.Y-a.Y)*(b.Y-a.Y) + (b.Z-a.Z)*(b.Z-a.Z))
	}
	return length
}
