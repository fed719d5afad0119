// pkg/core/polyline.go
package core

import "image/color"

// Style is the rendering classification of a track.
type Style struct {
	Family     string
	Color      color.RGBA
	ShowPoints bool
}

// Polyline is the renderable form of one track: its points in step order.
type Polyline struct {
	Name     string
	EventID  int
	TrackID  int
	Particle int
	Style    Style
	Points   []Vec3
}

// Len returns the number of points.
func (p *Polyline) Len() int {
	return len(p.Points)
}
