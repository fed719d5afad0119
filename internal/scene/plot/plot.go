// Package plot renders the track scene as orthogonal projections saved as
// PNG files.
package plot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/evdisplay/evd/internal/queue"
	"github.com/evdisplay/evd/pkg/core"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Projection maps a detector point onto a plane.
type Projection struct {
	Name   string
	XLabel string
	YLabel string
	Map    func(core.Vec3) (float64, float64)
}

// Projections are the views written by Flush.
var Projections = []Projection{
	{Name: "xy", XLabel: "x", YLabel: "y", Map: func(v core.Vec3) (float64, float64) { return v.X, v.Y }},
	{Name: "zy", XLabel: "z", YLabel: "y", Map: func(v core.Vec3) (float64, float64) { return v.Z, v.Y }},
	{Name: "xz", XLabel: "x", YLabel: "z", Map: func(v core.Vec3) (float64, float64) { return v.X, v.Z }},
}

// Config holds configuration for the plot renderer.
type Config struct {
	OutputDir string
	Prefix    string
	Unit      string
}

// Renderer collects polylines and draws them on Flush.
type Renderer struct {
	cfg    Config
	tracks *queue.Queue[core.Polyline]
}

// New creates a plot renderer.
func New(cfg Config) *Renderer {
	if cfg.Prefix == "" {
		cfg.Prefix = "evd"
	}
	return &Renderer{
		cfg:    cfg,
		tracks: queue.New[core.Polyline](),
	}
}

// AddPolyline adds p to the next drawing.
func (r *Renderer) AddPolyline(p core.Polyline) {
	r.tracks.Push(p)
}

// Clear removes every track.
func (r *Renderer) Clear() {
	r.tracks.Clear()
}

// Path returns the file a projection is written to.
func (r *Renderer) Path(proj Projection) string {
	return filepath.Join(r.cfg.OutputDir, fmt.Sprintf("%s_%s.png", r.cfg.Prefix, proj.Name))
}

// Flush draws every projection of the current tracks.
func (r *Renderer) Flush(ctx context.Context) error {
	if err := os.MkdirAll(r.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tracks := r.tracks.Snapshot()
	for _, proj := range Projections {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.draw(proj, tracks); err != nil {
			return fmt.Errorf("%s projection: %w", proj.Name, err)
		}
	}
	return nil
}

func (r *Renderer) draw(proj Projection, tracks []core.Polyline) error {
	p := plot.New()
	p.Title.Text = title(proj, tracks)
	p.X.Label.Text = axisLabel(proj.XLabel, r.cfg.Unit)
	p.Y.Label.Text = axisLabel(proj.YLabel, r.cfg.Unit)

	legend := map[string]bool{}
	var bounds box
	for _, trk := range tracks {
		pts := make(plotter.XYs, 0, len(trk.Points))
		for _, v := range trk.Points {
			x, y := proj.Map(v)
			pts = append(pts, plotter.XY{X: x, Y: y})
			bounds.add(x, y)
		}
		if len(pts) == 0 {
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("track %s: %w", trk.Name, err)
		}
		line.Color = trk.Style.Color
		line.Width = vg.Points(1)
		p.Add(line)

		if trk.Style.ShowPoints {
			scatter, err := plotter.NewScatter(pts)
			if err != nil {
				return fmt.Errorf("track %s points: %w", trk.Name, err)
			}
			scatter.GlyphStyle.Color = trk.Style.Color
			scatter.GlyphStyle.Radius = vg.Points(1.5)
			p.Add(scatter)
		}

		if family := trk.Style.Family; family != "" && !legend[family] {
			legend[family] = true
			p.Legend.Add(family, line)
		}
	}

	bounds.apply(p)
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(8*vg.Inch, 8*vg.Inch, r.Path(proj)); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

func title(proj Projection, tracks []core.Polyline) string {
	var events []int
	for _, t := range tracks {
		if !slices.Contains(events, t.EventID) {
			events = append(events, t.EventID)
		}
	}
	slices.Sort(events)

	name := strings.ToUpper(proj.Name)
	switch {
	case len(events) == 0:
		return name + " - empty scene"
	case len(events) == 1:
		return fmt.Sprintf("%s - event %d, %d tracks", name, events[0], len(tracks))
	default:
		ids := make([]string, len(events))
		for i, e := range events {
			ids[i] = strconv.Itoa(e)
		}
		return fmt.Sprintf("%s - events %s, %d tracks", name, strings.Join(ids, ","), len(tracks))
	}
}

func axisLabel(axis, unit string) string {
	if unit == "" {
		return axis
	}
	return fmt.Sprintf("%s (%s)", axis, unit)
}

// box is the data range of a projection. Empty or flat ranges get a unit
// margin so the axes stay drawable.
type box struct {
	set                    bool
	minX, maxX, minY, maxY float64
}

func (b *box) add(x, y float64) {
	if !b.set {
		b.minX, b.maxX, b.minY, b.maxY = x, x, y, y
		b.set = true
		return
	}
	b.minX = min(b.minX, x)
	b.maxX = max(b.maxX, x)
	b.minY = min(b.minY, y)
	b.maxY = max(b.maxY, y)
}

func (b *box) apply(p *plot.Plot) {
	if !b.set {
		p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = -1, 1, -1, 1
		return
	}
	if b.minX == b.maxX {
		p.X.Min, p.X.Max = b.minX-1, b.maxX+1
	}
	if b.minY == b.maxY {
		p.Y.Min, p.Y.Max = b.minY-1, b.maxY+1
	}
}
