package track

import (
	"fmt"

	"github.com/evdisplay/evd/pkg/core"
)

// Options controls how tracks are turned into polylines.
type Options struct {
	// MaxTracks caps the polylines produced by one call. Zero or negative
	// means no cap.
	MaxTracks int
	// MinPoints is the smallest polyline that is kept. Values below one
	// are treated as one.
	MinPoints int
	// UnitScale multiplies every coordinate. Zero is treated as one.
	UnitScale float64
	// ShowStepPoints marks styled tracks for step point rendering.
	ShowStepPoints bool
}

// DefaultOptions drops vertex-only tracks and keeps the stored units.
func DefaultOptions() Options {
	return Options{MinPoints: 2, UnitScale: 1}
}

func (o Options) normalized() Options {
	if o.MinPoints < 1 {
		o.MinPoints = 1
	}
	if o.UnitScale == 0 {
		o.UnitScale = 1
	}
	return o
}

// TrackName builds the display name of a track.
func TrackName(eventID, trackID, particle int) string {
	return fmt.Sprintf("%d_%d_%s", eventID, trackID, core.ParticleLabel(particle))
}

// collector gathers finished polylines for one call and enforces the
// minimum size and the track cap.
type collector struct {
	opts  Options
	lines []core.Polyline
}

func newCollector(opts Options) *collector {
	return &collector{opts: opts.normalized()}
}

// full reports whether the track cap has been reached.
func (c *collector) full() bool {
	return c.opts.MaxTracks > 0 && len(c.lines) >= c.opts.MaxTracks
}

func (c *collector) add(p core.Polyline) {
	if len(p.Points) < c.opts.MinPoints {
		return
	}
	p.Style = Classify(p.Particle, c.opts.ShowStepPoints)
	c.lines = append(c.lines, p)
}

func (c *collector) point(v core.Vec3) core.Vec3 {
	if c.opts.UnitScale == 1 {
		return v
	}
	return v.Scale(c.opts.UnitScale)
}

type trackKey struct {
	event int
	track int
}

func (k trackKey) less(o trackKey) bool {
	if k.event != o.event {
		return k.event < o.event
	}
	return k.track < o.track
}

// AssembleSteps groups flat step records into one polyline per
// (event, track) pair. index is the order in which records are visited and
// must sort them by event, track and step; nil computes it with SortIndex.
// A selector >= 0 restricts the scan to that event.
//
// The first record of a track contributes its pre-step position as the
// vertex, every following record its post-step position. Nothing is
// returned unless the whole scan succeeds.
func AssembleSteps(records []core.StepRecord, index []int, selector int, opts Options) ([]core.Polyline, error) {
	if index == nil {
		index = SortIndex(records)
	}
	if len(index) != len(records) {
		return nil, fmt.Errorf("%w: sort index has %d entries for %d records", ErrMalformedRecords, len(index), len(records))
	}

	c := newCollector(opts)

	var (
		current  core.Polyline
		key      trackKey
		active   bool
		lastStep int
	)

	for _, i := range index {
		if i < 0 || i >= len(records) {
			return nil, fmt.Errorf("%w: sort index entry %d out of bounds", ErrMalformedRecords, i)
		}
		rec := records[i]

		if selector >= 0 {
			if rec.EventID < selector {
				continue
			}
			if rec.EventID > selector {
				break
			}
		}

		next := trackKey{event: rec.EventID, track: rec.TrackID}
		if active && next == key {
			if rec.StepIndex <= lastStep {
				return nil, fmt.Errorf("%w: event %d track %d step %d follows step %d",
					ErrMalformedRecords, rec.EventID, rec.TrackID, rec.StepIndex, lastStep)
			}
			lastStep = rec.StepIndex
			current.Points = append(current.Points, c.point(rec.PostPos))
			continue
		}

		// New track
		if active {
			if next.less(key) {
				return nil, fmt.Errorf("%w: event %d track %d found after event %d track %d",
					ErrMalformedRecords, next.event, next.track, key.event, key.track)
			}
			c.add(current)
			active = false
			if c.full() {
				break
			}
		}

		key = next
		lastStep = rec.StepIndex
		active = true
		current = core.Polyline{
			Name:     TrackName(rec.EventID, rec.TrackID, rec.Particle),
			EventID:  rec.EventID,
			TrackID:  rec.TrackID,
			Particle: rec.Particle,
			Points:   []core.Vec3{c.point(rec.PrePos)},
		}
	}

	if active {
		c.add(current)
	}
	return c.lines, nil
}

// AssembleEvent builds one polyline per track of an embedded event record,
// primaries first and then secondaries: the vertex followed by every step
// position in track order.
func AssembleEvent(event core.EventRecord, opts Options) ([]core.Polyline, error) {
	c := newCollector(opts)
	seen := make(map[int]struct{}, len(event.Primaries)+len(event.Secondaries))

	for _, tracks := range [][]core.Track{event.Primaries, event.Secondaries} {
		for _, trk := range tracks {
			if c.full() {
				return c.lines, nil
			}
			if _, dup := seen[trk.ID]; dup {
				return nil, fmt.Errorf("%w: event %d has track %d more than once", ErrMalformedRecords, event.ID, trk.ID)
			}
			seen[trk.ID] = struct{}{}

			points := make([]core.Vec3, 0, len(trk.Steps)+1)
			points = append(points, c.point(trk.VertexPosition))
			for _, step := range trk.Steps {
				points = append(points, c.point(step.Position))
			}

			c.add(core.Polyline{
				Name:     TrackName(event.ID, trk.ID, trk.Particle),
				EventID:  event.ID,
				TrackID:  trk.ID,
				Particle: trk.Particle,
				Points:   points,
			})
		}
	}
	return c.lines, nil
}
