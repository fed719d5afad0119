package track

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evdisplay/evd/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Table names recognized in simulation output.
const (
	TableEvents = "events"
	TableSteps  = "steps"
)

// Schema is the layout of the simulation output behind an Adapter.
type Schema int

const (
	// SchemaEvents stores one record per event with its tracks embedded.
	SchemaEvents Schema = iota + 1
	// SchemaSteps stores one flat row per step.
	SchemaSteps
)

func (s Schema) String() string {
	switch s {
	case SchemaEvents:
		return TableEvents
	case SchemaSteps:
		return TableSteps
	default:
		return "unknown"
	}
}

// Source is read access to a simulation output file.
type Source interface {
	HasTable(name string) bool

	EventCount(ctx context.Context) (int, error)
	EventAt(ctx context.Context, i int) (core.EventRecord, error)

	// Steps returns every step record in storage order.
	Steps(ctx context.Context) ([]core.StepRecord, error)
}

// SortIndexer is implemented by sources that can order step records
// themselves. The returned permutation indexes the slice returned by Steps.
type SortIndexer interface {
	SortIndex(ctx context.Context) ([]int, error)
}

// Renderer receives finished polylines.
type Renderer interface {
	AddPolyline(p core.Polyline)
}

// Adapter turns events of one simulation output into polylines. The schema
// is detected once, when the Adapter is built.
type Adapter struct {
	src    Source
	schema Schema
	opts   Options
	logger *slog.Logger

	emitted metric.Int64Counter
	calls   metric.Int64Counter
}

// NewAdapter inspects src and selects the matching schema. The events table
// wins when both are present.
func NewAdapter(src Source, opts Options, logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var schema Schema
	switch {
	case src.HasTable(TableEvents):
		schema = SchemaEvents
	case src.HasTable(TableSteps):
		schema = SchemaSteps
	default:
		return nil, fmt.Errorf("%w: no %q or %q table", ErrUnsupportedSchema, TableEvents, TableSteps)
	}

	a := &Adapter{
		src:    src,
		schema: schema,
		opts:   opts,
		logger: logger,
	}

	m := meter()

	var err error
	a.emitted, err = m.Int64Counter(
		"evd.tracks.emitted",
		metric.WithDescription("Polylines handed to renderers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating emitted counter: %w", err)
	}

	a.calls, err = m.Int64Counter(
		"evd.events.added",
		metric.WithDescription("AddEvent calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating calls counter: %w", err)
	}

	logger.Debug("Simulation schema detected", "schema", schema.String())
	return a, nil
}

// Schema returns the detected schema.
func (a *Adapter) Schema() Schema {
	return a.schema
}

// Options returns the current assembly options.
func (a *Adapter) Options() Options {
	return a.opts
}

// SetShowStepPoints changes step point rendering for later AddEvent calls.
func (a *Adapter) SetShowStepPoints(show bool) {
	a.opts.ShowStepPoints = show
}

// AddEvent assembles the tracks of the selected event, or of every event
// when selector is negative, and hands them to r. It returns the number of
// polylines handed over. On error nothing is handed over.
func (a *Adapter) AddEvent(ctx context.Context, selector int, r Renderer) (int, error) {
	start := time.Now()
	schemaAttr := attribute.String("schema", a.schema.String())
	a.calls.Add(ctx, 1, metric.WithAttributes(schemaAttr))

	var (
		lines []core.Polyline
		err   error
	)
	switch a.schema {
	case SchemaEvents:
		lines, err = a.eventTracks(ctx, selector)
	case SchemaSteps:
		lines, err = a.stepTracks(ctx, selector)
	}
	if err != nil {
		return 0, err
	}

	for _, line := range lines {
		r.AddPolyline(line)
	}
	a.emitted.Add(ctx, int64(len(lines)), metric.WithAttributes(schemaAttr))

	a.logger.Info("Event added",
		"event", selector,
		"schema", a.schema.String(),
		"tracks", len(lines),
		"duration", time.Since(start),
	)
	return len(lines), nil
}

func (a *Adapter) eventTracks(ctx context.Context, selector int) ([]core.Polyline, error) {
	n, err := a.src.EventCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	first, last, err := EventRange(selector, n)
	if err != nil {
		return nil, err
	}

	var lines []core.Polyline
	for i := first; i < last; i++ {
		opts := a.opts
		if a.opts.MaxTracks > 0 {
			opts.MaxTracks = a.opts.MaxTracks - len(lines)
			if opts.MaxTracks <= 0 {
				break
			}
		}

		event, err := a.src.EventAt(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("reading event entry %d: %w", i, err)
		}

		eventLines, err := AssembleEvent(event, opts)
		if err != nil {
			return nil, err
		}
		lines = append(lines, eventLines...)
	}
	return lines, nil
}

func (a *Adapter) stepTracks(ctx context.Context, selector int) ([]core.Polyline, error) {
	records, err := a.src.Steps(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading steps: %w", err)
	}

	if err := CheckStepSelection(records, selector); err != nil {
		return nil, err
	}

	var index []int
	if indexer, ok := a.src.(SortIndexer); ok {
		index, err = indexer.SortIndex(ctx)
		if err != nil {
			return nil, fmt.Errorf("building sort index: %w", err)
		}
	} else {
		index = SortIndex(records)
	}

	return AssembleSteps(records, index, selector, a.opts)
}
