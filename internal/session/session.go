// Package session runs an interactive view session: it keeps the scene of
// the renderers in sync with the event the user asked for.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/evdisplay/evd/internal/channel"
	"github.com/evdisplay/evd/internal/dispatcher"
	"github.com/evdisplay/evd/internal/geometry"
	"github.com/evdisplay/evd/internal/logging"
	"github.com/evdisplay/evd/internal/scene"
	"github.com/evdisplay/evd/internal/track"
	"github.com/evdisplay/evd/pkg/core"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/evdisplay/evd/internal/session")

// errQuit ends Run without error.
var errQuit = errors.New("quit")

// Options configures a Session.
type Options struct {
	// View is sent to renderers that show geometry, once, at New.
	View *geometry.View

	// Attrs, when set, is updated with the event on display.
	Attrs *logging.SessionAttrs

	// CommandLog receives command logs. Defaults to a no-op logger.
	CommandLog dispatcher.Logger
}

// Session owns the scene shown by a set of renderers.
type Session struct {
	adapter *track.Adapter
	scene   scene.Multi
	view    *geometry.View
	attrs   *logging.SessionAttrs
	logger  *slog.Logger
	cmds    *dispatcher.Dispatcher

	shown    bool
	selector int
	tracks   int
}

// collector stages polylines so a failed event leaves the scene untouched.
type collector []core.Polyline

func (c *collector) AddPolyline(p core.Polyline) {
	*c = append(*c, p)
}

// New creates a session. Without an adapter only the geometry is shown and
// event commands fail.
func New(adapter *track.Adapter, renderers scene.Multi, opts Options, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cmdLog := opts.CommandLog
	if cmdLog == nil {
		cmdLog = logging.NewCommandLogger(zerolog.Nop())
	}

	d, err := dispatcher.New(cmdLog)
	if err != nil {
		return nil, fmt.Errorf("creating command dispatcher: %w", err)
	}

	s := &Session{
		adapter: adapter,
		scene:   renderers,
		view:    opts.View,
		attrs:   opts.Attrs,
		logger:  logger,
		cmds:    d,
	}
	s.registerCommands()

	if s.view != nil {
		renderers.SetGeometry(*s.view)
	}
	return s, nil
}

// ErrNoSimulation is returned by event commands when no simulation
// output was loaded.
var ErrNoSimulation = errors.New("no simulation output loaded")

// Show replaces the scene with the tracks of the selected event, or of
// every event when selector is negative. On error the previous scene is
// kept and the session stays usable.
func (s *Session) Show(ctx context.Context, selector int) (int, error) {
	if s.adapter == nil {
		return 0, ErrNoSimulation
	}

	ctx, span := tracer.Start(ctx, "Session.Show", trace.WithAttributes(
		attribute.Int("event.selector", selector),
	))
	defer span.End()

	var staged collector
	n, err := s.adapter.AddEvent(ctx, selector, &staged)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "event not shown")
		return 0, err
	}
	span.SetAttributes(attribute.Int("scene.tracks", n))

	s.scene.Clear()
	for _, p := range staged {
		s.scene.AddPolyline(p)
	}

	s.shown = true
	s.selector = selector
	s.tracks = n
	if s.attrs != nil {
		s.attrs.SetEvent(selector)
	}
	return n, nil
}

// Clear empties the scene.
func (s *Session) Clear() {
	s.scene.Clear()
	s.shown = false
	s.tracks = 0
}

// Export flushes every renderer that writes its scene somewhere.
func (s *Session) Export(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Session.Export", trace.WithAttributes(
		attribute.Int("scene.tracks", s.tracks),
	))
	defer span.End()

	if err := s.scene.Flush(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "export failed")
		return err
	}
	return nil
}

// Prompt returns the prompt for the current state.
func (s *Session) Prompt() string {
	switch {
	case !s.shown:
		return "evd [-] "
	case s.selector < 0:
		return "evd [all] "
	default:
		return "evd [" + strconv.Itoa(s.selector) + "] "
	}
}

// Exec runs one line of input. It returns errQuit for the quit command.
func (s *Session) Exec(ctx context.Context, line string) (string, error) {
	cmd, ok := dispatcher.Parse(line)
	if !ok {
		return "", nil
	}
	return s.cmds.Dispatch(ctx, cmd)
}

// Run reads commands from in until quit, EOF or ctx is done, writing
// prompts and results to out. Command failures are reported on out and
// do not end the session.
func (s *Session) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	lines, errc := channel.Lines(ctx, in, 16)

	for {
		fmt.Fprint(out, s.Prompt())

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return ctx.Err()
		case l, ok := <-lines.Receive():
			if !ok {
				fmt.Fprintln(out)
				return <-errc
			}
			line = l
		}

		result, err := s.Exec(ctx, line)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			s.logger.Warn("Command failed", "line", line, "error", err)
			fmt.Fprintf(out, "error: %v\n", err)
		case result != "":
			fmt.Fprintln(out, strings.TrimRight(result, "\n"))
		}
	}
}

func (s *Session) registerCommands() {
	s.cmds.Register("event", s.cmdEvent,
		dispatcher.Describe("event <n>", "show the tracks of event n"),
		dispatcher.Args(1, 1), dispatcher.Alias("e"), dispatcher.Logged())
	s.cmds.Register("all", s.cmdAll,
		dispatcher.Describe("all", "show the tracks of every event"),
		dispatcher.Args(0, 0), dispatcher.Logged())
	s.cmds.Register("steps", s.cmdSteps,
		dispatcher.Describe("steps on|off", "toggle step point markers"),
		dispatcher.Args(1, 1), dispatcher.Logged())
	s.cmds.Register("clear", s.cmdClear,
		dispatcher.Describe("clear", "remove every track from the scene"),
		dispatcher.Args(0, 0))
	s.cmds.Register("export", s.cmdExport,
		dispatcher.Describe("export", "write the scene to every output"),
		dispatcher.Args(0, 0), dispatcher.Logged())
	s.cmds.Register("help", s.cmdHelp,
		dispatcher.Describe("help", "list commands"),
		dispatcher.Alias("?"))
	s.cmds.Register("quit", s.cmdQuit,
		dispatcher.Describe("quit", "end the session"),
		dispatcher.Alias("exit", "q"))
}

func (s *Session) cmdEvent(ctx context.Context, cmd dispatcher.Command) (string, error) {
	n, err := strconv.Atoi(cmd.Args[0])
	if err != nil {
		return "", fmt.Errorf("%w: event <n>: %q is not a number", dispatcher.ErrUsage, cmd.Args[0])
	}
	return s.show(ctx, n)
}

func (s *Session) cmdAll(ctx context.Context, _ dispatcher.Command) (string, error) {
	return s.show(ctx, track.AllEvents)
}

func (s *Session) show(ctx context.Context, selector int) (string, error) {
	n, err := s.Show(ctx, selector)
	if err != nil {
		return "", err
	}
	if selector < 0 {
		return fmt.Sprintf("%d tracks from all events", n), nil
	}
	return fmt.Sprintf("%d tracks from event %d", n, selector), nil
}

func (s *Session) cmdSteps(ctx context.Context, cmd dispatcher.Command) (string, error) {
	var show bool
	switch strings.ToLower(cmd.Args[0]) {
	case "on":
		show = true
	case "off":
		show = false
	default:
		return "", fmt.Errorf("%w: steps on|off", dispatcher.ErrUsage)
	}
	if s.adapter == nil {
		return "", ErrNoSimulation
	}

	s.adapter.SetShowStepPoints(show)
	if !s.shown {
		return "step points " + cmd.Args[0], nil
	}
	// redraw so the new style applies
	return s.show(ctx, s.selector)
}

func (s *Session) cmdClear(context.Context, dispatcher.Command) (string, error) {
	s.Clear()
	return "scene cleared", nil
}

func (s *Session) cmdExport(ctx context.Context, _ dispatcher.Command) (string, error) {
	if err := s.Export(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("exported %d tracks", s.tracks), nil
}

func (s *Session) cmdHelp(context.Context, dispatcher.Command) (string, error) {
	return s.cmds.HelpText(), nil
}

func (s *Session) cmdQuit(context.Context, dispatcher.Command) (string, error) {
	return "", errQuit
}
