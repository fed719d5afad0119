package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrUnknownCommand is returned by Dispatch for unregistered names.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrUsage is returned when a command gets the wrong number of arguments.
	ErrUsage = errors.New("usage")
)

// Command is one line of user input split into a name and arguments.
type Command struct {
	Name     string
	Args     []string
	Received time.Time
}

// Parse splits line on whitespace. The name is lowercased.
// ok is false for blank lines.
func Parse(line string) (cmd Command, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{
		Name:     strings.ToLower(fields[0]),
		Args:     fields[1:],
		Received: time.Now(),
	}, true
}

// HandlerFunc runs a command and returns the text shown to the user.
type HandlerFunc func(context.Context, Command) (string, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	usage   string
	summary string
	minArgs int
	maxArgs int
	logged  bool
	aliases []string
}

// Describe sets the help text of a command.
func Describe(usage, summary string) Option {
	return func(c *config) {
		c.usage = usage
		c.summary = summary
	}
}

// Args bounds the argument count. A negative max means unbounded.
func Args(minArgs, maxArgs int) Option {
	return func(c *config) {
		c.minArgs = minArgs
		c.maxArgs = maxArgs
	}
}

// Alias registers additional names for the command.
func Alias(names ...string) Option {
	return func(c *config) {
		c.aliases = append(c.aliases, names...)
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Help is the description of one registered command.
type Help struct {
	Name    string
	Usage   string
	Summary string
}

type entry struct {
	handler HandlerFunc
	help    Help
}

// Dispatcher routes commands to registered handlers.
type Dispatcher struct {
	handlers map[string]*entry
	names    []string
	logger   Logger

	processed metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]*entry),
		logger:   logger,
	}

	m := otel.Meter("github.com/evdisplay/evd/internal/dispatcher")

	var err error

	d.processed, err = m.Int64Counter(
		"dispatcher.commands.processed",
		metric.WithDescription("Total commands processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.commands.failed",
		metric.WithDescription("Total commands that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	d.duration, err = m.Float64Histogram(
		"dispatcher.commands.duration",
		metric.WithDescription("Command run time"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
func (d *Dispatcher) Register(name string, h HandlerFunc, opts ...Option) {
	cfg := &config{maxArgs: -1}
	for _, opt := range opts {
		opt(cfg)
	}

	usage := cfg.usage
	if usage == "" {
		usage = name
	}

	handler := d.withArgs(usage, cfg.minArgs, cfg.maxArgs, h)
	if cfg.logged {
		handler = d.withLogging(name, handler)
	}

	e := &entry{
		handler: handler,
		help:    Help{Name: name, Usage: usage, Summary: cfg.summary},
	}
	if _, exists := d.handlers[name]; !exists {
		d.names = append(d.names, name)
	}
	d.handlers[name] = e
	for _, alias := range cfg.aliases {
		d.handlers[alias] = e
	}
}

// Dispatch routes a command to its registered handler.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (string, error) {
	e, ok := d.handlers[cmd.Name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
	}

	start := time.Now()
	result, err := e.handler(ctx, cmd)

	nameAttr := metric.WithAttributes(attribute.String("command", e.help.Name))
	d.processed.Add(ctx, 1, nameAttr)
	d.duration.Record(ctx, time.Since(start).Seconds(), nameAttr)
	if err != nil {
		d.failed.Add(ctx, 1, nameAttr)
	}
	return result, err
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(name string) bool {
	_, ok := d.handlers[name]
	return ok
}

// Commands lists the registered commands in registration order.
func (d *Dispatcher) Commands() []Help {
	out := make([]Help, 0, len(d.names))
	for _, name := range d.names {
		out = append(out, d.handlers[name].help)
	}
	return out
}

// HelpText renders Commands as an aligned two-column listing.
func (d *Dispatcher) HelpText() string {
	cmds := d.Commands()
	width := 0
	for _, c := range cmds {
		width = max(width, len(c.Usage))
	}

	var b strings.Builder
	for _, c := range cmds {
		fmt.Fprintf(&b, "  %-*s  %s\n", width, c.Usage, c.Summary)
	}
	return b.String()
}

// Names returns every registered name including aliases, sorted.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (d *Dispatcher) withArgs(usage string, minArgs, maxArgs int, h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, cmd Command) (string, error) {
		n := len(cmd.Args)
		if n < minArgs || (maxArgs >= 0 && n > maxArgs) {
			return "", fmt.Errorf("%w: %s", ErrUsage, usage)
		}
		return h(ctx, cmd)
	}
}

func (d *Dispatcher) withLogging(name string, h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, cmd Command) (string, error) {
		start := time.Now()
		d.logger.Debug("handling command", "command", name, "args", len(cmd.Args))

		result, err := h(ctx, cmd)

		if err != nil {
			d.logger.Error("command failed", "command", name, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("command complete", "command", name, "duration", time.Since(start))
		}

		return result, err
	}
}
