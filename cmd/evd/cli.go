package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/evdisplay/evd/internal/config"
	"github.com/evdisplay/evd/internal/database"
	"github.com/spf13/pflag"
)

var (
	// ErrMissingRequiredInput is returned when no geometry file was given.
	ErrMissingRequiredInput = errors.New("missing required input: geometry file (*.gdml)")

	// errNoArgs makes main print the usage.
	errNoArgs = errors.New("no arguments")
)

// cliOptions is the parsed command line.
type cliOptions struct {
	geometry  string
	simInput  string
	event     int
	vis       int
	steps     bool
	cms       bool
	maxTracks int
	batch     bool
	configDir string
}

const usageHeader = `Usage: evd [flags] <geometry.gdml> [simulation.db | postgres DSN]

Shows the tracks of a simulated event on top of a detector geometry.

Flags:
`

func newFlagSet(opts *cliOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet("evd", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.IntVarP(&opts.event, "event", "e", 0, "event to show, negative shows every event")
	fs.IntVarP(&opts.vis, "vis", "v", 1, "geometry visibility depth")
	fs.BoolVarP(&opts.steps, "steps", "s", false, "mark step points on tracks")
	fs.BoolVar(&opts.cms, "cms", false, "use the CMS detector view")
	fs.IntVarP(&opts.maxTracks, "max-tracks", "n", 0, "stop after this many tracks, 0 for no limit")
	fs.BoolVar(&opts.batch, "batch", false, "export the scene and exit without a prompt")
	fs.StringVar(&opts.configDir, "config", ".", "directory holding "+config.FileName)
	return fs
}

// printUsage writes the usage text and flag defaults to w.
func printUsage(w io.Writer) {
	var opts cliOptions
	fs := newFlagSet(&opts)
	fs.SetOutput(w)
	fmt.Fprint(w, usageHeader)
	fs.PrintDefaults()
}

// parseArgs parses the command line. Unknown flags and arguments are
// reported on warn and skipped. The returned FlagSet is for viper binding.
func parseArgs(args []string, warn io.Writer) (cliOptions, *pflag.FlagSet, error) {
	var opts cliOptions
	if len(args) == 0 {
		return opts, nil, errNoArgs
	}

	fs := newFlagSet(&opts)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	if err := fs.Parse(dropUnknownFlags(fs, args, warn)); err != nil {
		return opts, nil, err
	}

	for _, arg := range fs.Args() {
		switch {
		case strings.HasSuffix(strings.ToLower(arg), ".gdml"):
			if opts.geometry != "" {
				fmt.Fprintf(warn, "warning: replacing geometry %s with %s\n", opts.geometry, arg)
			}
			opts.geometry = arg
		case isSimInput(arg):
			if opts.simInput != "" {
				fmt.Fprintf(warn, "warning: replacing simulation input %s with %s\n", opts.simInput, arg)
			}
			opts.simInput = arg
		default:
			fmt.Fprintf(warn, "warning: ignoring unknown argument %q\n", arg)
		}
	}

	if opts.geometry == "" {
		return opts, fs, ErrMissingRequiredInput
	}
	return opts, fs, nil
}

func isSimInput(arg string) bool {
	lower := strings.ToLower(arg)
	for _, ext := range []string{".db", ".sqlite", ".sqlite3"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return database.IsPostgresDSN(arg)
}

// dropUnknownFlags removes flags fs does not define, warning for each.
// The value of a known flag is kept even when it starts with a dash, so
// "-e -1" still selects every event.
func dropUnknownFlags(fs *pflag.FlagSet, args []string, warn io.Writer) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			out = append(out, args[i:]...)
			break
		}
		if len(arg) < 2 || arg[0] != '-' || isNumber(arg) {
			out = append(out, arg)
			continue
		}

		// single-dash long names, as in "-vis 2" or "-cms"
		if arg[1] != '-' && len(arg) > 2 {
			name, _, _ := strings.Cut(arg[1:], "=")
			if len(name) > 1 && fs.Lookup(name) != nil {
				arg = "-" + arg
			}
		}

		var (
			flag     *pflag.Flag
			hasValue bool
		)
		if strings.HasPrefix(arg, "--") {
			name, _, found := strings.Cut(arg[2:], "=")
			flag, hasValue = fs.Lookup(name), found
		} else {
			flag, hasValue = fs.ShorthandLookup(arg[1:2]), len(arg) > 2
		}

		if flag == nil {
			fmt.Fprintf(warn, "warning: ignoring unknown flag %s\n", arg)
			continue
		}
		out = append(out, arg)
		if !hasValue && flag.NoOptDefVal == "" && i+1 < len(args) {
			i++
			out = append(out, args[i])
		}
	}
	return out
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
