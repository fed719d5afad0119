// Command evd shows the tracks of simulated particle events on top of a
// GDML detector geometry.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const appName = "evd"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is main without the process globals. It returns the exit code.
func run(args []string, in io.Reader, out, errOut io.Writer) int {
	opts, fs, err := parseArgs(args, errOut)
	switch {
	case errors.Is(err, errNoArgs):
		printUsage(errOut)
		return 1
	case err != nil:
		fmt.Fprintf(errOut, "error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(opts, fs, out, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return 1
	}
	defer a.close()

	a.logger.Info("evd started",
		"geometry", opts.geometry,
		"input", opts.simInput,
		"event", opts.event,
		"batch", opts.batch,
	)
	return a.run(ctx, in)
}
