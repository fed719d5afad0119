package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs_NoArgs(t *testing.T) {
	_, _, err := parseArgs(nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, errNoArgs)
}

func TestParseArgs_MissingGeometry(t *testing.T) {
	_, _, err := parseArgs([]string{"sim.db", "-e", "2"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrMissingRequiredInput)
}

func TestParseArgs_Defaults(t *testing.T) {
	opts, fs, err := parseArgs([]string{"detector.gdml"}, &bytes.Buffer{})
	require.NoError(t, err)
	require.NotNil(t, fs)

	assert.Equal(t, "detector.gdml", opts.geometry)
	assert.Empty(t, opts.simInput)
	assert.Equal(t, 0, opts.event)
	assert.Equal(t, 1, opts.vis)
	assert.False(t, opts.steps)
	assert.False(t, opts.cms)
	assert.False(t, opts.batch)
	assert.Equal(t, ".", opts.configDir)
}

func TestParseArgs_Flags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want cliOptions
	}{
		{
			name: "short flags",
			args: []string{"-e", "3", "-s", "-v", "2", "det.gdml", "run.db"},
			want: cliOptions{geometry: "det.gdml", simInput: "run.db", event: 3, vis: 2, steps: true},
		},
		{
			name: "negative event selects all",
			args: []string{"det.gdml", "run.sqlite", "-e", "-1"},
			want: cliOptions{geometry: "det.gdml", simInput: "run.sqlite", event: -1, vis: 1},
		},
		{
			name: "single dash long names",
			args: []string{"-vis", "3", "-cms", "det.GDML"},
			want: cliOptions{geometry: "det.GDML", vis: 3, cms: true},
		},
		{
			name: "double dash long names",
			args: []string{"--event=4", "--max-tracks", "10", "--batch", "det.gdml", "postgres"},
			want: cliOptions{geometry: "det.gdml", simInput: "postgres", event: 4, vis: 1, maxTracks: 10, batch: true},
		},
		{
			name: "postgres url",
			args: []string{"det.gdml", "postgres://evd@localhost/evd"},
			want: cliOptions{geometry: "det.gdml", simInput: "postgres://evd@localhost/evd", vis: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var warn bytes.Buffer
			got, _, err := parseArgs(tt.args, &warn)
			require.NoError(t, err)

			tt.want.configDir = "."
			assert.Equal(t, tt.want, got)
			assert.Empty(t, warn.String())
		})
	}
}

func TestParseArgs_UnknownInputsWarn(t *testing.T) {
	var warn bytes.Buffer
	opts, _, err := parseArgs([]string{"-x", "--zoom", "det.gdml", "run.root", "-e", "1"}, &warn)
	require.NoError(t, err)

	assert.Equal(t, "det.gdml", opts.geometry)
	assert.Empty(t, opts.simInput)
	assert.Equal(t, 1, opts.event)

	text := warn.String()
	assert.Contains(t, text, "unknown flag -x")
	assert.Contains(t, text, "unknown flag --zoom")
	assert.Contains(t, text, `unknown argument "run.root"`)
}

func TestParseArgs_ReplacedInputsWarn(t *testing.T) {
	var warn bytes.Buffer
	opts, _, err := parseArgs([]string{"a.gdml", "b.gdml", "a.db", "b.db"}, &warn)
	require.NoError(t, err)

	assert.Equal(t, "b.gdml", opts.geometry)
	assert.Equal(t, "b.db", opts.simInput)
	assert.Contains(t, warn.String(), "replacing geometry a.gdml with b.gdml")
	assert.Contains(t, warn.String(), "replacing simulation input a.db with b.db")
}

func TestIsSimInput(t *testing.T) {
	for _, in := range []string{"run.db", "RUN.SQLITE", "x.sqlite3", "postgres", "host=db user=evd"} {
		assert.True(t, isSimInput(in), in)
	}
	for _, in := range []string{"run.root", "det.gdml", "notes.txt"} {
		assert.False(t, isSimInput(in), in)
	}
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)

	text := buf.String()
	assert.Contains(t, text, "Usage: evd")
	assert.Contains(t, text, "--event")
	assert.Contains(t, text, "--cms")
	assert.Contains(t, text, "evd.cfg.json")
}

func TestUnitLabel(t *testing.T) {
	assert.Equal(t, "cm", unitLabel(1))
	assert.Equal(t, "cm", unitLabel(0))
	assert.Equal(t, "mm", unitLabel(10))
	assert.Equal(t, "m", unitLabel(0.01))
	assert.Equal(t, "cm×3", unitLabel(3))
	assert.Equal(t, "cm×0.1", unitLabel(0.1))
}
