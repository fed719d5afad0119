package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evdisplay/evd/internal/database"
	"github.com/evdisplay/evd/internal/simstore"
	"github.com/evdisplay/evd/pkg/core"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const worldGDML = `<?xml version="1.0" encoding="UTF-8"?>
<gdml>
  <structure>
    <volume name="Tracker"/>
    <volume name="World">
      <physvol name="Tracker_pv"><volumeref ref="Tracker"/></physvol>
    </volume>
  </structure>
  <setup name="Default" version="1.0">
    <world ref="World"/>
  </setup>
</gdml>`

type testWorkspace struct {
	dir      string
	geometry string
	scenes   string
}

// newWorkspace writes a geometry file and a config that keeps logs and
// scenes inside a temp dir.
func newWorkspace(t *testing.T) testWorkspace {
	t.Helper()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	ws := testWorkspace{
		dir:      dir,
		geometry: filepath.Join(dir, "world.gdml"),
		scenes:   filepath.Join(dir, "scenes"),
	}
	require.NoError(t, os.WriteFile(ws.geometry, []byte(worldGDML), 0644))

	cfg := map[string]any{
		"logsDir": filepath.Join(dir, "logs"),
		"render": map[string]any{
			"outputDir": ws.scenes,
			"plot":      false,
		},
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "evd.cfg.json"), data, 0644))
	return ws
}

func writeSimulation(t *testing.T, path string) {
	t.Helper()
	m := database.NewManager(zerolog.Nop())
	require.NoError(t, m.Connect(path))
	defer m.Close()

	steps := []core.StepRecord{
		{EventID: 0, TrackID: 1, StepIndex: 0, Particle: 13, Process: core.ProcessMuIoni,
			PrePos: core.Vec3{}, PostPos: core.Vec3{Z: 1}},
		{EventID: 0, TrackID: 1, StepIndex: 1, Particle: 13, Process: core.ProcessTransportation,
			PrePos: core.Vec3{Z: 1}, PostPos: core.Vec3{Z: 2}},
	}
	require.NoError(t, simstore.New(m.DB).ImportSteps(context.Background(), steps))
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(nil, strings.NewReader(""), &out, &errOut)

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "Usage: evd")
}

func TestRun_MissingGeometry(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"run.db"}, strings.NewReader(""), &out, &errOut)

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "missing required input")
}

func TestRun_GeometryLoadFails(t *testing.T) {
	ws := newWorkspace(t)
	var out, errOut bytes.Buffer
	code := run([]string{"--config", ws.dir, filepath.Join(ws.dir, "absent.gdml")}, strings.NewReader(""), &out, &errOut)

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "loading geometry")
}

func TestRun_MissingSimulationFile(t *testing.T) {
	ws := newWorkspace(t)
	var out, errOut bytes.Buffer
	code := run([]string{"--config", ws.dir, ws.geometry, filepath.Join(ws.dir, "absent.db")}, strings.NewReader(""), &out, &errOut)

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "simulation input")
}

func TestRun_BatchGeometryOnly(t *testing.T) {
	ws := newWorkspace(t)
	var out, errOut bytes.Buffer
	code := run([]string{"--batch", "--config", ws.dir, ws.geometry}, strings.NewReader(""), &out, &errOut)

	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "scene: "+ws.scenes)

	entries, err := os.ReadDir(ws.scenes)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRun_BatchEvent(t *testing.T) {
	ws := newWorkspace(t)
	sim := filepath.Join(ws.dir, "run.db")
	writeSimulation(t, sim)

	var out, errOut bytes.Buffer
	code := run([]string{"-batch", "-e", "0", "-config", ws.dir, ws.geometry, sim}, strings.NewReader(""), &out, &errOut)

	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "1 tracks shown")
	assert.Contains(t, out.String(), "scene: ")
}

func TestRun_BatchEventOutOfRange(t *testing.T) {
	ws := newWorkspace(t)
	sim := filepath.Join(ws.dir, "run.db")
	writeSimulation(t, sim)

	var out, errOut bytes.Buffer
	code := run([]string{"--batch", "-e", "5", "--config", ws.dir, ws.geometry, sim}, strings.NewReader(""), &out, &errOut)

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "error: ")
}

func TestRun_Interactive(t *testing.T) {
	ws := newWorkspace(t)
	sim := filepath.Join(ws.dir, "run.db")
	writeSimulation(t, sim)

	var out, errOut bytes.Buffer
	in := strings.NewReader("event 3\nall\nexport\nquit\n")
	code := run([]string{"--config", ws.dir, ws.geometry, sim}, in, &out, &errOut)

	require.Equal(t, 0, code, errOut.String())
	text := out.String()
	assert.Contains(t, text, `Type "help" for commands.`)
	assert.Contains(t, text, "evd [0] error: ")
	assert.Contains(t, text, "1 tracks from all events")
	assert.Contains(t, text, "exported 1 tracks")
}
