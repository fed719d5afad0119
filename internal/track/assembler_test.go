package track

import (
	"math/rand/v2"
	"testing"

	"github.com/evdisplay/evd/pkg/core"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(x, y, z float64) core.Vec3 {
	return core.Vec3{X: x, Y: y, Z: z}
}

// scenarioA is three rows of event 0: two steps of track 1 and one of track 2.
func scenarioA() []core.StepRecord {
	return []core.StepRecord{
		{EventID: 0, TrackID: 1, StepIndex: 0, Particle: 11, PrePos: vec(0, 0, 0), PostPos: vec(1, 0, 0)},
		{EventID: 0, TrackID: 1, StepIndex: 1, Particle: 11, PrePos: vec(1, 0, 0), PostPos: vec(2, 0, 0)},
		{EventID: 0, TrackID: 2, StepIndex: 0, Particle: 22, PrePos: vec(5, 5, 5), PostPos: vec(6, 6, 6)},
	}
}

func TestAssembleSteps_ScenarioA_KeepSinglePoint(t *testing.T) {
	opts := DefaultOptions()
	opts.MinPoints = 1

	lines, err := AssembleSteps(scenarioA(), nil, 0, opts)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, "0_1_e-", lines[0].Name)
	assert.Equal(t, []core.Vec3{vec(0, 0, 0), vec(2, 0, 0)}, lines[0].Points)
	assert.Equal(t, FamilyElectron, lines[0].Style.Family)

	assert.Equal(t, "0_2_gamma", lines[1].Name)
	assert.Equal(t, []core.Vec3{vec(5, 5, 5)}, lines[1].Points)
	assert.Equal(t, FamilyGamma, lines[1].Style.Family)
}

func TestAssembleSteps_ScenarioA_DefaultDropsVertexOnly(t *testing.T) {
	lines, err := AssembleSteps(scenarioA(), nil, 0, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "0_1_e-", lines[0].Name)
	assert.Len(t, lines[0].Points, 2)
}

func TestAssembleSteps_UnsortedStorage(t *testing.T) {
	records := scenarioA()
	shuffled := []core.StepRecord{records[2], records[1], records[0]}

	lines, err := AssembleSteps(shuffled, nil, 0, Options{MinPoints: 1})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, []core.Vec3{vec(0, 0, 0), vec(2, 0, 0)}, lines[0].Points)
}

func TestAssembleSteps_ParticleFromFirstStep(t *testing.T) {
	records := []core.StepRecord{
		{EventID: 0, TrackID: 7, StepIndex: 0, Particle: 13},
		{EventID: 0, TrackID: 7, StepIndex: 1, Particle: 22},
	}

	lines, err := AssembleSteps(records, nil, AllEvents, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 13, lines[0].Particle)
	assert.Equal(t, FamilyMuon, lines[0].Style.Family)
	assert.Equal(t, "0_7_mu-", lines[0].Name)
}

func TestAssembleSteps_SameTrackIDAcrossEvents(t *testing.T) {
	records := []core.StepRecord{
		{EventID: 0, TrackID: 1, StepIndex: 0},
		{EventID: 0, TrackID: 1, StepIndex: 1},
		{EventID: 1, TrackID: 1, StepIndex: 0},
		{EventID: 1, TrackID: 1, StepIndex: 1},
	}

	lines, err := AssembleSteps(records, nil, AllEvents, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 0, lines[0].EventID)
	assert.Equal(t, 1, lines[1].EventID)
}

func TestAssembleSteps_EventFilter(t *testing.T) {
	records := []core.StepRecord{
		{EventID: 2, TrackID: 1, StepIndex: 0},
		{EventID: 2, TrackID: 1, StepIndex: 1},
		{EventID: 1, TrackID: 1, StepIndex: 0},
		{EventID: 1, TrackID: 1, StepIndex: 1},
		{EventID: 0, TrackID: 3, StepIndex: 0},
		{EventID: 0, TrackID: 3, StepIndex: 1},
	}

	lines, err := AssembleSteps(records, nil, 1, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].EventID)
}

func TestAssembleSteps_UnitScale(t *testing.T) {
	opts := DefaultOptions()
	opts.UnitScale = 10

	lines, err := AssembleSteps(scenarioA(), nil, 0, opts)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, []core.Vec3{vec(0, 0, 0), vec(20, 0, 0)}, lines[0].Points)
}

func TestAssembleSteps_ShowStepPoints(t *testing.T) {
	opts := DefaultOptions()
	opts.ShowStepPoints = true

	lines, err := AssembleSteps(scenarioA(), nil, 0, opts)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Style.ShowPoints)
}

func TestAssembleSteps_DuplicateStep(t *testing.T) {
	records := []core.StepRecord{
		{EventID: 0, TrackID: 1, StepIndex: 0},
		{EventID: 0, TrackID: 1, StepIndex: 1},
		{EventID: 0, TrackID: 1, StepIndex: 1},
	}

	lines, err := AssembleSteps(records, nil, 0, DefaultOptions())
	require.ErrorIs(t, err, ErrMalformedRecords)
	assert.Nil(t, lines)
}

func TestAssembleSteps_UnsortedIndex(t *testing.T) {
	records := scenarioA()

	_, err := AssembleSteps(records, []int{2, 0, 1}, 0, DefaultOptions())
	require.ErrorIs(t, err, ErrMalformedRecords)

	_, err = AssembleSteps(records, []int{0, 1}, 0, DefaultOptions())
	require.ErrorIs(t, err, ErrMalformedRecords)

	_, err = AssembleSteps(records, []int{0, 1, 9}, 0, DefaultOptions())
	require.ErrorIs(t, err, ErrMalformedRecords)
}

func TestAssembleSteps_CutoffFlushesInProgress(t *testing.T) {
	records := []core.StepRecord{
		{EventID: 0, TrackID: 1, StepIndex: 0},
		{EventID: 0, TrackID: 1, StepIndex: 1},
		{EventID: 0, TrackID: 2, StepIndex: 0},
		{EventID: 0, TrackID: 2, StepIndex: 1},
		{EventID: 0, TrackID: 2, StepIndex: 2},
		{EventID: 0, TrackID: 3, StepIndex: 0},
		{EventID: 0, TrackID: 3, StepIndex: 1},
	}

	opts := DefaultOptions()
	opts.MaxTracks = 2

	lines, err := AssembleSteps(records, nil, 0, opts)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[1].TrackID)
	assert.Len(t, lines[1].Points, 3)
}

func TestAssembleEvent_ScenarioB(t *testing.T) {
	event := core.EventRecord{
		ID: 0,
		Primaries: []core.Track{{
			Particle:       13,
			ID:             1,
			VertexPosition: vec(0, 0, 0),
			Steps: []core.Step{
				{Position: vec(0, 0, 1)},
				{Position: vec(0, 0, 2)},
			},
		}},
	}

	lines, err := AssembleEvent(event, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, lines, 1)

	want := core.Polyline{
		Name:     "0_1_mu-",
		EventID:  0,
		TrackID:  1,
		Particle: 13,
		Style:    Classify(13, false),
		Points:   []core.Vec3{vec(0, 0, 0), vec(0, 0, 1), vec(0, 0, 2)},
	}
	if diff := cmp.Diff(want, lines[0]); diff != "" {
		t.Errorf("polyline mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembleEvent_PrimariesThenSecondaries(t *testing.T) {
	event := core.EventRecord{
		ID: 3,
		Secondaries: []core.Track{
			{ID: 5, Particle: 11, Steps: []core.Step{{Position: vec(1, 1, 1)}}},
		},
		Primaries: []core.Track{
			{ID: 1, Particle: 22, Steps: []core.Step{{Position: vec(2, 2, 2)}}},
			{ID: 2, Particle: -11},
		},
	}

	lines, err := AssembleEvent(event, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "3_1_gamma", lines[0].Name)
	assert.Equal(t, "3_5_e-", lines[1].Name)

	lines, err = AssembleEvent(event, Options{})
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "3_2_e+", lines[1].Name)
}

func TestAssembleEvent_DuplicateTrack(t *testing.T) {
	event := core.EventRecord{
		Primaries:   []core.Track{{ID: 1}},
		Secondaries: []core.Track{{ID: 1}},
	}

	_, err := AssembleEvent(event, DefaultOptions())
	require.ErrorIs(t, err, ErrMalformedRecords)
}

func TestAssembleEvent_Cutoff(t *testing.T) {
	step := []core.Step{{Position: vec(1, 0, 0)}}
	event := core.EventRecord{
		Primaries: []core.Track{{ID: 1, Steps: step}, {ID: 2, Steps: step}},
		Secondaries: []core.Track{
			{ID: 3, Steps: step},
			{ID: 4, Steps: step},
		},
	}

	lines, err := AssembleEvent(event, Options{MaxTracks: 3})
	require.NoError(t, err)
	assert.Len(t, lines, 3)
}

// randomSteps builds a shuffled step table. Post positions carry the step
// index in X and the pre position of a track's first step sits half a step
// before it, so point order can be checked from X alone.
func randomSteps(r *rand.Rand, events, maxTracks, maxSteps int) []core.StepRecord {
	var records []core.StepRecord
	for e := 0; e < events; e++ {
		tracks := 1 + r.IntN(maxTracks)
		for trk := 1; trk <= tracks; trk++ {
			steps := 1 + r.IntN(maxSteps)
			particle := []int{22, 11, -11, 13, 2212}[r.IntN(5)]
			for s := 0; s < steps; s++ {
				records = append(records, core.StepRecord{
					EventID:   e,
					TrackID:   trk,
					StepIndex: s,
					Particle:  particle,
					PrePos:    vec(float64(s)-0.5, float64(e), float64(trk)),
					PostPos:   vec(float64(s), float64(e), float64(trk)),
				})
			}
		}
	}
	r.Shuffle(len(records), func(i, j int) { records[i], records[j] = records[j], records[i] })
	return records
}

func TestAssembleSteps_Properties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for iter := 0; iter < 50; iter++ {
		records := randomSteps(r, 1+r.IntN(4), 6, 8)

		rows := map[trackKey]int{}
		events := map[int]bool{}
		for _, rec := range records {
			rows[trackKey{rec.EventID, rec.TrackID}]++
			events[rec.EventID] = true
		}

		lines, err := AssembleSteps(records, nil, AllEvents, Options{})
		require.NoError(t, err)

		// grouping: one polyline per (event, track), one point per row
		seen := map[trackKey]bool{}
		gotEvents := map[int]bool{}
		total := 0
		for _, line := range lines {
			key := trackKey{line.EventID, line.TrackID}
			require.False(t, seen[key], "duplicate polyline %v", key)
			seen[key] = true
			gotEvents[line.EventID] = true
			assert.Equal(t, rows[key], len(line.Points), "points of %v", key)
			total += len(line.Points)

			// order
			for i := 1; i < len(line.Points); i++ {
				assert.Less(t, line.Points[i-1].X, line.Points[i].X)
			}
			for _, p := range line.Points {
				assert.Equal(t, float64(line.EventID), p.Y)
				assert.Equal(t, float64(line.TrackID), p.Z)
			}
		}
		assert.Equal(t, len(rows), len(lines))
		assert.Equal(t, len(records), total)
		assert.Equal(t, events, gotEvents)

		// event filter exactness
		selector := r.IntN(len(events))
		filtered, err := AssembleSteps(records, nil, selector, Options{})
		require.NoError(t, err)
		require.NotEmpty(t, filtered)
		for _, line := range filtered {
			assert.Equal(t, selector, line.EventID)
		}

		// cutoff
		limit := 1 + r.IntN(5)
		capped, err := AssembleSteps(records, nil, AllEvents, Options{MaxTracks: limit})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(capped), limit)
	}
}
