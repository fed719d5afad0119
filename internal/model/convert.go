package model

import (
	"encoding/json"
	"fmt"

	"github.com/evdisplay/evd/pkg/core"
	"gorm.io/datatypes"
)

// ToStepRecord converts a Step row to a core.StepRecord.
func (s *Step) ToStepRecord() core.StepRecord {
	return core.StepRecord{
		EventID:   s.EventID,
		TrackID:   s.TrackID,
		StepIndex: s.TrackStepCount,
		Particle:  s.Particle,
		Process:   core.ProcessFromName(s.Process),
		PrePos:    core.Vec3{X: s.PrePosX, Y: s.PrePosY, Z: s.PrePosZ},
		PostPos:   core.Vec3{X: s.PostPosX, Y: s.PostPosY, Z: s.PostPosZ},
	}
}

// StepFromRecord converts a core.StepRecord to a Step row.
func StepFromRecord(r core.StepRecord) Step {
	return Step{
		EventID:        r.EventID,
		TrackID:        r.TrackID,
		TrackStepCount: r.StepIndex,
		Particle:       r.Particle,
		Process:        r.Process.String(),
		PrePosX:        r.PrePos.X,
		PrePosY:        r.PrePos.Y,
		PrePosZ:        r.PrePos.Z,
		PostPosX:       r.PostPos.X,
		PostPosY:       r.PostPos.Y,
		PostPosZ:       r.PostPos.Z,
	}
}

// ToEventRecord decodes the embedded track arrays of an Event row.
func (e *Event) ToEventRecord() (core.EventRecord, error) {
	rec := core.EventRecord{ID: e.EventID}

	var err error
	if rec.Primaries, err = tracksFromJSON(e.Primaries); err != nil {
		return core.EventRecord{}, fmt.Errorf("event %d primaries: %w", e.EventID, err)
	}
	if rec.Secondaries, err = tracksFromJSON(e.Secondaries); err != nil {
		return core.EventRecord{}, fmt.Errorf("event %d secondaries: %w", e.EventID, err)
	}
	return rec, nil
}

// EventFromRecord encodes a core.EventRecord as an Event row.
func EventFromRecord(r core.EventRecord) (Event, error) {
	primaries, err := tracksToJSON(r.Primaries)
	if err != nil {
		return Event{}, err
	}
	secondaries, err := tracksToJSON(r.Secondaries)
	if err != nil {
		return Event{}, err
	}
	return Event{
		EventID:     r.ID,
		Primaries:   primaries,
		Secondaries: secondaries,
	}, nil
}

func tracksFromJSON(data datatypes.JSON) ([]core.Track, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var tracks []core.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// tracksToJSON converts tracks to datatypes.JSON for DB storage.
func tracksToJSON(tracks []core.Track) (datatypes.JSON, error) {
	if len(tracks) == 0 {
		return datatypes.JSON("[]"), nil
	}
	data, err := json.Marshal(tracks)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
