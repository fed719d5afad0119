// Package simstore reads simulation output stored in a SQL database through
// GORM. A database holds an events table with embedded tracks, a flat steps
// table, or both; the Store answers either layout and leaves the choice to
// the track adapter.
package simstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/evdisplay/evd/internal/model"
	"github.com/evdisplay/evd/internal/track"
	"github.com/evdisplay/evd/pkg/core"
	"gorm.io/gorm"
)

// sortIndexQuery numbers the rows in storage order and returns those numbers
// in (event, track, step) order. The id tiebreak keeps the order stable.
const sortIndexQuery = `SELECT s.pos FROM (
	SELECT id, event_id, track_id, track_step_count,
		ROW_NUMBER() OVER (ORDER BY id) - 1 AS pos
	FROM steps
) AS s
ORDER BY s.event_id, s.track_id, s.track_step_count, s.id`

var (
	_ track.Source      = (*Store)(nil)
	_ track.SortIndexer = (*Store)(nil)
)

// Store is a simulation output database.
type Store struct {
	db        *gorm.DB
	batchSize int
}

// New wraps an open database.
func New(db *gorm.DB) *Store {
	return &Store{db: db, batchSize: 2000}
}

// HasTable reports whether the database has the named table.
func (s *Store) HasTable(name string) bool {
	return s.db.Migrator().HasTable(name)
}

// StepCount returns the number of rows in the steps table.
func (s *Store) StepCount(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Step{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

// Steps returns every step record in storage order.
func (s *Store) Steps(ctx context.Context) ([]core.StepRecord, error) {
	var rows []model.Step
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]core.StepRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].ToStepRecord()
	}
	return records, nil
}

// SortIndex returns the permutation of the slice returned by Steps that
// orders it by event, track and step.
func (s *Store) SortIndex(ctx context.Context) ([]int, error) {
	var index []int
	if err := s.db.WithContext(ctx).Raw(sortIndexQuery).Scan(&index).Error; err != nil {
		return nil, err
	}
	return index, nil
}

// EventCount returns the number of rows in the events table.
func (s *Store) EventCount(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Event{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

// EventAt returns the i-th event entry in storage order.
func (s *Store) EventAt(ctx context.Context, i int) (core.EventRecord, error) {
	if i < 0 {
		return core.EventRecord{}, fmt.Errorf("%w: entry %d", track.ErrOutOfRange, i)
	}

	var row model.Event
	err := s.db.WithContext(ctx).Order("id").Offset(i).Limit(1).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.EventRecord{}, fmt.Errorf("%w: entry %d", track.ErrOutOfRange, i)
	}
	if err != nil {
		return core.EventRecord{}, err
	}

	rec, err := row.ToEventRecord()
	if err != nil {
		return core.EventRecord{}, fmt.Errorf("%w: %w", track.ErrMalformedRecords, err)
	}
	return rec, nil
}

// ImportSteps appends step records to the steps table, creating it when
// missing. Records keep the given order as their storage order.
func (s *Store) ImportSteps(ctx context.Context, records []core.StepRecord) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&model.Step{}); err != nil {
		return fmt.Errorf("migrating steps: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	rows := make([]model.Step, len(records))
	for i, rec := range records {
		rows[i] = model.StepFromRecord(rec)
	}
	if err := db.CreateInBatches(rows, s.batchSize).Error; err != nil {
		return fmt.Errorf("inserting steps: %w", err)
	}
	return nil
}

// ImportEvents appends event records to the events table, creating it when
// missing.
func (s *Store) ImportEvents(ctx context.Context, records []core.EventRecord) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&model.Event{}); err != nil {
		return fmt.Errorf("migrating events: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	rows := make([]model.Event, len(records))
	for i, rec := range records {
		row, err := model.EventFromRecord(rec)
		if err != nil {
			return fmt.Errorf("encoding event %d: %w", rec.ID, err)
		}
		rows[i] = row
	}
	if err := db.CreateInBatches(rows, s.batchSize).Error; err != nil {
		return fmt.Errorf("inserting events: %w", err)
	}
	return nil
}
