package track

import "errors"

var (
	// ErrOutOfRange is returned when the requested event is beyond the events available.
	ErrOutOfRange = errors.New("event out of range")

	// ErrEventNotFound is returned when no step record belongs to the requested event.
	ErrEventNotFound = errors.New("event not found")

	// ErrUnsupportedSchema is returned when the simulation output has neither
	// an "events" nor a "steps" table.
	ErrUnsupportedSchema = errors.New("unsupported simulation output schema")

	// ErrMalformedRecords is returned when step records cannot be grouped
	// into tracks, e.g. duplicated steps or an index that is not sorted.
	ErrMalformedRecords = errors.New("malformed simulation records")
)
