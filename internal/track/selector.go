package track

import (
	"fmt"

	"github.com/evdisplay/evd/pkg/core"
)

// AllEvents selects every event.
const AllEvents = -1

// EventRange returns the half-open range of event entries [first, last) to
// process for the given selector, out of n available entries.
// A negative selector selects all of them.
func EventRange(selector, n int) (first, last int, err error) {
	if selector < 0 {
		return 0, n, nil
	}
	if selector >= n {
		return 0, 0, fmt.Errorf("%w: event %d requested, %d available", ErrOutOfRange, selector, n)
	}
	return selector, selector + 1, nil
}

// CheckStepSelection validates a selector against flat step records.
// Event ids in a step table need not be contiguous, so a selector above the
// largest id is out of range while a gap inside the id range is not found.
func CheckStepSelection(records []core.StepRecord, selector int) error {
	if selector < 0 {
		return nil
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: event %d requested from an empty step table", ErrOutOfRange, selector)
	}

	maxID := records[0].EventID
	found := false
	for _, rec := range records {
		if rec.EventID > maxID {
			maxID = rec.EventID
		}
		if rec.EventID == selector {
			found = true
		}
	}

	if selector > maxID {
		return fmt.Errorf("%w: event %d requested, last event is %d", ErrOutOfRange, selector, maxID)
	}
	if !found {
		return fmt.Errorf("%w: event %d", ErrEventNotFound, selector)
	}
	return nil
}
