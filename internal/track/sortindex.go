package track

import (
	"cmp"
	"slices"

	"github.com/evdisplay/evd/pkg/core"
)

// SortIndex returns the permutation of records ordered by event id, track id
// and step index. Records are not moved; ties keep their storage order.
func SortIndex(records []core.StepRecord) []int {
	index := make([]int, len(records))
	for i := range index {
		index[i] = i
	}

	slices.SortStableFunc(index, func(a, b int) int {
		return compareSteps(records[a], records[b])
	})
	return index
}

func compareSteps(a, b core.StepRecord) int {
	if c := cmp.Compare(a.EventID, b.EventID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.TrackID, b.TrackID); c != 0 {
		return c
	}
	return cmp.Compare(a.StepIndex, b.StepIndex)
}
