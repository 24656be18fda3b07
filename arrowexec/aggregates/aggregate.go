package aggregates

import (
	"github.com/apache/arrow/go/v13/arrow"
)

// Aggregate holds the state of a single aggregate function for all groups of a group by.
// Groups are identified by consecutive entry indices.
type Aggregate interface {
	// Grow makes room for at least entryCount entries.
	Grow(entryCount int)
	// MakeColumnConsumer returns a function folding the value at rowIndex of arr into the state of entryIndex.
	// For COUNT(*) arr is nil.
	MakeColumnConsumer(arr arrow.Array) func(entryIndex uint, rowIndex uint)
	// GetBatch returns the values of the entries in [offset, offset+length).
	GetBatch(length int, offset int) arrow.Array
}

// Phase tells an aggregate what it consumes.
type Phase int

const (
	// PhaseRaw aggregates consume input values.
	PhaseRaw Phase = iota
	// PhaseMerge aggregates consume partial states produced by PhaseRaw aggregates of the same function.
	PhaseMerge
)
