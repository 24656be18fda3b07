package helpers

import (
	"github.com/apache/arrow/go/v13/arrow"
)

// SortField is a single key of an ordering.
type SortField struct {
	Column     int
	Descending bool
	NullsFirst bool
}

// DefaultNullsFirst follows the usual SQL convention: NULLs are the largest values,
// so they come last when ascending and first when descending.
func DefaultNullsFirst(descending bool) bool {
	return descending
}

// CompareKeys compares two sort key tuples extracted with MakeSortKeyExtractor.
func CompareKeys(a, b []Value, fields []SortField) int {
	for i := range fields {
		aNull, bNull := a[i].IsNull(), b[i].IsNull()
		switch {
		case aNull && bNull:
			continue
		case aNull:
			if fields[i].NullsFirst {
				return -1
			}
			return 1
		case bNull:
			if fields[i].NullsFirst {
				return 1
			}
			return -1
		}
		comp := a[i].Compare(b[i])
		if comp == 0 {
			continue
		}
		if fields[i].Descending {
			return -comp
		}
		return comp
	}
	return 0
}

// MakeSortKeyExtractor returns a function reading the sort key tuple of a row of the record.
func MakeSortKeyExtractor(record arrow.Record, fields []SortField) func(rowIndex int) []Value {
	getters := make([]func(rowIndex int) Value, len(fields))
	for i := range fields {
		getters[i] = MakeValueGetter(record.Column(fields[i].Column))
	}
	return func(rowIndex int) []Value {
		key := make([]Value, len(getters))
		for i := range getters {
			key[i] = getters[i](rowIndex)
		}
		return key
	}
}
