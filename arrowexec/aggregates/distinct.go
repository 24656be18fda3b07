package aggregates

import (
	"github.com/apache/arrow/go/v13/arrow"
	"github.com/tidwall/btree"

	"github.com/cube2222/octopipe/arrowexec/helpers"
)

// Distinct passes only the first occurrence of each value in a group to the wrapped aggregate.
// It keeps all distinct values in memory and can't be merged across partitions,
// so it's only usable when a single unit sees all rows of a group.
// The two-stage distinct aggregation plan is the partitioned alternative.
type Distinct struct {
	items   []*btree.Generic[helpers.Value]
	wrapped Aggregate
}

func NewDistinct(wrapped Aggregate) *Distinct {
	return &Distinct{
		wrapped: wrapped,
	}
}

func (agg *Distinct) Grow(entryCount int) {
	agg.wrapped.Grow(entryCount)
	for len(agg.items) < entryCount {
		agg.items = append(agg.items, btree.NewGenericOptions(func(a, b helpers.Value) bool {
			return a.Compare(b) == -1
		}, btree.Options{NoLocks: true}))
	}
}

func (agg *Distinct) MakeColumnConsumer(arr arrow.Array) func(entryIndex uint, rowIndex uint) {
	value := helpers.MakeValueGetter(arr)
	consume := agg.wrapped.MakeColumnConsumer(arr)
	return func(entryIndex uint, rowIndex uint) {
		if arr.IsNull(int(rowIndex)) {
			return
		}
		v := value(int(rowIndex))
		if _, ok := agg.items[entryIndex].Get(v); ok {
			return
		}
		agg.items[entryIndex].Set(v)
		consume(entryIndex, rowIndex)
	}
}

func (agg *Distinct) GetBatch(length int, offset int) arrow.Array {
	return agg.wrapped.GetBatch(length, offset)
}
