package aggregates

import (
	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
)

// Count counts non-NULL values, or rows for COUNT(*).
// In the merge phase it sums the partial counts.
type Count struct {
	phase Phase
	uint64State
}

func NewCount(phase Phase) *Count {
	return &Count{
		phase:       phase,
		uint64State: newUint64State(),
	}
}

func (agg *Count) Grow(entryCount int) {
	agg.grow(entryCount)
}

func (agg *Count) MakeColumnConsumer(arr arrow.Array) func(entryIndex uint, rowIndex uint) {
	if agg.phase == PhaseMerge {
		typedArr := arr.(*array.Uint64).Uint64Values()
		return func(entryIndex uint, rowIndex uint) {
			agg.state[entryIndex] += typedArr[rowIndex]
		}
	}
	if arr == nil || arr.NullN() == 0 {
		return func(entryIndex uint, rowIndex uint) {
			agg.state[entryIndex]++
		}
	}
	return func(entryIndex uint, rowIndex uint) {
		if arr.IsValid(int(rowIndex)) {
			agg.state[entryIndex]++
		}
	}
}

func (agg *Count) GetBatch(length int, offset int) arrow.Array {
	return agg.array(nil, length, offset)
}
