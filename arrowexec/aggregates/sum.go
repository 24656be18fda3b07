package aggregates

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
)

// The sum of a group without any non-NULL values is NULL.
// Partial sums are summed the same way, so the phase doesn't matter.

type SumInt struct {
	int64State
	valid validity
}

func (agg *SumInt) Grow(entryCount int) {
	agg.grow(entryCount)
	agg.valid.grow(entryCount)
}

func (agg *SumInt) MakeColumnConsumer(arr arrow.Array) func(entryIndex uint, rowIndex uint) {
	typedArr := arr.(*array.Int64)
	values := typedArr.Int64Values()
	return func(entryIndex uint, rowIndex uint) {
		if typedArr.IsNull(int(rowIndex)) {
			return
		}
		agg.state[entryIndex] += values[rowIndex]
		agg.valid.set(entryIndex)
	}
}

func (agg *SumInt) GetBatch(length int, offset int) arrow.Array {
	return agg.array(agg.valid.data, length, offset)
}

type SumUint struct {
	uint64State
	valid validity
}

func (agg *SumUint) Grow(entryCount int) {
	agg.grow(entryCount)
	agg.valid.grow(entryCount)
}

func (agg *SumUint) MakeColumnConsumer(arr arrow.Array) func(entryIndex uint, rowIndex uint) {
	typedArr := arr.(*array.Uint64)
	values := typedArr.Uint64Values()
	return func(entryIndex uint, rowIndex uint) {
		if typedArr.IsNull(int(rowIndex)) {
			return
		}
		agg.state[entryIndex] += values[rowIndex]
		agg.valid.set(entryIndex)
	}
}

func (agg *SumUint) GetBatch(length int, offset int) arrow.Array {
	return agg.array(agg.valid.data, length, offset)
}

type SumFloat struct {
	float64State
	valid validity
}

func (agg *SumFloat) Grow(entryCount int) {
	agg.grow(entryCount)
	agg.valid.grow(entryCount)
}

func (agg *SumFloat) MakeColumnConsumer(arr arrow.Array) func(entryIndex uint, rowIndex uint) {
	typedArr := arr.(*array.Float64)
	values := typedArr.Float64Values()
	return func(entryIndex uint, rowIndex uint) {
		if typedArr.IsNull(int(rowIndex)) {
			return
		}
		agg.state[entryIndex] += values[rowIndex]
		agg.valid.set(entryIndex)
	}
}

func (agg *SumFloat) GetBatch(length int, offset int) arrow.Array {
	return agg.array(agg.valid.data, length, offset)
}

func NewSum(dt arrow.DataType) (Aggregate, error) {
	switch dt.ID() {
	case arrow.INT64:
		return &SumInt{int64State: newInt64State(), valid: newValidity()}, nil
	case arrow.UINT64:
		return &SumUint{uint64State: newUint64State(), valid: newValidity()}, nil
	case arrow.FLOAT64:
		return &SumFloat{float64State: newFloat64State(), valid: newValidity()}, nil
	default:
		return nil, fmt.Errorf("unsupported type for sum: %s", dt)
	}
}
