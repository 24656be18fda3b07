package aggregates

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
)

type ordered interface {
	int64 | uint64 | float64 | string
}

// Extremum keeps the minimum or maximum non-NULL value of each group.
type Extremum[T ordered] struct {
	max    bool
	values []T
	valid  []bool

	arrayValues func(arr arrow.Array) func(i int) T
	newBuilder  func() arrayBuilder[T]
}

type arrayBuilder[T any] interface {
	AppendValues(v []T, valid []bool)
	NewArray() arrow.Array
	Release()
}

func (agg *Extremum[T]) Grow(entryCount int) {
	for len(agg.values) < entryCount {
		var zero T
		agg.values = append(agg.values, zero)
		agg.valid = append(agg.valid, false)
	}
}

func (agg *Extremum[T]) MakeColumnConsumer(arr arrow.Array) func(entryIndex uint, rowIndex uint) {
	value := agg.arrayValues(arr)
	return func(entryIndex uint, rowIndex uint) {
		if arr.IsNull(int(rowIndex)) {
			return
		}
		v := value(int(rowIndex))
		if !agg.valid[entryIndex] || (agg.max && v > agg.values[entryIndex]) || (!agg.max && v < agg.values[entryIndex]) {
			agg.values[entryIndex] = v
			agg.valid[entryIndex] = true
		}
	}
}

func (agg *Extremum[T]) GetBatch(length int, offset int) arrow.Array {
	builder := agg.newBuilder()
	defer builder.Release()
	builder.AppendValues(agg.values[offset:offset+length], agg.valid[offset:offset+length])
	return builder.NewArray()
}

func NewMin(dt arrow.DataType) (Aggregate, error) {
	return newExtremum(dt, false)
}

func NewMax(dt arrow.DataType) (Aggregate, error) {
	return newExtremum(dt, true)
}

func newExtremum(dt arrow.DataType, max bool) (Aggregate, error) {
	switch dt.ID() {
	case arrow.INT64:
		return &Extremum[int64]{
			max:         max,
			arrayValues: func(arr arrow.Array) func(i int) int64 { return arr.(*array.Int64).Value },
			newBuilder: func() arrayBuilder[int64] {
				return array.NewInt64Builder(memory.NewGoAllocator())
			},
		}, nil
	case arrow.UINT64:
		return &Extremum[uint64]{
			max:         max,
			arrayValues: func(arr arrow.Array) func(i int) uint64 { return arr.(*array.Uint64).Value },
			newBuilder: func() arrayBuilder[uint64] {
				return array.NewUint64Builder(memory.NewGoAllocator())
			},
		}, nil
	case arrow.FLOAT64:
		return &Extremum[float64]{
			max:         max,
			arrayValues: func(arr arrow.Array) func(i int) float64 { return arr.(*array.Float64).Value },
			newBuilder: func() arrayBuilder[float64] {
				return array.NewFloat64Builder(memory.NewGoAllocator())
			},
		}, nil
	case arrow.STRING:
		return &Extremum[string]{
			max:         max,
			arrayValues: func(arr arrow.Array) func(i int) string { return arr.(*array.String).Value },
			newBuilder: func() arrayBuilder[string] {
				return array.NewStringBuilder(memory.NewGoAllocator())
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported type for min/max: %s", dt)
	}
}
