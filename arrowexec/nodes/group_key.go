package nodes

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"

	"github.com/cube2222/octopipe/arrowexec/helpers"
)

// Key stores the values of a single group by key column, one per entry.
// NULL is stored as a regular value, so all NULL keys form a single group.
type Key interface {
	MakeNewKeyAdder(arr arrow.Array) func(rowIndex uint)
	MakeKeyEqualityChecker(arr arrow.Array) func(entryIndex uint, rowIndex uint) bool
	GetBatch(length int, offset int) arrow.Array
}

type keyBuilder[T any] interface {
	AppendValues(v []T, valid []bool)
	NewArray() arrow.Array
	Release()
}

type typedKey[T comparable] struct {
	values []T
	valid  []bool

	arrayValues func(arr arrow.Array) func(i int) T
	newBuilder  func() keyBuilder[T]
	// equal overrides ==, if set.
	equal func(a, b T) bool
}

func (key *typedKey[T]) MakeNewKeyAdder(arr arrow.Array) func(rowIndex uint) {
	value := key.arrayValues(arr)
	return func(rowIndex uint) {
		if arr.IsNull(int(rowIndex)) {
			var zero T
			key.values = append(key.values, zero)
			key.valid = append(key.valid, false)
			return
		}
		key.values = append(key.values, value(int(rowIndex)))
		key.valid = append(key.valid, true)
	}
}

func (key *typedKey[T]) MakeKeyEqualityChecker(arr arrow.Array) func(entryIndex uint, rowIndex uint) bool {
	value := key.arrayValues(arr)
	return func(entryIndex uint, rowIndex uint) bool {
		rowNull := arr.IsNull(int(rowIndex))
		if rowNull || !key.valid[entryIndex] {
			return rowNull && !key.valid[entryIndex]
		}
		if key.equal != nil {
			return key.equal(value(int(rowIndex)), key.values[entryIndex])
		}
		return value(int(rowIndex)) == key.values[entryIndex]
	}
}

func (key *typedKey[T]) GetBatch(length int, offset int) arrow.Array {
	builder := key.newBuilder()
	defer builder.Release()
	builder.AppendValues(key.values[offset:offset+length], key.valid[offset:offset+length])
	return builder.NewArray()
}

func MakeKey(allocator memory.Allocator, dt arrow.DataType) (Key, error) {
	switch dt.ID() {
	case arrow.INT64:
		return &typedKey[int64]{
			arrayValues: func(arr arrow.Array) func(i int) int64 { return arr.(*array.Int64).Value },
			newBuilder:  func() keyBuilder[int64] { return array.NewInt64Builder(allocator) },
		}, nil
	case arrow.UINT64:
		return &typedKey[uint64]{
			arrayValues: func(arr arrow.Array) func(i int) uint64 { return arr.(*array.Uint64).Value },
			newBuilder:  func() keyBuilder[uint64] { return array.NewUint64Builder(allocator) },
		}, nil
	case arrow.FLOAT64:
		return &typedKey[float64]{
			arrayValues: func(arr arrow.Array) func(i int) float64 { return arr.(*array.Float64).Value },
			newBuilder:  func() keyBuilder[float64] { return array.NewFloat64Builder(allocator) },
			equal:       helpers.FloatsEqual,
		}, nil
	case arrow.STRING:
		return &typedKey[string]{
			arrayValues: func(arr arrow.Array) func(i int) string { return arr.(*array.String).Value },
			newBuilder:  func() keyBuilder[string] { return array.NewStringBuilder(allocator) },
		}, nil
	case arrow.BOOL:
		return &typedKey[bool]{
			arrayValues: func(arr arrow.Array) func(i int) bool { return arr.(*array.Boolean).Value },
			newBuilder:  func() keyBuilder[bool] { return array.NewBooleanBuilder(allocator) },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported type for group by key: %s", dt)
	}
}
