package helpers

import (
	"fmt"
	"math"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
)

// MakeRowEqualityChecker returns a function comparing the key tuple at a left row with the key tuple at a right row.
// NULL is only equal to NULL if nullEqualsNull is set.
func MakeRowEqualityChecker(leftKeys, rightKeys []arrow.Array, nullEqualsNull bool) (func(leftRowIndex, rightRowIndex int) bool, error) {
	if len(leftKeys) != len(rightKeys) {
		return nil, fmt.Errorf("key column count mismatch in equality checker: %d != %d", len(leftKeys), len(rightKeys))
	}
	keyColumnCount := len(leftKeys)

	columnEqualityCheckers := make([]func(leftRowIndex, rightRowIndex int) bool, keyColumnCount)
	for i := 0; i < keyColumnCount; i++ {
		if !arrow.TypeEqual(leftKeys[i].DataType(), rightKeys[i].DataType()) {
			return nil, fmt.Errorf("key column %d type mismatch in equality checker: %s != %s", i, leftKeys[i].DataType(), rightKeys[i].DataType())
		}
		var checker func(leftRowIndex, rightRowIndex int) bool
		switch leftKeys[i].DataType().ID() {
		case arrow.INT64:
			leftTypedArr := leftKeys[i].(*array.Int64).Int64Values()
			rightTypedArr := rightKeys[i].(*array.Int64).Int64Values()
			checker = func(leftRowIndex, rightRowIndex int) bool {
				return leftTypedArr[leftRowIndex] == rightTypedArr[rightRowIndex]
			}
		case arrow.UINT64:
			leftTypedArr := leftKeys[i].(*array.Uint64).Uint64Values()
			rightTypedArr := rightKeys[i].(*array.Uint64).Uint64Values()
			checker = func(leftRowIndex, rightRowIndex int) bool {
				return leftTypedArr[leftRowIndex] == rightTypedArr[rightRowIndex]
			}
		case arrow.FLOAT64:
			leftTypedArr := leftKeys[i].(*array.Float64).Float64Values()
			rightTypedArr := rightKeys[i].(*array.Float64).Float64Values()
			checker = func(leftRowIndex, rightRowIndex int) bool {
				return FloatsEqual(leftTypedArr[leftRowIndex], rightTypedArr[rightRowIndex])
			}
		case arrow.STRING:
			leftTypedArr := leftKeys[i].(*array.String)
			rightTypedArr := rightKeys[i].(*array.String)
			checker = func(leftRowIndex, rightRowIndex int) bool {
				return leftTypedArr.Value(leftRowIndex) == rightTypedArr.Value(rightRowIndex)
			}
		case arrow.BOOL:
			leftTypedArr := leftKeys[i].(*array.Boolean)
			rightTypedArr := rightKeys[i].(*array.Boolean)
			checker = func(leftRowIndex, rightRowIndex int) bool {
				return leftTypedArr.Value(leftRowIndex) == rightTypedArr.Value(rightRowIndex)
			}
		default:
			return nil, fmt.Errorf("unsupported type for equality checker: %s", leftKeys[i].DataType())
		}

		if leftKeys[i].NullN() > 0 || rightKeys[i].NullN() > 0 {
			left, right := leftKeys[i], rightKeys[i]
			nonNullChecker := checker
			checker = func(leftRowIndex, rightRowIndex int) bool {
				leftNull, rightNull := left.IsNull(leftRowIndex), right.IsNull(rightRowIndex)
				if leftNull || rightNull {
					return leftNull && rightNull && nullEqualsNull
				}
				return nonNullChecker(leftRowIndex, rightRowIndex)
			}
		}
		columnEqualityCheckers[i] = checker
	}

	return func(leftRowIndex, rightRowIndex int) bool {
		for i := 0; i < keyColumnCount; i++ {
			if !columnEqualityCheckers[i](leftRowIndex, rightRowIndex) {
				return false
			}
		}
		return true
	}, nil
}

// FloatsEqual is float equality under which all NaNs are equal, so that they hash and group together.
func FloatsEqual(left, right float64) bool {
	return left == right || (math.IsNaN(left) && math.IsNaN(right))
}
