package helpers

import (
	"fmt"
	"math"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/segmentio/fasthash/fnv1a"

	"github.com/cube2222/octopipe/arrowexec/execution"
)

// Mixed into the hash in place of a NULL value, so that NULLs hash consistently.
const nullHashMarker = 0x9e3779b97f4a7c15

func MakeRecordKeyHasher(record execution.Record, keyIndices []int) (func(rowIndex uint) uint64, error) {
	columns := make([]arrow.Array, len(keyIndices))
	for i := range columns {
		columns[i] = record.Column(keyIndices[i])
	}
	return MakeRowHasher(columns)
}

// MakeRowHasher returns a function hashing the tuple of values of the given columns at a row.
// Equal tuples always get equal hashes, independently of the record they're in.
func MakeRowHasher(columns []arrow.Array) (func(rowIndex uint) uint64, error) {
	subHashers := make([]func(hash uint64, rowIndex uint) uint64, len(columns))
	for i := range columns {
		var hasher func(hash uint64, rowIndex uint) uint64
		switch columns[i].DataType().ID() {
		case arrow.INT64:
			typedArr := columns[i].(*array.Int64).Int64Values()
			hasher = func(hash uint64, rowIndex uint) uint64 {
				return fnv1a.AddUint64(hash, uint64(typedArr[rowIndex]))
			}
		case arrow.UINT64:
			typedArr := columns[i].(*array.Uint64).Uint64Values()
			hasher = func(hash uint64, rowIndex uint) uint64 {
				return fnv1a.AddUint64(hash, typedArr[rowIndex])
			}
		case arrow.FLOAT64:
			typedArr := columns[i].(*array.Float64).Float64Values()
			hasher = func(hash uint64, rowIndex uint) uint64 {
				value := typedArr[rowIndex]
				if value == 0 {
					// Normalize negative zero.
					value = 0
				} else if math.IsNaN(value) {
					value = math.NaN()
				}
				return fnv1a.AddUint64(hash, math.Float64bits(value))
			}
		case arrow.STRING:
			typedArr := columns[i].(*array.String)
			hasher = func(hash uint64, rowIndex uint) uint64 {
				return fnv1a.AddString64(hash, typedArr.Value(int(rowIndex)))
			}
		case arrow.BOOL:
			typedArr := columns[i].(*array.Boolean)
			hasher = func(hash uint64, rowIndex uint) uint64 {
				if typedArr.Value(int(rowIndex)) {
					return fnv1a.AddUint64(hash, 1)
				}
				return fnv1a.AddUint64(hash, 0)
			}
		default:
			return nil, fmt.Errorf("unsupported type for hashing: %s", columns[i].DataType())
		}

		if columns[i].NullN() > 0 {
			column := columns[i]
			nonNullHasher := hasher
			hasher = func(hash uint64, rowIndex uint) uint64 {
				if column.IsNull(int(rowIndex)) {
					return fnv1a.AddUint64(hash, nullHashMarker)
				}
				return nonNullHasher(hash, rowIndex)
			}
		}
		subHashers[i] = hasher
	}
	return func(rowIndex uint) uint64 {
		hash := fnv1a.Init64
		for _, hasher := range subHashers {
			hash = hasher(hash, rowIndex)
		}
		return hash
	}, nil
}

// MakeNullChecker returns a function reporting whether any of the given columns is NULL at a row.
func MakeNullChecker(columns []arrow.Array) func(rowIndex int) bool {
	var nullable []arrow.Array
	for _, column := range columns {
		if column.NullN() > 0 {
			nullable = append(nullable, column)
		}
	}
	return func(rowIndex int) bool {
		for _, column := range nullable {
			if column.IsNull(rowIndex) {
				return true
			}
		}
		return false
	}
}
