package helpers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
)

type ValueType int

const (
	TypeNull ValueType = iota
	TypeInt
	TypeUint
	TypeFloat
	TypeString
	TypeBoolean
)

// Value is a single typed, possibly NULL, value.
// It's used where rows from different records have to be compared, and to present results.
type Value struct {
	Type    ValueType
	Int     int64
	Uint    uint64
	Float   float64
	Str     string
	Boolean bool
}

func NewNull() Value               { return Value{Type: TypeNull} }
func NewInt(value int64) Value     { return Value{Type: TypeInt, Int: value} }
func NewUint(value uint64) Value   { return Value{Type: TypeUint, Uint: value} }
func NewFloat(value float64) Value { return Value{Type: TypeFloat, Float: value} }
func NewString(value string) Value { return Value{Type: TypeString, Str: value} }
func NewBoolean(value bool) Value  { return Value{Type: TypeBoolean, Boolean: value} }
func (v Value) IsNull() bool       { return v.Type == TypeNull }

// Compare returns -1, 0 or 1. NULLs are equal to each other and less than any other value.
// Values of different types are ordered by their type.
func (v Value) Compare(other Value) int {
	if v.Type != other.Type {
		if v.Type < other.Type {
			return -1
		}
		return 1
	}
	switch v.Type {
	case TypeNull:
		return 0
	case TypeInt:
		return compareOrdered(v.Int, other.Int)
	case TypeUint:
		return compareOrdered(v.Uint, other.Uint)
	case TypeFloat:
		return compareOrdered(v.Float, other.Float)
	case TypeString:
		return strings.Compare(v.Str, other.Str)
	case TypeBoolean:
		if v.Boolean == other.Boolean {
			return 0
		}
		if !v.Boolean {
			return -1
		}
		return 1
	}
	panic(fmt.Sprintf("unexhaustive value type match: %d", v.Type))
}

func compareOrdered[T int64 | uint64 | float64](a, b T) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func (v Value) String() string {
	switch v.Type {
	case TypeNull:
		return "NULL"
	case TypeInt:
		return strconv.FormatInt(v.Int, 10)
	case TypeUint:
		return strconv.FormatUint(v.Uint, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case TypeString:
		return v.Str
	case TypeBoolean:
		return strconv.FormatBool(v.Boolean)
	}
	panic(fmt.Sprintf("unexhaustive value type match: %d", v.Type))
}

// MakeValueGetter returns a function reading the value at a row of arr.
func MakeValueGetter(arr arrow.Array) func(rowIndex int) Value {
	var getter func(rowIndex int) Value
	switch arr.DataType().ID() {
	case arrow.INT64:
		typedArr := arr.(*array.Int64)
		getter = func(rowIndex int) Value { return NewInt(typedArr.Value(rowIndex)) }
	case arrow.UINT64:
		typedArr := arr.(*array.Uint64)
		getter = func(rowIndex int) Value { return NewUint(typedArr.Value(rowIndex)) }
	case arrow.FLOAT64:
		typedArr := arr.(*array.Float64)
		getter = func(rowIndex int) Value { return NewFloat(typedArr.Value(rowIndex)) }
	case arrow.STRING:
		typedArr := arr.(*array.String)
		getter = func(rowIndex int) Value { return NewString(typedArr.Value(rowIndex)) }
	case arrow.BOOL:
		typedArr := arr.(*array.Boolean)
		getter = func(rowIndex int) Value { return NewBoolean(typedArr.Value(rowIndex)) }
	default:
		panic(fmt.Errorf("unsupported type for value getter: %v", arr.DataType()))
	}
	if arr.NullN() == 0 {
		return getter
	}
	return func(rowIndex int) Value {
		if arr.IsNull(rowIndex) {
			return NewNull()
		}
		return getter(rowIndex)
	}
}

// RecordRows reads all rows of the record.
func RecordRows(record arrow.Record) [][]Value {
	getters := make([]func(rowIndex int) Value, record.NumCols())
	for i := range getters {
		getters[i] = MakeValueGetter(record.Column(i))
	}
	out := make([][]Value, record.NumRows())
	for rowIndex := range out {
		row := make([]Value, len(getters))
		for i := range getters {
			row[i] = getters[i](rowIndex)
		}
		out[rowIndex] = row
	}
	return out
}

// AppendValue appends the value to a builder of the matching type.
func AppendValue(builder array.Builder, value Value) error {
	if value.IsNull() {
		builder.AppendNull()
		return nil
	}
	switch builder := builder.(type) {
	case *array.Int64Builder:
		if value.Type == TypeInt {
			builder.Append(value.Int)
			return nil
		}
	case *array.Uint64Builder:
		if value.Type == TypeUint {
			builder.Append(value.Uint)
			return nil
		}
	case *array.Float64Builder:
		if value.Type == TypeFloat {
			builder.Append(value.Float)
			return nil
		}
	case *array.StringBuilder:
		if value.Type == TypeString {
			builder.Append(value.Str)
			return nil
		}
	case *array.BooleanBuilder:
		if value.Type == TypeBoolean {
			builder.Append(value.Boolean)
			return nil
		}
	}
	return fmt.Errorf("can't append %s value to %s builder", value, builder.Type())
}

// NewRecord builds a record out of rows of values.
func NewRecord(allocator memory.Allocator, schema *arrow.Schema, rows [][]Value) (arrow.Record, error) {
	recordBuilder := array.NewRecordBuilder(allocator, schema)
	defer recordBuilder.Release()
	for rowIndex, row := range rows {
		if len(row) != len(schema.Fields()) {
			return nil, fmt.Errorf("row %d has %d values, schema has %d fields", rowIndex, len(row), len(schema.Fields()))
		}
		for i, value := range row {
			if err := AppendValue(recordBuilder.Field(i), value); err != nil {
				return nil, fmt.Errorf("row %d, field %s: %w", rowIndex, schema.Field(i).Name, err)
			}
		}
	}
	return recordBuilder.NewRecord(), nil
}
