package helpers

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
)

// MakeColumnRewriter returns a function appending the value at the given row of arr to the builder.
func MakeColumnRewriter(builder array.Builder, arr arrow.Array) func(rowIndex int) {
	// TODO: Should this operate on row ranges instead of single rows? Would make low-selectivity workloads faster, as well as nested types.
	var rewriter func(rowIndex int)
	switch builder.Type().ID() {
	case arrow.INT64:
		rewriter = rewriterForType[int64](builder.(*array.Int64Builder), arr.(*array.Int64))
	case arrow.UINT64:
		rewriter = rewriterForType[uint64](builder.(*array.Uint64Builder), arr.(*array.Uint64))
	case arrow.FLOAT64:
		rewriter = rewriterForType[float64](builder.(*array.Float64Builder), arr.(*array.Float64))
	case arrow.STRING:
		rewriter = rewriterForType[string](builder.(*array.StringBuilder), arr.(*array.String))
	case arrow.BOOL:
		rewriter = rewriterForType[bool](builder.(*array.BooleanBuilder), arr.(*array.Boolean))
	default:
		panic(fmt.Errorf("unsupported type for rewriting: %v", builder.Type().ID()))
	}
	if arr.NullN() == 0 {
		return rewriter
	}
	return func(rowIndex int) {
		if arr.IsNull(rowIndex) {
			builder.AppendNull()
			return
		}
		rewriter(rowIndex)
	}
}

func rewriterForType[T any, BuilderType interface{ Append(v T) }, ArrayType interface{ Value(i int) T }](builder BuilderType, arr ArrayType) func(rowIndex int) {
	return func(rowIndex int) {
		builder.Append(arr.Value(rowIndex))
	}
}

// MakeRecordRewriter returns a function appending a row of the record to the builder fields,
// starting with the builder field at fieldOffset.
func MakeRecordRewriter(recordBuilder *array.RecordBuilder, record arrow.Record, fieldOffset int) func(rowIndex int) {
	columnRewriters := make([]func(rowIndex int), record.NumCols())
	for i := range columnRewriters {
		columnRewriters[i] = MakeColumnRewriter(recordBuilder.Field(fieldOffset+i), record.Column(i))
	}
	return func(rowIndex int) {
		for _, rewrite := range columnRewriters {
			rewrite(rowIndex)
		}
	}
}

// TakeRows builds a new record out of the given rows of the input record, in the given order.
func TakeRows(allocator memory.Allocator, record arrow.Record, rows []int) arrow.Record {
	recordBuilder := array.NewRecordBuilder(allocator, record.Schema())
	defer recordBuilder.Release()
	recordBuilder.Reserve(len(rows))

	rewrite := MakeRecordRewriter(recordBuilder, record, 0)
	for _, row := range rows {
		rewrite(row)
	}
	return recordBuilder.NewRecord()
}
