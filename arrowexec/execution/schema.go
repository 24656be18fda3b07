package execution

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
)

// SchemasCompatible checks that field order, names and types match exactly.
func SchemasCompatible(left, right *arrow.Schema) error {
	if len(left.Fields()) != len(right.Fields()) {
		return fmt.Errorf("field count mismatch: %d != %d", len(left.Fields()), len(right.Fields()))
	}
	for i := range left.Fields() {
		l, r := left.Field(i), right.Field(i)
		if l.Name != r.Name {
			return fmt.Errorf("field %d name mismatch: %s != %s", i, l.Name, r.Name)
		}
		if !arrow.TypeEqual(l.Type, r.Type) {
			return fmt.Errorf("field %s type mismatch: %s != %s", l.Name, l.Type, r.Type)
		}
	}
	return nil
}

// ProjectRecord returns a record consisting of the given columns of the input record.
func ProjectRecord(schema *arrow.Schema, record arrow.Record, columns []int) arrow.Record {
	arrays := make([]arrow.Array, len(columns))
	for i, index := range columns {
		arrays[i] = record.Column(index)
	}
	return array.NewRecord(schema, arrays, record.NumRows())
}

// ProjectSchema returns the schema of the given columns.
func ProjectSchema(schema *arrow.Schema, columns []int) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, index := range columns {
		fields[i] = schema.Field(index)
	}
	return arrow.NewSchema(fields, nil)
}
