package json

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
)

const suppliers = `{"s_suppkey": 1, "s_name": "Supplier#000000001", "s_comment": "blithely final", "s_acctbal": 5755.94}
{"s_suppkey": 2, "s_name": "Supplier#000000002", "s_comment": "Customer Complaints slyly", "s_acctbal": 4032}

{"s_suppkey": 3, "s_name": "Supplier#000000003", "s_comment": null, "active": true}
{"s_suppkey": 4, "s_name": "Supplier#000000004", "s_acctbal": -283.84}
`

func writeFile(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "supplier.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func readAll(t *testing.T, table *Table, projection []int) ([][]helpers.Value, error) {
	node, err := table.Materialize(context.Background(), projection)
	require.NoError(t, err)

	options := execution.DefaultOptions()
	options.BatchSize = 2
	_, ctx := execution.NewRunState(context.Background(), execution.WithOptions(options))

	var out [][]helpers.Value
	for i := 0; i < table.Partitioning().PartitionCount(); i++ {
		if err := node.Run(ctx, i, func(produceCtx execution.ProduceContext, record execution.Record) error {
			out = append(out, helpers.RecordRows(record.Record)...)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func TestInferSchema(t *testing.T) {
	schema, err := InferSchema(writeFile(t, suppliers))
	require.NoError(t, err)

	var names []string
	for _, field := range schema.Fields() {
		names = append(names, field.Name)
		assert.True(t, field.Nullable)
	}
	assert.Equal(t, []string{"active", "s_acctbal", "s_comment", "s_name", "s_suppkey"}, names)
	assert.Equal(t, arrow.BOOL, schema.Field(0).Type.ID())
	assert.Equal(t, arrow.FLOAT64, schema.Field(1).Type.ID(), "ints and floats merge to floats")
	assert.Equal(t, arrow.INT64, schema.Field(4).Type.ID())

	_, err = InferSchema(writeFile(t, "{\"a\": 1}\n{\"a\": \"x\"}\n"))
	assert.ErrorIs(t, err, execution.ErrConfiguration)
}

func TestRead(t *testing.T) {
	path := writeFile(t, suppliers)
	schema, err := InferSchema(path)
	require.NoError(t, err)

	for splits := 1; splits <= 6; splits++ {
		table, err := NewTable(path, schema, splits)
		require.NoError(t, err)
		rows, err := readAll(t, table, []int{4, 2})
		require.NoError(t, err)
		assert.Equal(t, [][]helpers.Value{
			{helpers.NewInt(1), helpers.NewString("blithely final")},
			{helpers.NewInt(2), helpers.NewString("Customer Complaints slyly")},
			{helpers.NewInt(3), helpers.NewNull()},
			{helpers.NewInt(4), helpers.NewNull()},
		}, rows, "splits: %d", splits)
	}
}

func TestReadErrors(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{{Name: "a", Type: arrow.PrimitiveTypes.Int64, Nullable: true}}, nil)

	table, err := NewTable(writeFile(t, "{\"a\": 1}\n{\"a\": \n"), schema, 1)
	require.NoError(t, err)
	_, err = readAll(t, table, nil)
	assert.ErrorIs(t, err, execution.ErrSource)

	table, err = NewTable(writeFile(t, "{\"a\": \"one\"}\n"), schema, 1)
	require.NoError(t, err)
	_, err = readAll(t, table, nil)
	assert.ErrorIs(t, err, execution.ErrSource)

	_, err = NewTable("x.json", arrow.NewSchema([]arrow.Field{{Name: "d", Type: arrow.FixedWidthTypes.Date32}}, nil), 1)
	assert.ErrorIs(t, err, execution.ErrConfiguration)
}

func TestCreator(t *testing.T) {
	path := writeFile(t, suppliers)

	table, err := Creator(map[string]interface{}{"path": path, "splits": 2})
	require.NoError(t, err)
	assert.Len(t, table.Schema().Fields(), 5)
	assert.Equal(t, 2, table.Partitioning().PartitionCount())

	table, err = Creator(map[string]interface{}{
		"path":    path,
		"columns": []interface{}{map[string]interface{}{"name": "s_name", "type": "string"}},
	})
	require.NoError(t, err)
	rows, err := readAll(t, table, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Equal(t, helpers.NewString("Supplier#000000004"), rows[3][0])
}
