package physical

import (
	"context"
	"fmt"
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cube2222/octopipe/arrowexec/app"
	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
	memorytable "github.com/cube2222/octopipe/datasources/memory"
)

var groupSchema = arrow.NewSchema([]arrow.Field{
	{Name: "g", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "x", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "v", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
}, nil)

var keySchema = arrow.NewSchema([]arrow.Field{
	{Name: "k", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
}, nil)

// row converts Go values into a row. Ints become Int values, use uint64 for Uint values.
func row(values ...any) []helpers.Value {
	out := make([]helpers.Value, len(values))
	for i, v := range values {
		switch v := v.(type) {
		case nil:
			out[i] = helpers.NewNull()
		case int:
			out[i] = helpers.NewInt(int64(v))
		case uint64:
			out[i] = helpers.NewUint(v)
		case float64:
			out[i] = helpers.NewFloat(v)
		case string:
			out[i] = helpers.NewString(v)
		case bool:
			out[i] = helpers.NewBoolean(v)
		default:
			panic(fmt.Sprintf("unsupported value: %T", v))
		}
	}
	return out
}

// table creates a memory table with one record per partition.
func table(schema *arrow.Schema, partitions ...[][]helpers.Value) *memorytable.Table {
	records := make([][]execution.Record, len(partitions))
	for i, rows := range partitions {
		record, err := helpers.NewRecord(memory.DefaultAllocator, schema, rows)
		if err != nil {
			panic(err)
		}
		records[i] = []execution.Record{{Record: record}}
	}
	return memorytable.NewTable(schema, records)
}

func scan(t *testing.T, name string, datasource Datasource, projection []int) Node {
	node, err := NewScan(name, datasource, projection)
	require.NoError(t, err)
	return node
}

// groupTable has groups a, b, c and NULL spread over three partitions.
func groupTable() *memorytable.Table {
	return table(groupSchema,
		[][]helpers.Value{row("a", 1, 10), row("b", 2, 20), row("a", 1, 30)},
		[][]helpers.Value{row("a", 2, 5), row(nil, 1, 1), row("b", 2, 2)},
		[][]helpers.Value{row(nil, 1, 3), row("c", nil, 4), row("a", 3, 6)},
	)
}

func testOptions() app.Options {
	options := execution.DefaultOptions()
	options.QueueCapacity = 2
	return app.Options{Execution: options, Logger: zap.NewNop()}
}

// run validates, materializes and executes the plan, returning all result rows.
func run(t *testing.T, node Node) [][]helpers.Value {
	require.NoError(t, Validate(node))
	materialized, err := node.Materialize(context.Background(), Environment{})
	require.NoError(t, err)
	result, err := app.Collect(context.Background(), materialized, testOptions())
	require.NoError(t, err)
	return result.Rows()
}
