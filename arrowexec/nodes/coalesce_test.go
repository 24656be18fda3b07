package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
)

func TestCoalesce(t *testing.T) {
	var records []execution.Record
	var expected [][]helpers.Value
	for i := 0; i < 20; i++ {
		records = append(records, makeRecord(keyValueSchema, []any{"a", i}, []any{nil, -i}), makeRecord(keyValueSchema))
		expected = append(expected, row("a", i), row(nil, -i))
	}
	source := scanNode(keyValueSchema, records)

	var batchSizes []int64
	node := &Coalesce{Source: source, TargetBatchSize: 8}
	run, execCtx := execution.NewRunState(context.Background())
	var rows [][]helpers.Value
	require.NoError(t, node.Run(execCtx, 0, func(produceCtx execution.ProduceContext, record execution.Record) error {
		batchSizes = append(batchSizes, record.NumRows())
		rows = append(rows, helpers.RecordRows(record.Record)...)
		return nil
	}))
	require.NoError(t, run.Wait())

	assert.Equal(t, expected, rows, "order must be preserved")
	assert.Equal(t, []int64{8, 8, 8, 8, 8}, batchSizes)
}

func TestCoalescePassesBigRecords(t *testing.T) {
	source := scanNode(keyValueSchema, []execution.Record{
		makeRecord(keyValueSchema, []any{"a", 1}),
		makeRecord(keyValueSchema, []any{"b", 2}, []any{"c", 3}, []any{"d", 4}),
	})
	output, err := collect(&execution.NodeWithMeta{
		Node:         &Coalesce{Source: source, TargetBatchSize: 3},
		Schema:       keyValueSchema,
		Partitioning: source.Partitioning,
	}, execution.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, [][]helpers.Value{row("a", 1), row("b", 2), row("c", 3), row("d", 4)}, output)
}

func TestCoalescePartitions(t *testing.T) {
	partitions, expected := keyValuePartitions(4, 30)
	partitions = append(partitions, nil)
	output, err := collect(scanNode(keyValueSchema, partitions...), execution.Options{QueueCapacity: 1})
	require.NoError(t, err)
	assert.ElementsMatch(t, expected, output)
}
