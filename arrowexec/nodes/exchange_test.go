package nodes

import (
	"fmt"
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
)

var keyValueSchema = arrow.NewSchema([]arrow.Field{
	{Name: "k", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "v", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
}, nil)

func keyValuePartitions(inputPartitions, rowsPerPartition int) ([][]execution.Record, [][]helpers.Value) {
	var partitions [][]execution.Record
	var expected [][]helpers.Value
	for p := 0; p < inputPartitions; p++ {
		var rows [][]any
		for i := 0; i < rowsPerPartition; i++ {
			var key any = fmt.Sprintf("key%d", (p*rowsPerPartition+i)%13)
			if i%17 == 0 {
				key = nil
			}
			rows = append(rows, []any{key, p*rowsPerPartition + i})
			expected = append(expected, row(key, p*rowsPerPartition+i))
		}
		// Records of varying sizes, including empty ones.
		var records []execution.Record
		for start := 0; start < len(rows); start += 7 {
			end := start + 7
			if end > len(rows) {
				end = len(rows)
			}
			records = append(records, makeRecord(keyValueSchema, rows[start:end]...), makeRecord(keyValueSchema))
		}
		partitions = append(partitions, records)
	}
	return partitions, expected
}

func TestExchangeHash(t *testing.T) {
	for _, inputCount := range []int{1, 3} {
		for _, outputCount := range []int{1, 4, 7} {
			t.Run(fmt.Sprintf("%d->%d", inputCount, outputCount), func(t *testing.T) {
				partitions, expected := keyValuePartitions(inputCount, 50)
				source := scanNode(keyValueSchema, partitions...)
				node := exchangeNode(source, execution.HashPartitioning([]execution.Expression{column(keyValueSchema, "k")}, outputCount))

				output, err := collectPartitions(node, execution.Options{BatchSize: 16, QueueCapacity: 2})
				require.NoError(t, err)
				require.Len(t, output, outputCount)
				assert.ElementsMatch(t, expected, flatten(output))

				keyPartition := map[helpers.Value]int{}
				for partition, rows := range output {
					for _, r := range rows {
						if previous, ok := keyPartition[r[0]]; ok {
							assert.Equal(t, previous, partition, "key %s in more than one partition", r[0])
						}
						keyPartition[r[0]] = partition
					}
				}
			})
		}
	}
}

func TestExchangeRoundRobin(t *testing.T) {
	partitions, expected := keyValuePartitions(3, 40)
	source := scanNode(keyValueSchema, partitions...)
	node := exchangeNode(source, execution.RoundRobinPartitioning(5))

	output, err := collectPartitions(node, execution.Options{BatchSize: 16, QueueCapacity: 1})
	require.NoError(t, err)
	assert.ElementsMatch(t, expected, flatten(output))

	nonEmpty := 0
	for _, rows := range output {
		if len(rows) > 0 {
			nonEmpty++
		}
	}
	assert.Greater(t, nonEmpty, 1)
}

func TestExchangeZeroRowPartitions(t *testing.T) {
	source := scanNode(keyValueSchema, nil, []execution.Record{makeRecord(keyValueSchema)}, nil)
	node := exchangeNode(source, execution.HashPartitioning([]execution.Expression{column(keyValueSchema, "k")}, 4))

	output, err := collectPartitions(node, execution.DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, flatten(output))
}

func TestExchangeSourceError(t *testing.T) {
	source := &execution.NodeWithMeta{
		Node: &failingNode{
			Records: []execution.Record{makeRecord(keyValueSchema, []any{"a", 1})},
			Err:     execution.NewSourceError(fmt.Errorf("disk on fire")),
		},
		Schema:       keyValueSchema,
		Partitioning: execution.UnknownPartitioning(2),
	}
	node := exchangeNode(source, execution.HashPartitioning([]execution.Expression{column(keyValueSchema, "k")}, 3))

	_, err := collect(node, execution.DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, execution.ErrSource)
	var opErr *execution.OperatorError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "Exchange", opErr.Operator)
}
