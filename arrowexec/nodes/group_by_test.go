package nodes

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/octopipe/arrowexec/aggregates"
	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
)

var aggregatedSchema = arrow.NewSchema([]arrow.Field{
	{Name: "k", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "cnt", Type: arrow.PrimitiveTypes.Uint64},
	{Name: "total", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "smallest", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
}, nil)

func groupByNode(source *execution.NodeWithMeta, mode AggregateMode, schema *arrow.Schema, keys []execution.Expression, aggs []AggregateSpec) *execution.NodeWithMeta {
	partitioning := source.Partitioning
	if mode == AggregateModeSingle || mode == AggregateModeFinal {
		partitioning = execution.SinglePartitioning()
	}
	return &execution.NodeWithMeta{
		Node: &GroupBy{
			OutSchema:  schema,
			Source:     source,
			Mode:       mode,
			KeyExprs:   keys,
			Aggregates: aggs,
		},
		Schema:       schema,
		Partitioning: partitioning,
	}
}

func twoPhaseAggregate(source *execution.NodeWithMeta, partitions int) *execution.NodeWithMeta {
	v := column(keyValueSchema, "v")
	partial := groupByNode(source, AggregateModePartial, aggregatedSchema,
		[]execution.Expression{column(keyValueSchema, "k")},
		[]AggregateSpec{
			{Function: aggregates.FunctionCount, Arg: v, ArgType: arrow.PrimitiveTypes.Int64},
			{Function: aggregates.FunctionSum, Arg: v, ArgType: arrow.PrimitiveTypes.Int64},
			{Function: aggregates.FunctionMin, Arg: v, ArgType: arrow.PrimitiveTypes.Int64},
		},
	)
	groupKeys := []execution.Expression{column(aggregatedSchema, "k")}
	exchange := exchangeNode(partial, execution.HashPartitioning(groupKeys, partitions))
	return groupByNode(exchange, AggregateModeFinalPartitioned, aggregatedSchema, groupKeys,
		[]AggregateSpec{
			{Function: aggregates.FunctionCount, Arg: column(aggregatedSchema, "cnt"), ArgType: arrow.PrimitiveTypes.Uint64},
			{Function: aggregates.FunctionSum, Arg: column(aggregatedSchema, "total"), ArgType: arrow.PrimitiveTypes.Int64},
			{Function: aggregates.FunctionMin, Arg: column(aggregatedSchema, "smallest"), ArgType: arrow.PrimitiveTypes.Int64},
		},
	)
}

func randomKeyValues(rng *rand.Rand, inputPartitions, rows int) [][]execution.Record {
	partitions := make([][]execution.Record, inputPartitions)
	for i := 0; i < rows; i++ {
		var key any = fmt.Sprintf("k%d", rng.Intn(20))
		if rng.Intn(10) == 0 {
			key = nil
		}
		var value any = rng.Intn(50) - 10
		if rng.Intn(8) == 0 {
			value = nil
		}
		partition := rng.Intn(inputPartitions)
		partitions[partition] = append(partitions[partition], makeRecord(keyValueSchema, []any{key, value}))
	}
	return partitions
}

func naiveAggregate(partitions [][]execution.Record) [][]helpers.Value {
	type state struct {
		count    uint64
		sum      int64
		smallest int64
		any      bool
	}
	states := map[helpers.Value]*state{}
	var order []helpers.Value
	for _, records := range partitions {
		for _, record := range records {
			for _, r := range helpers.RecordRows(record.Record) {
				s, ok := states[r[0]]
				if !ok {
					s = &state{}
					states[r[0]] = s
					order = append(order, r[0])
				}
				if r[1].IsNull() {
					continue
				}
				s.count++
				s.sum += r[1].Int
				if !s.any || r[1].Int < s.smallest {
					s.smallest = r[1].Int
				}
				s.any = true
			}
		}
	}
	var out [][]helpers.Value
	for _, key := range order {
		s := states[key]
		total, smallest := helpers.NewNull(), helpers.NewNull()
		if s.any {
			total, smallest = helpers.NewInt(s.sum), helpers.NewInt(s.smallest)
		}
		out = append(out, []helpers.Value{key, helpers.NewUint(s.count), total, smallest})
	}
	return out
}

func TestTwoPhaseAggregate(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, inputPartitions := range []int{1, 3} {
		for _, partitions := range []int{1, 2, 7} {
			t.Run(fmt.Sprintf("%d->%d", inputPartitions, partitions), func(t *testing.T) {
				input := randomKeyValues(rng, inputPartitions, 500)
				output, err := collect(twoPhaseAggregate(scanNode(keyValueSchema, input...), partitions), execution.Options{BatchSize: 8, QueueCapacity: 2})
				require.NoError(t, err)
				assert.ElementsMatch(t, naiveAggregate(input), output)
			})
		}
	}
}

func TestAggregateNullKeysFormOneGroup(t *testing.T) {
	source := scanNode(keyValueSchema,
		[]execution.Record{makeRecord(keyValueSchema, []any{nil, 1}, []any{"a", 2})},
		[]execution.Record{makeRecord(keyValueSchema, []any{nil, 3})},
	)
	output, err := collect(twoPhaseAggregate(source, 3), execution.DefaultOptions())
	require.NoError(t, err)
	assert.ElementsMatch(t, [][]helpers.Value{
		row(nil, uint64(2), 4, 1),
		row("a", uint64(1), 2, 2),
	}, output)
}

func TestFloatKeyNaNsFormOneGroup(t *testing.T) {
	builder := array.NewFloat64Builder(memory.DefaultAllocator)
	builder.AppendValues([]float64{math.NaN(), 1, math.NaN()}, nil)
	arr := builder.NewArray()

	key, err := MakeKey(memory.DefaultAllocator, arrow.PrimitiveTypes.Float64)
	require.NoError(t, err)
	key.MakeNewKeyAdder(arr)(0)
	key.MakeNewKeyAdder(arr)(1)

	equal := key.MakeKeyEqualityChecker(arr)
	assert.True(t, equal(0, 2))
	assert.False(t, equal(1, 2))
	assert.True(t, equal(1, 1))
}

func TestAggregateZeroRowPartitions(t *testing.T) {
	source := scanNode(keyValueSchema, nil, []execution.Record{makeRecord(keyValueSchema)}, nil)
	output, err := collect(twoPhaseAggregate(source, 4), execution.DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, output)
}

func TestGlobalAggregateWithoutInput(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "cnt", Type: arrow.PrimitiveTypes.Uint64},
		{Name: "total", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)
	v := column(keyValueSchema, "v")
	node := groupByNode(scanNode(keyValueSchema, nil), AggregateModeSingle, schema, nil, []AggregateSpec{
		{Function: aggregates.FunctionCount},
		{Function: aggregates.FunctionSum, Arg: v, ArgType: arrow.PrimitiveTypes.Int64},
	})
	output, err := collect(node, execution.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, [][]helpers.Value{row(uint64(0), nil)}, output)
}

func TestAggregateMaxGroups(t *testing.T) {
	input := randomKeyValues(rand.New(rand.NewSource(1)), 2, 200)
	_, err := collect(twoPhaseAggregate(scanNode(keyValueSchema, input...), 2), execution.Options{MaxGroups: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, execution.ErrResource)
}

var distinctSchema = arrow.NewSchema([]arrow.Field{
	{Name: "k", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "cnt", Type: arrow.PrimitiveTypes.Uint64},
}, nil)

// distinctCount computes COUNT(DISTINCT v) GROUP BY k by deduplicating (k, v) first, then counting per k.
func distinctCount(source *execution.NodeWithMeta, partitions int) *execution.NodeWithMeta {
	dedupKeys := []execution.Expression{column(keyValueSchema, "k"), column(keyValueSchema, "v")}
	dedupPartial := groupByNode(source, AggregateModePartial, keyValueSchema, dedupKeys, nil)
	dedupExchange := exchangeNode(dedupPartial, execution.HashPartitioning(dedupKeys, partitions))
	dedup := groupByNode(dedupExchange, AggregateModeFinalPartitioned, keyValueSchema, dedupKeys, nil)

	countPartial := groupByNode(dedup, AggregateModePartial, distinctSchema,
		[]execution.Expression{column(keyValueSchema, "k")},
		[]AggregateSpec{{Function: aggregates.FunctionCount, Arg: column(keyValueSchema, "v"), ArgType: arrow.PrimitiveTypes.Int64}},
	)
	groupKeys := []execution.Expression{column(distinctSchema, "k")}
	countExchange := exchangeNode(countPartial, execution.HashPartitioning(groupKeys, partitions))
	return groupByNode(countExchange, AggregateModeFinalPartitioned, distinctSchema, groupKeys,
		[]AggregateSpec{{Function: aggregates.FunctionCount, Arg: column(distinctSchema, "cnt"), ArgType: arrow.PrimitiveTypes.Uint64}},
	)
}

func TestDistinctCountMatchesSinglePartition(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	input := randomKeyValues(rng, 4, 800)

	var all []execution.Record
	for _, records := range input {
		all = append(all, records...)
	}
	naive := groupByNode(scanNode(keyValueSchema, all), AggregateModeSingle, distinctSchema,
		[]execution.Expression{column(keyValueSchema, "k")},
		[]AggregateSpec{{Function: aggregates.FunctionCount, Arg: column(keyValueSchema, "v"), ArgType: arrow.PrimitiveTypes.Int64, Distinct: true}},
	)
	expected, err := collect(naive, execution.DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, expected)

	for _, partitions := range []int{1, 2, 5} {
		output, err := collect(distinctCount(scanNode(keyValueSchema, input...), partitions), execution.Options{BatchSize: 16, QueueCapacity: 2})
		require.NoError(t, err)
		assert.ElementsMatch(t, expected, output, "partitions: %d", partitions)
	}
}

func TestDistinctRequiresSingleMode(t *testing.T) {
	node := groupByNode(scanNode(keyValueSchema, nil), AggregateModePartial, distinctSchema,
		[]execution.Expression{column(keyValueSchema, "k")},
		[]AggregateSpec{{Function: aggregates.FunctionCount, Arg: column(keyValueSchema, "v"), ArgType: arrow.PrimitiveTypes.Int64, Distinct: true}},
	)
	_, err := collect(node, execution.DefaultOptions())
	assert.ErrorIs(t, err, execution.ErrConfiguration)
}
