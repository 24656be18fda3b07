package nodes

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
)

func topK(source *execution.NodeWithMeta, fields []helpers.SortField, fetch int) *execution.NodeWithMeta {
	sorted := &execution.NodeWithMeta{
		Node:         &Sort{Source: source, Fields: fields, Fetch: fetch},
		Schema:       source.Schema,
		Partitioning: source.Partitioning,
	}
	return &execution.NodeWithMeta{
		Node:         &SortPreservingMerge{Source: sorted, Fields: fields, Fetch: fetch},
		Schema:       source.Schema,
		Partitioning: execution.SinglePartitioning(),
	}
}

func fullSort(rows [][]helpers.Value, fields []helpers.SortField) [][]helpers.Value {
	out := append([][]helpers.Value{}, rows...)
	sort.SliceStable(out, func(i, j int) bool {
		keyI, keyJ := make([]helpers.Value, len(fields)), make([]helpers.Value, len(fields))
		for f := range fields {
			keyI[f], keyJ[f] = out[i][fields[f].Column], out[j][fields[f].Column]
		}
		return helpers.CompareKeys(keyI, keyJ, fields) < 0
	})
	return out
}

func sortKeys(rows [][]helpers.Value, fields []helpers.SortField) [][]helpers.Value {
	out := make([][]helpers.Value, len(rows))
	for i := range rows {
		out[i] = make([]helpers.Value, len(fields))
		for f := range fields {
			out[i][f] = rows[i][fields[f].Column]
		}
	}
	return out
}

func TestTopKMatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	orderings := [][]helpers.SortField{
		{{Column: 1, Descending: true, NullsFirst: true}},
		{{Column: 0}, {Column: 1, Descending: true, NullsFirst: false}},
		{{Column: 0, Descending: true, NullsFirst: false}, {Column: 1, NullsFirst: true}},
	}
	for orderingIndex, fields := range orderings {
		for _, partitions := range []int{1, 2, 6} {
			for _, k := range []int{0, 1, 10, 1000} {
				t.Run(fmt.Sprintf("ordering=%d partitions=%d k=%d", orderingIndex, partitions, k), func(t *testing.T) {
					input := randomKeyValues(rng, partitions, 300)
					var all [][]helpers.Value
					for _, records := range input {
						for _, record := range records {
							all = append(all, helpers.RecordRows(record.Record)...)
						}
					}
					expected := fullSort(all, fields)
					if k < len(expected) {
						expected = expected[:k]
					}

					output, err := collect(topK(scanNode(keyValueSchema, input...), fields, k), execution.Options{BatchSize: 7, QueueCapacity: 1})
					require.NoError(t, err)
					require.Len(t, output, len(expected))
					// Rows with equal keys may come in any order across partitions, the keys must match exactly.
					assert.Equal(t, sortKeys(expected, fields), sortKeys(output, fields))
					assert.Subset(t, all, output)
				})
			}
		}
	}
}

func TestSortUnbounded(t *testing.T) {
	input := randomKeyValues(rand.New(rand.NewSource(5)), 3, 200)
	fields := []helpers.SortField{{Column: 0, NullsFirst: true}, {Column: 1, Descending: true, NullsFirst: true}}

	var all [][]helpers.Value
	for _, records := range input {
		for _, record := range records {
			all = append(all, helpers.RecordRows(record.Record)...)
		}
	}

	output, err := collect(topK(scanNode(keyValueSchema, input...), fields, NoFetch), execution.Options{BatchSize: 16})
	require.NoError(t, err)
	assert.Equal(t, sortKeys(fullSort(all, fields), fields), sortKeys(output, fields))
	assert.ElementsMatch(t, all, output)
}

func TestSortIsStable(t *testing.T) {
	records := []execution.Record{
		makeRecord(keyValueSchema, []any{"b", 1}, []any{"a", 2}, []any{"b", 3}),
		makeRecord(keyValueSchema, []any{"a", 4}, []any{"b", 5}),
	}
	fields := []helpers.SortField{{Column: 0}}
	for _, fetch := range []int{NoFetch, 4} {
		output, err := collect(&execution.NodeWithMeta{
			Node:         &Sort{Source: scanNode(keyValueSchema, records), Fields: fields, Fetch: fetch},
			Schema:       keyValueSchema,
			Partitioning: execution.SinglePartitioning(),
		}, execution.DefaultOptions())
		require.NoError(t, err)
		expected := [][]helpers.Value{row("a", 2), row("a", 4), row("b", 1), row("b", 3), row("b", 5)}
		if fetch != NoFetch {
			expected = expected[:fetch]
		}
		assert.Equal(t, expected, output)
	}
}

func TestTopKCompaction(t *testing.T) {
	var records []execution.Record
	for i := 0; i < maxRetainedRecords*3; i++ {
		records = append(records, makeRecord(keyValueSchema, []any{"x", i}, []any{"y", -i}))
	}
	fields := []helpers.SortField{{Column: 1}}
	output, err := collect(&execution.NodeWithMeta{
		Node:         &Sort{Source: scanNode(keyValueSchema, records), Fields: fields, Fetch: 3},
		Schema:       keyValueSchema,
		Partitioning: execution.SinglePartitioning(),
	}, execution.DefaultOptions())
	require.NoError(t, err)
	last := maxRetainedRecords*3 - 1
	assert.Equal(t, [][]helpers.Value{row("y", -last), row("y", -last+1), row("y", -last+2)}, output)
}

func TestMergeZeroRowPartitions(t *testing.T) {
	source := scanNode(keyValueSchema, nil, []execution.Record{makeRecord(keyValueSchema)}, []execution.Record{makeRecord(keyValueSchema, []any{"a", 1})})
	output, err := collect(topK(source, []helpers.SortField{{Column: 1}}, 10), execution.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, [][]helpers.Value{row("a", 1)}, output)
}

func TestMergeFetchStopsEndlessInputs(t *testing.T) {
	endless := &endlessNode{Record: makeRecord(keyValueSchema, []any{"a", 1}, []any{"a", 2})}
	source := &execution.NodeWithMeta{
		Node:         endless,
		Schema:       keyValueSchema,
		Partitioning: execution.UnknownPartitioning(3),
	}
	merge := &execution.NodeWithMeta{
		Node:         &SortPreservingMerge{Source: source, Fields: []helpers.SortField{{Column: 1}}, Fetch: 5},
		Schema:       keyValueSchema,
		Partitioning: execution.SinglePartitioning(),
	}
	output, err := collect(merge, execution.Options{QueueCapacity: 1})
	require.NoError(t, err)
	assert.Len(t, output, 5)
}
