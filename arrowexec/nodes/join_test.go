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

var joinBuildSchema = arrow.NewSchema([]arrow.Field{
	{Name: "bk", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "bname", Type: arrow.BinaryTypes.String},
}, nil)

var joinProbeSchema = arrow.NewSchema([]arrow.Field{
	{Name: "pk", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "pv", Type: arrow.PrimitiveTypes.Int64},
}, nil)

func joinInputs() (build, probe [][]any) {
	build = [][]any{
		{1, "one"},
		{2, "two"},
		{2, "two again"},
		{nil, "null"},
		{4, "four"},
	}
	probe = [][]any{
		{1, 10},
		{2, 20},
		{3, 30},
		{nil, 40},
		{2, 50},
		{5, 60},
	}
	return build, probe
}

// joinPlan splits the inputs into inputPartitions partitions and hash partitions both sides into partitions.
func joinPlan(build, probe [][]any, inputPartitions, partitions int, joinType JoinType, nullEqualsNull bool) *execution.NodeWithMeta {
	split := func(schema *arrow.Schema, rows [][]any) *execution.NodeWithMeta {
		recordPartitions := make([][]execution.Record, inputPartitions)
		for i, r := range rows {
			recordPartitions[i%inputPartitions] = append(recordPartitions[i%inputPartitions], makeRecord(schema, r))
		}
		return scanNode(schema, recordPartitions...)
	}
	buildKeys := []execution.Expression{column(joinBuildSchema, "bk")}
	probeKeys := []execution.Expression{column(joinProbeSchema, "pk")}
	buildSide := exchangeNode(split(joinBuildSchema, build), execution.HashPartitioning(buildKeys, partitions))
	probeSide := exchangeNode(split(joinProbeSchema, probe), execution.HashPartitioning(probeKeys, partitions))

	join := NewHashJoin(buildSide, probeSide, buildKeys, probeKeys, joinType, nullEqualsNull)
	return &execution.NodeWithMeta{
		Node:         join,
		Schema:       join.OutputSchema(),
		Partitioning: probeSide.Partitioning,
	}
}

func TestHashJoin(t *testing.T) {
	tests := []struct {
		joinType       JoinType
		nullEqualsNull bool
		expected       [][]helpers.Value
	}{
		{
			joinType: JoinTypeInner,
			expected: [][]helpers.Value{
				row(1, "one", 1, 10),
				row(2, "two", 2, 20),
				row(2, "two again", 2, 20),
				row(2, "two", 2, 50),
				row(2, "two again", 2, 50),
			},
		},
		{
			joinType:       JoinTypeInner,
			nullEqualsNull: true,
			expected: [][]helpers.Value{
				row(1, "one", 1, 10),
				row(2, "two", 2, 20),
				row(2, "two again", 2, 20),
				row(nil, "null", nil, 40),
				row(2, "two", 2, 50),
				row(2, "two again", 2, 50),
			},
		},
		{
			joinType: JoinTypeLeftSemi,
			expected: [][]helpers.Value{
				row(1, 10),
				row(2, 20),
				row(2, 50),
			},
		},
		{
			joinType: JoinTypeLeftAnti,
			expected: [][]helpers.Value{
				row(3, 30),
				row(nil, 40),
				row(5, 60),
			},
		},
	}
	for _, tt := range tests {
		for _, partitions := range []int{1, 2, 5} {
			t.Run(fmt.Sprintf("%s null_equals_null=%t partitions=%d", tt.joinType, tt.nullEqualsNull, partitions), func(t *testing.T) {
				build, probe := joinInputs()
				output, err := collect(joinPlan(build, probe, 3, partitions, tt.joinType, tt.nullEqualsNull), execution.DefaultOptions())
				require.NoError(t, err)
				assert.ElementsMatch(t, tt.expected, output)
			})
		}
	}
}

func TestHashJoinPartitionCountInvariance(t *testing.T) {
	var build, probe [][]any
	for i := 0; i < 300; i++ {
		build = append(build, []any{i % 37, fmt.Sprintf("b%d", i)})
		probe = append(probe, []any{i % 53, i})
	}
	for _, joinType := range []JoinType{JoinTypeInner, JoinTypeLeftSemi, JoinTypeLeftAnti} {
		t.Run(joinType.String(), func(t *testing.T) {
			expected, err := collect(joinPlan(build, probe, 1, 1, joinType, false), execution.DefaultOptions())
			require.NoError(t, err)
			for _, partitions := range []int{2, 3, 8} {
				output, err := collect(joinPlan(build, probe, 4, partitions, joinType, false), execution.Options{BatchSize: 64, QueueCapacity: 2})
				require.NoError(t, err)
				assert.ElementsMatch(t, expected, output, "partitions: %d", partitions)
			}
		})
	}
}

func TestHashJoinAntiNeverDuplicates(t *testing.T) {
	build := [][]any{{1, "a"}, {1, "b"}, {1, "c"}}
	probe := [][]any{{1, 1}, {2, 2}, {2, 3}}
	output, err := collect(joinPlan(build, probe, 2, 3, JoinTypeLeftAnti, false), execution.DefaultOptions())
	require.NoError(t, err)
	assert.ElementsMatch(t, [][]helpers.Value{row(2, 2), row(2, 3)}, output)
}

func TestHashJoinEmptyBuild(t *testing.T) {
	_, probe := joinInputs()
	for _, joinType := range []JoinType{JoinTypeInner, JoinTypeLeftSemi, JoinTypeLeftAnti} {
		output, err := collect(joinPlan(nil, probe, 2, 4, joinType, false), execution.DefaultOptions())
		require.NoError(t, err)
		if joinType == JoinTypeLeftAnti {
			assert.Len(t, output, len(probe))
		} else {
			assert.Empty(t, output)
		}
	}
}

func TestHashJoinEmptyProbe(t *testing.T) {
	build, _ := joinInputs()
	output, err := collect(joinPlan(build, nil, 2, 4, JoinTypeInner, false), execution.DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, output)
}

func TestHashJoinMaxBuildRows(t *testing.T) {
	build, probe := joinInputs()
	_, err := collect(joinPlan(build, probe, 1, 1, JoinTypeInner, false), execution.Options{MaxBuildRows: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, execution.ErrResource)
	var opErr *execution.OperatorError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "HashJoin", opErr.Operator)
}
