package physical

import (
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/octopipe/arrowexec/aggregates"
	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
	"github.com/cube2222/octopipe/arrowexec/nodes"
)

func TestValidate(t *testing.T) {
	groups := scan(t, "t", groupTable(), nil)
	keys := scan(t, "k", table(keySchema, [][]helpers.Value{row(1)}, [][]helpers.Value{row(2)}, [][]helpers.Value{row(3)}), nil)
	g, x, v := MustColumn(groupSchema, "g"), MustColumn(groupSchema, "x"), MustColumn(groupSchema, "v")
	k := MustColumn(keySchema, "k")

	hashedGroups := NewExchange(groups, HashPartitioning([]Expression{x}, 3))
	hashedKeys := NewExchange(keys, HashPartitioning([]Expression{k}, 3))

	tests := []struct {
		name    string
		plan    func(t *testing.T) Node
		wantErr string
	}{
		{
			name: "co-located join",
			plan: func(t *testing.T) Node {
				return NewHashJoin(hashedKeys, hashedGroups, []Expression{k}, []Expression{x}, nodes.JoinTypeInner, false)
			},
		},
		{
			name: "join key type mismatch",
			plan: func(t *testing.T) Node {
				return NewHashJoin(keys, groups, []Expression{k}, []Expression{g}, nodes.JoinTypeInner, false)
			},
			wantErr: "key type mismatch",
		},
		{
			name: "join partition count mismatch",
			plan: func(t *testing.T) Node {
				return NewHashJoin(NewExchange(keys, HashPartitioning([]Expression{k}, 2)), hashedGroups, []Expression{k}, []Expression{x}, nodes.JoinTypeInner, false)
			},
			wantErr: "partition count mismatch",
		},
		{
			name: "join inputs not co-located",
			plan: func(t *testing.T) Node {
				return NewHashJoin(keys, groups, []Expression{k}, []Expression{x}, nodes.JoinTypeLeftSemi, false)
			},
			wantErr: "aren't co-located",
		},
		{
			name: "join without keys",
			plan: func(t *testing.T) Node {
				return NewHashJoin(keys, groups, nil, nil, nodes.JoinTypeInner, false)
			},
			wantErr: "got 0 build keys",
		},
		{
			name: "final partitioned aggregate over unpartitioned input",
			plan: func(t *testing.T) Node {
				agg, err := NewAggregate(groups, nodes.AggregateModeFinalPartitioned, []Expression{g}, []string{"g"}, []AggregateExpression{
					{Function: aggregates.FunctionSum, Argument: &v, Name: "s"},
				})
				require.NoError(t, err)
				return agg
			},
			wantErr: "hash partitioned on the group keys",
		},
		{
			name: "single aggregate over co-located input",
			plan: func(t *testing.T) Node {
				agg, err := NewAggregate(hashedGroups, nodes.AggregateModeSingle, []Expression{x, g}, []string{"x", "g"}, []AggregateExpression{
					{Function: aggregates.FunctionCount, Argument: &v, Distinct: true, Name: "c"},
				})
				require.NoError(t, err)
				return agg
			},
		},
		{
			name: "distinct aggregate in partial mode",
			plan: func(t *testing.T) Node {
				agg, err := NewAggregate(groups, nodes.AggregateModePartial, []Expression{g}, []string{"g"}, []AggregateExpression{
					{Function: aggregates.FunctionCount, Argument: &v, Distinct: true, Name: "c"},
				})
				require.NoError(t, err)
				return agg
			},
			wantErr: "only supported in the Single mode",
		},
		{
			name: "global limit over many partitions",
			plan: func(t *testing.T) Node {
				return NewGlobalLimit(groups, 0, 10)
			},
			wantErr: "single partition",
		},
		{
			name: "filter with non-boolean predicate",
			plan: func(t *testing.T) Node {
				return NewFilter(groups, v)
			},
			wantErr: "must be boolean",
		},
		{
			name: "sort column out of range",
			plan: func(t *testing.T) Node {
				return NewSort(groups, []SortField{Asc(5)}, 3)
			},
			wantErr: "out of range",
		},
		{
			name: "declared schema mismatch",
			plan: func(t *testing.T) Node {
				node := NewCoalescePartitions(groups)
				node.Schema = arrow.NewSchema(groupSchema.Fields()[:2], nil)
				return node
			},
			wantErr: "schema mismatch",
		},
		{
			name: "invalid child",
			plan: func(t *testing.T) Node {
				return NewCoalescePartitions(NewSort(groups, nil, nodes.NoFetch))
			},
			wantErr: "Sort: no sort fields",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.plan(t))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, execution.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewAggregateUnknownFunction(t *testing.T) {
	groups := scan(t, "t", groupTable(), nil)
	v := MustColumn(groupSchema, "v")
	_, err := NewAggregate(groups, nodes.AggregateModeSingle, nil, nil, []AggregateExpression{
		{Function: "median", Argument: &v, Name: "m"},
	})
	assert.ErrorIs(t, err, execution.ErrConfiguration)

	_, err = NewAggregate(groups, nodes.AggregateModeSingle, nil, nil, []AggregateExpression{
		{Function: aggregates.FunctionSum, Name: "s"},
	})
	assert.ErrorIs(t, err, execution.ErrConfiguration)
}
