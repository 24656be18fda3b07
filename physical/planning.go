package physical

import (
	"fmt"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/nodes"
)

// Repartition hash partitions the source on the keys, unless it already is partitioned that way.
func Repartition(source Node, keys []Expression, partitions int) Node {
	current := source.Partitioning()
	if current.PartitionCount() == partitions && current.CoLocates(keys) {
		return source
	}
	return NewExchange(source, HashPartitioning(keys, partitions))
}

// HashJoinPartitioned plans a partitioned hash join, repartitioning the inputs on the join keys
// if they aren't already co-located.
func HashJoinPartitioned(build, probe Node, buildKeys, probeKeys []Expression, joinType nodes.JoinType, nullEqualsNull bool, partitions int) Node {
	buildPartitioning, probePartitioning := build.Partitioning(), probe.Partitioning()
	if !buildPartitioning.HashCompatible(buildKeys, probePartitioning, probeKeys) {
		build = NewExchange(build, HashPartitioning(buildKeys, partitions))
		probe = NewExchange(probe, HashPartitioning(probeKeys, partitions))
	}
	return NewHashJoin(build, probe, buildKeys, probeKeys, joinType, nullEqualsNull)
}

// TwoPhaseAggregate plans a Partial aggregate on every source partition, followed by a hash repartitioning
// on the group keys and a FinalPartitioned aggregate. A global aggregate gathers its partial states in a single partition instead.
func TwoPhaseAggregate(source Node, keys []Expression, keyNames []string, aggs []AggregateExpression, partitions int) (Node, error) {
	for _, agg := range aggs {
		if agg.Distinct {
			return Node{}, execution.NewConfigurationError(fmt.Errorf("%s can't be computed in two phases, use DistinctAggregate", agg))
		}
	}
	partial, err := NewAggregate(source, nodes.AggregateModePartial, keys, keyNames, aggs)
	if err != nil {
		return Node{}, err
	}

	finalKeys := make([]Expression, len(keys))
	for i := range finalKeys {
		finalKeys[i] = ColumnAt(partial.Schema, i)
	}
	finalAggs := make([]AggregateExpression, len(aggs))
	for i, agg := range aggs {
		state := ColumnAt(partial.Schema, len(keys)+i)
		finalAggs[i] = AggregateExpression{
			Function: agg.Function,
			Argument: &state,
			Name:     agg.Name,
		}
	}

	if len(keys) == 0 {
		var input Node
		if partial.Partitioning().PartitionCount() > 1 {
			input = NewCoalescePartitions(partial)
		} else {
			input = partial
		}
		return NewAggregate(input, nodes.AggregateModeFinal, finalKeys, keyNames, finalAggs)
	}
	return NewAggregate(Repartition(partial, finalKeys, partitions), nodes.AggregateModeFinalPartitioned, finalKeys, keyNames, finalAggs)
}

// DistinctAggregate plans aggregates of which some are DISTINCT, all over the same argument.
//
// The distinct aggregates are computed in two stages, both two-phase aggregates:
// stage A groups by the keys together with the distinct argument, removing duplicates,
// stage B groups stage A's output by the keys, with the distinct aggregates now being ordinary ones.
// Ordinary aggregates are computed in a separate two-phase aggregate over the source,
// joined with stage B on the group keys, NULL keys matching each other.
//
// The output has the group keys first, followed by the aggregates in the given order.
func DistinctAggregate(source Node, keys []Expression, keyNames []string, aggs []AggregateExpression, partitions int) (Node, error) {
	var distinctArg *Expression
	var distinctAggs, ordinaryAggs []AggregateExpression
	var distinctPositions, ordinaryPositions []int
	for i, agg := range aggs {
		if !agg.Distinct {
			ordinaryAggs = append(ordinaryAggs, agg)
			ordinaryPositions = append(ordinaryPositions, i)
			continue
		}
		if agg.Argument == nil {
			return Node{}, execution.NewConfigurationError(fmt.Errorf("%s requires an argument", agg))
		}
		if distinctArg != nil && distinctArg.String() != agg.Argument.String() {
			return Node{}, execution.NewConfigurationError(fmt.Errorf("all distinct aggregates must have the same argument, got %s and %s", *distinctArg, *agg.Argument))
		}
		distinctArg = agg.Argument
		distinctAggs = append(distinctAggs, agg)
		distinctPositions = append(distinctPositions, i)
	}
	if distinctArg == nil {
		return TwoPhaseAggregate(source, keys, keyNames, aggs, partitions)
	}
	if len(keys) == 0 && len(ordinaryAggs) > 0 {
		return Node{}, execution.NewConfigurationError(fmt.Errorf("global aggregates can't mix distinct and ordinary aggregates"))
	}

	// Stage A: distinct (keys, argument) tuples.
	distinctArgName := "__distinct_arg"
	if distinctArg.ExpressionType == ExpressionTypeColumn {
		distinctArgName = distinctArg.Column.Name
	}
	stageA, err := TwoPhaseAggregate(source, append(append([]Expression{}, keys...), *distinctArg), append(append([]string{}, keyNames...), distinctArgName), nil, partitions)
	if err != nil {
		return Node{}, fmt.Errorf("couldn't plan distinct values: %w", err)
	}

	// Stage B: the distinct aggregates over the deduplicated argument.
	stageBKeys := make([]Expression, len(keys))
	for i := range stageBKeys {
		stageBKeys[i] = ColumnAt(stageA.Schema, i)
	}
	dedupedArg := ColumnAt(stageA.Schema, len(keys))
	stageBAggs := make([]AggregateExpression, len(distinctAggs))
	for i, agg := range distinctAggs {
		stageBAggs[i] = AggregateExpression{Function: agg.Function, Argument: &dedupedArg, Name: agg.Name}
	}
	stageB, err := TwoPhaseAggregate(stageA, stageBKeys, keyNames, stageBAggs, partitions)
	if err != nil {
		return Node{}, fmt.Errorf("couldn't plan distinct aggregates: %w", err)
	}
	if len(ordinaryAggs) == 0 {
		return stageB, nil
	}

	ordinary, err := TwoPhaseAggregate(source, keys, keyNames, ordinaryAggs, partitions)
	if err != nil {
		return Node{}, fmt.Errorf("couldn't plan ordinary aggregates: %w", err)
	}

	// The join output is the ordinary pass (keys, ordinary aggregates) followed by stage B (keys, distinct aggregates).
	buildKeys := make([]Expression, len(keys))
	probeKeys := make([]Expression, len(keys))
	for i := range keys {
		buildKeys[i] = ColumnAt(ordinary.Schema, i)
		probeKeys[i] = ColumnAt(stageB.Schema, i)
	}
	joined := HashJoinPartitioned(ordinary, stageB, buildKeys, probeKeys, nodes.JoinTypeInner, true, partitions)

	probeOffset := len(ordinary.Schema.Fields())
	exprs := make([]Expression, len(keys)+len(aggs))
	names := make([]string, len(keys)+len(aggs))
	for i := range keys {
		exprs[i] = ColumnAt(joined.Schema, probeOffset+i)
		names[i] = keyNames[i]
	}
	for i, position := range ordinaryPositions {
		exprs[len(keys)+position] = ColumnAt(joined.Schema, len(keys)+i)
		names[len(keys)+position] = aggs[position].Name
	}
	for i, position := range distinctPositions {
		exprs[len(keys)+position] = ColumnAt(joined.Schema, probeOffset+len(keys)+i)
		names[len(keys)+position] = aggs[position].Name
	}
	return NewProjection(joined, exprs, names)
}

// TopK plans an ORDER BY with a LIMIT: a bounded sort of every partition,
// a merge of the sorted partitions and a global limit.
func TopK(source Node, fields []SortField, skip, fetch int) Node {
	sortFetch := nodes.NoFetch
	if fetch != nodes.NoFetch {
		sortFetch = skip + fetch
	}
	sorted := NewSort(source, fields, sortFetch)
	if sorted.Partitioning().PartitionCount() > 1 {
		sorted = NewSortPreservingMerge(sorted, fields, sortFetch)
	}
	return NewGlobalLimit(sorted, skip, fetch)
}
