package physical

import (
	"context"
	"fmt"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
	"github.com/cube2222/octopipe/arrowexec/nodes"
)

type Environment struct {
	// Wrap, if set, is applied to every materialized operator, i.e. to instrument it.
	Wrap func(operator string, node *execution.NodeWithMeta) *execution.NodeWithMeta
}

// Materialize turns the plan into executable nodes. The plan should be validated first.
func (node Node) Materialize(ctx context.Context, env Environment) (*execution.NodeWithMeta, error) {
	materialized, err := node.materialize(ctx, env)
	if err != nil {
		return nil, err
	}
	partitioning, err := node.Partitioning().Materialize()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", node.OperatorName(), err)
	}
	out := &execution.NodeWithMeta{
		Node:         materialized,
		Schema:       node.Schema,
		Partitioning: partitioning,
	}
	if env.Wrap != nil {
		out = env.Wrap(node.OperatorName(), out)
	}
	return out, nil
}

func (node Node) materialize(ctx context.Context, env Environment) (execution.Node, error) {
	switch node.NodeType {
	case NodeTypeScan:
		out, err := node.Scan.Datasource.Materialize(ctx, node.Scan.Projection)
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize datasource %s: %w", node.Scan.Table, err)
		}
		return out, nil

	case NodeTypeFilter:
		source, err := node.Filter.Source.Materialize(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize filter source: %w", err)
		}
		predicate, err := node.Filter.Predicate.Materialize()
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize filter predicate: %w", err)
		}
		return nodes.NewFilter(source, predicate), nil

	case NodeTypeProjection:
		source, err := node.Projection.Source.Materialize(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize projection source: %w", err)
		}
		exprs, err := materializeAll(node.Projection.Expressions)
		if err != nil {
			return nil, err
		}
		return &nodes.Map{OutSchema: node.Schema, Source: source, Exprs: exprs}, nil

	case NodeTypeExchange:
		source, err := node.Exchange.Source.Materialize(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize exchange source: %w", err)
		}
		partitioning, err := node.Exchange.Partitioning.Materialize()
		if err != nil {
			return nil, err
		}
		return &nodes.Exchange{Source: source, Partitioning: partitioning}, nil

	case NodeTypeCoalesce:
		source, err := node.Coalesce.Source.Materialize(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize coalesce source: %w", err)
		}
		return &nodes.Coalesce{Source: source, TargetBatchSize: node.Coalesce.TargetBatchSize}, nil

	case NodeTypeCoalescePartitions:
		source, err := node.CoalescePartitions.Source.Materialize(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize coalesce partitions source: %w", err)
		}
		return &nodes.CoalescePartitions{Source: source}, nil

	case NodeTypeHashJoin:
		join := node.HashJoin
		build, err := join.Build.Materialize(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize hash join build side: %w", err)
		}
		probe, err := join.Probe.Materialize(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize hash join probe side: %w", err)
		}
		buildKeys, err := materializeAll(join.BuildKeys)
		if err != nil {
			return nil, err
		}
		probeKeys, err := materializeAll(join.ProbeKeys)
		if err != nil {
			return nil, err
		}
		return nodes.NewHashJoin(build, probe, buildKeys, probeKeys, join.Type, join.NullEqualsNull), nil

	case NodeTypeAggregate:
		agg := node.Aggregate
		source, err := agg.Source.Materialize(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize aggregate source: %w", err)
		}
		keys, err := materializeAll(agg.Keys)
		if err != nil {
			return nil, err
		}
		specs := make([]nodes.AggregateSpec, len(agg.Aggregates))
		for i, aggExpr := range agg.Aggregates {
			specs[i] = nodes.AggregateSpec{
				Function: aggExpr.Function,
				ArgType:  aggExpr.argumentType(),
				Distinct: aggExpr.Distinct,
			}
			if aggExpr.Argument != nil {
				if specs[i].Arg, err = aggExpr.Argument.Materialize(); err != nil {
					return nil, fmt.Errorf("couldn't materialize argument of %s: %w", aggExpr, err)
				}
			}
		}
		return &nodes.GroupBy{
			OutSchema:  node.Schema,
			Source:     source,
			Mode:       agg.Mode,
			KeyExprs:   keys,
			Aggregates: specs,
		}, nil

	case NodeTypeSort:
		source, err := node.Sort.Source.Materialize(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize sort source: %w", err)
		}
		return &nodes.Sort{Source: source, Fields: sortFields(node.Sort.Fields), Fetch: node.Sort.Fetch}, nil

	case NodeTypeSortPreservingMerge:
		source, err := node.SortPreservingMerge.Source.Materialize(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize sort preserving merge source: %w", err)
		}
		return &nodes.SortPreservingMerge{Source: source, Fields: sortFields(node.SortPreservingMerge.Fields), Fetch: node.SortPreservingMerge.Fetch}, nil

	case NodeTypeLimit:
		source, err := node.Limit.Source.Materialize(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("couldn't materialize limit source: %w", err)
		}
		if node.Limit.Type == LimitTypeGlobal {
			return &nodes.GlobalLimit{Source: source, Skip: node.Limit.Skip, Fetch: node.Limit.Fetch}, nil
		}
		return &nodes.LocalLimit{Source: source, Fetch: node.Limit.Fetch}, nil
	}
	panic(fmt.Sprintf("unexhaustive node type match: %d", node.NodeType))
}

func sortFields(fields []SortField) []helpers.SortField {
	out := make([]helpers.SortField, len(fields))
	for i, field := range fields {
		out[i] = helpers.SortField{
			Column:     field.Column,
			Descending: field.Descending,
			NullsFirst: field.NullsFirst,
		}
	}
	return out
}
