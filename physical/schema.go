package physical

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"

	"github.com/cube2222/octopipe/arrowexec/aggregates"
	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/nodes"
)

func NewScan(table string, datasource Datasource, projection []int) (Node, error) {
	return newNode(Node{NodeType: NodeTypeScan, Scan: &Scan{Table: table, Datasource: datasource, Projection: projection}})
}

func NewFilter(source Node, predicate Expression) Node {
	return Node{Schema: source.Schema, NodeType: NodeTypeFilter, Filter: &Filter{Source: source, Predicate: predicate}}
}

func NewProjection(source Node, exprs []Expression, names []string) (Node, error) {
	return newNode(Node{NodeType: NodeTypeProjection, Projection: &Projection{Source: source, Expressions: exprs, Names: names}})
}

func NewExchange(source Node, partitioning Partitioning) Node {
	return Node{Schema: source.Schema, NodeType: NodeTypeExchange, Exchange: &Exchange{Source: source, Partitioning: partitioning}}
}

func NewCoalesce(source Node, targetBatchSize int) Node {
	return Node{Schema: source.Schema, NodeType: NodeTypeCoalesce, Coalesce: &Coalesce{Source: source, TargetBatchSize: targetBatchSize}}
}

func NewCoalescePartitions(source Node) Node {
	return Node{Schema: source.Schema, NodeType: NodeTypeCoalescePartitions, CoalescePartitions: &CoalescePartitions{Source: source}}
}

func NewHashJoin(build, probe Node, buildKeys, probeKeys []Expression, joinType nodes.JoinType, nullEqualsNull bool) Node {
	return Node{
		Schema:   nodes.HashJoinSchema(build.Schema, probe.Schema, joinType),
		NodeType: NodeTypeHashJoin,
		HashJoin: &HashJoin{
			Build:          build,
			Probe:          probe,
			BuildKeys:      buildKeys,
			ProbeKeys:      probeKeys,
			Type:           joinType,
			NullEqualsNull: nullEqualsNull,
		},
	}
}

func NewAggregate(source Node, mode nodes.AggregateMode, keys []Expression, keyNames []string, aggs []AggregateExpression) (Node, error) {
	return newNode(Node{NodeType: NodeTypeAggregate, Aggregate: &Aggregate{Source: source, Mode: mode, Keys: keys, KeyNames: keyNames, Aggregates: aggs}})
}

func NewSort(source Node, fields []SortField, fetch int) Node {
	return Node{Schema: source.Schema, NodeType: NodeTypeSort, Sort: &Sort{Source: source, Fields: fields, Fetch: fetch}}
}

func NewSortPreservingMerge(source Node, fields []SortField, fetch int) Node {
	return Node{Schema: source.Schema, NodeType: NodeTypeSortPreservingMerge, SortPreservingMerge: &SortPreservingMerge{Source: source, Fields: fields, Fetch: fetch}}
}

func NewGlobalLimit(source Node, skip, fetch int) Node {
	return Node{Schema: source.Schema, NodeType: NodeTypeLimit, Limit: &Limit{Source: source, Type: LimitTypeGlobal, Skip: skip, Fetch: fetch}}
}

func NewLocalLimit(source Node, fetch int) Node {
	return Node{Schema: source.Schema, NodeType: NodeTypeLimit, Limit: &Limit{Source: source, Type: LimitTypeLocal, Fetch: fetch}}
}

func newNode(node Node) (Node, error) {
	schema, err := node.deriveSchema()
	if err != nil {
		return Node{}, execution.NewConfigurationError(fmt.Errorf("%s: %w", node.OperatorName(), err))
	}
	node.Schema = schema
	return node, nil
}

// deriveSchema computes the output schema of the node from its inputs.
func (node Node) deriveSchema() (*arrow.Schema, error) {
	switch node.NodeType {
	case NodeTypeScan:
		schema := node.Scan.Datasource.Schema()
		if node.Scan.Projection == nil {
			return schema, nil
		}
		for _, index := range node.Scan.Projection {
			if index < 0 || index >= len(schema.Fields()) {
				return nil, fmt.Errorf("projected column %d out of range for table %s with %d columns", index, node.Scan.Table, len(schema.Fields()))
			}
		}
		return execution.ProjectSchema(schema, node.Scan.Projection), nil

	case NodeTypeProjection:
		projection := node.Projection
		if len(projection.Names) != len(projection.Expressions) {
			return nil, fmt.Errorf("got %d names for %d expressions", len(projection.Names), len(projection.Expressions))
		}
		fields := make([]arrow.Field, len(projection.Expressions))
		for i, expr := range projection.Expressions {
			fields[i] = arrow.Field{Name: projection.Names[i], Type: expr.Type, Nullable: true}
		}
		return arrow.NewSchema(fields, nil), nil

	case NodeTypeHashJoin:
		return nodes.HashJoinSchema(node.HashJoin.Build.Schema, node.HashJoin.Probe.Schema, node.HashJoin.Type), nil

	case NodeTypeAggregate:
		return node.Aggregate.deriveSchema()

	case NodeTypeFilter, NodeTypeExchange, NodeTypeCoalesce, NodeTypeCoalescePartitions,
		NodeTypeSort, NodeTypeSortPreservingMerge, NodeTypeLimit:
		return node.children()[0].Schema, nil
	}
	panic(fmt.Sprintf("unexhaustive node type match: %d", node.NodeType))
}

// deriveSchema lays out the group keys first, followed by the aggregates.
// Partial states have the same types as final values, so the layout doesn't depend on the mode.
func (agg *Aggregate) deriveSchema() (*arrow.Schema, error) {
	if len(agg.KeyNames) != len(agg.Keys) {
		return nil, fmt.Errorf("got %d key names for %d keys", len(agg.KeyNames), len(agg.Keys))
	}
	fields := make([]arrow.Field, 0, len(agg.Keys)+len(agg.Aggregates))
	for i, key := range agg.Keys {
		fields = append(fields, arrow.Field{Name: agg.KeyNames[i], Type: key.Type, Nullable: true})
	}
	for _, aggExpr := range agg.Aggregates {
		outputType, err := aggExpr.outputType()
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: aggExpr.Name, Type: outputType, Nullable: true})
	}
	return arrow.NewSchema(fields, nil), nil
}

func (agg AggregateExpression) outputType() (arrow.DataType, error) {
	details, err := aggregates.Lookup(agg.Function)
	if err != nil {
		return nil, err
	}
	if agg.Argument == nil {
		if agg.Function != aggregates.FunctionCount {
			return nil, fmt.Errorf("%s requires an argument", agg.Function)
		}
		return arrow.PrimitiveTypes.Uint64, nil
	}
	return details.OutputType(agg.Argument.Type)
}

func (agg AggregateExpression) argumentType() arrow.DataType {
	if agg.Argument == nil {
		return nil
	}
	return agg.Argument.Type
}
