package physical

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"

	"github.com/cube2222/octopipe/arrowexec/aggregates"
	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/nodes"
)

// Node is a physical plan node. The set of node kinds is closed,
// every step over the plan is an exhaustive switch on the NodeType.
type Node struct {
	Schema *arrow.Schema

	NodeType NodeType
	// Only one of the below may be non-null.
	Scan                *Scan
	Filter              *Filter
	Projection          *Projection
	Exchange            *Exchange
	Coalesce            *Coalesce
	CoalescePartitions  *CoalescePartitions
	HashJoin            *HashJoin
	Aggregate           *Aggregate
	Sort                *Sort
	SortPreservingMerge *SortPreservingMerge
	Limit               *Limit
}

type NodeType int

const (
	NodeTypeScan NodeType = iota
	NodeTypeFilter
	NodeTypeProjection
	NodeTypeExchange
	NodeTypeCoalesce
	NodeTypeCoalescePartitions
	NodeTypeHashJoin
	NodeTypeAggregate
	NodeTypeSort
	NodeTypeSortPreservingMerge
	NodeTypeLimit
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeScan:
		return "Scan"
	case NodeTypeFilter:
		return "Filter"
	case NodeTypeProjection:
		return "Projection"
	case NodeTypeExchange:
		return "Exchange"
	case NodeTypeCoalesce:
		return "Coalesce"
	case NodeTypeCoalescePartitions:
		return "CoalescePartitions"
	case NodeTypeHashJoin:
		return "HashJoin"
	case NodeTypeAggregate:
		return "Aggregate"
	case NodeTypeSort:
		return "Sort"
	case NodeTypeSortPreservingMerge:
		return "SortPreservingMerge"
	case NodeTypeLimit:
		return "Limit"
	}
	return "unknown"
}

// Datasource is a partitioned table.
type Datasource interface {
	Schema() *arrow.Schema
	// Partitioning is the partitioning of the records the datasource returns. It has no hash keys.
	Partitioning() execution.Partitioning
	// Materialize returns a node serving the given columns of the table. All columns are returned if projection is nil.
	Materialize(ctx context.Context, projection []int) (execution.Node, error)
}

type Scan struct {
	Table      string
	Datasource Datasource
	Projection []int
}

type Filter struct {
	Source    Node
	Predicate Expression
}

type Projection struct {
	Source      Node
	Expressions []Expression
	Names       []string
}

type Exchange struct {
	Source       Node
	Partitioning Partitioning
}

type Coalesce struct {
	Source Node
	// TargetBatchSize of 0 means the configured batch size.
	TargetBatchSize int
}

type CoalescePartitions struct {
	Source Node
}

type HashJoin struct {
	Build, Probe         Node
	BuildKeys, ProbeKeys []Expression
	Type                 nodes.JoinType
	NullEqualsNull       bool
}

type Aggregate struct {
	Source     Node
	Mode       nodes.AggregateMode
	Keys       []Expression
	KeyNames   []string
	Aggregates []AggregateExpression
}

type AggregateExpression struct {
	Function aggregates.Function
	// Argument is nil for COUNT(*).
	Argument *Expression
	Distinct bool
	Name     string
}

func (agg AggregateExpression) String() string {
	arg := "*"
	if agg.Argument != nil {
		arg = agg.Argument.String()
	}
	if agg.Distinct {
		arg = "DISTINCT " + arg
	}
	return fmt.Sprintf("%s(%s)", strings.ToUpper(string(agg.Function)), arg)
}

type SortField struct {
	Column     int
	Descending bool
	NullsFirst bool
}

// Asc and Desc create sort fields with the default NULL placement.
func Asc(column int) SortField {
	return SortField{Column: column}
}

func Desc(column int) SortField {
	return SortField{Column: column, Descending: true, NullsFirst: true}
}

type Sort struct {
	Source Node
	Fields []SortField
	// Fetch is nodes.NoFetch for a full sort.
	Fetch int
}

type SortPreservingMerge struct {
	Source Node
	Fields []SortField
	// Fetch is nodes.NoFetch for an unlimited merge.
	Fetch int
}

type LimitType int

const (
	LimitTypeGlobal LimitType = iota
	LimitTypeLocal
)

type Limit struct {
	Source Node
	Type   LimitType
	// Skip is only supported by global limits.
	Skip int
	// Fetch is nodes.NoFetch for a global limit only skipping rows.
	Fetch int
}

// Partitioning derives the output partitioning of the node.
func (node Node) Partitioning() Partitioning {
	switch node.NodeType {
	case NodeTypeScan:
		return fromExecutionPartitioning(node.Scan.Datasource.Partitioning())

	case NodeTypeFilter:
		return node.Filter.Source.Partitioning()

	case NodeTypeProjection:
		projection := node.Projection
		return projection.Source.Partitioning().mapKeys(func(column Column) (Column, bool) {
			for i, expr := range projection.Expressions {
				if expr.ExpressionType == ExpressionTypeColumn && expr.Column.Index == column.Index {
					return Column{Name: projection.Names[i], Index: i}, true
				}
			}
			return Column{}, false
		})

	case NodeTypeExchange:
		return node.Exchange.Partitioning

	case NodeTypeCoalesce:
		return node.Coalesce.Source.Partitioning()

	case NodeTypeCoalescePartitions:
		return SinglePartitioning()

	case NodeTypeHashJoin:
		join := node.HashJoin
		probePartitioning := join.Probe.Partitioning()
		if join.Type != nodes.JoinTypeInner {
			return probePartitioning
		}
		offset := len(join.Build.Schema.Fields())
		return probePartitioning.mapKeys(func(column Column) (Column, bool) {
			return Column{Name: column.Name, Index: column.Index + offset}, true
		})

	case NodeTypeAggregate:
		agg := node.Aggregate
		sourcePartitioning := agg.Source.Partitioning()
		if agg.Mode == nodes.AggregateModeFinal {
			return SinglePartitioning()
		}
		return sourcePartitioning.mapKeys(func(column Column) (Column, bool) {
			for i, key := range agg.Keys {
				if key.ExpressionType == ExpressionTypeColumn && key.Column.Index == column.Index {
					return Column{Name: agg.KeyNames[i], Index: i}, true
				}
			}
			return Column{}, false
		})

	case NodeTypeSort:
		return node.Sort.Source.Partitioning()

	case NodeTypeSortPreservingMerge:
		return SinglePartitioning()

	case NodeTypeLimit:
		if node.Limit.Type == LimitTypeGlobal {
			return SinglePartitioning()
		}
		return node.Limit.Source.Partitioning()
	}
	panic(fmt.Sprintf("unexhaustive node type match: %d", node.NodeType))
}

// OperatorName is the name used for the node in errors, metrics and plan rendering.
func (node Node) OperatorName() string {
	if node.NodeType == NodeTypeLimit {
		if node.Limit.Type == LimitTypeGlobal {
			return "GlobalLimit"
		}
		return "LocalLimit"
	}
	return node.NodeType.String()
}

func (node Node) children() []Node {
	switch node.NodeType {
	case NodeTypeScan:
		return nil
	case NodeTypeFilter:
		return []Node{node.Filter.Source}
	case NodeTypeProjection:
		return []Node{node.Projection.Source}
	case NodeTypeExchange:
		return []Node{node.Exchange.Source}
	case NodeTypeCoalesce:
		return []Node{node.Coalesce.Source}
	case NodeTypeCoalescePartitions:
		return []Node{node.CoalescePartitions.Source}
	case NodeTypeHashJoin:
		return []Node{node.HashJoin.Build, node.HashJoin.Probe}
	case NodeTypeAggregate:
		return []Node{node.Aggregate.Source}
	case NodeTypeSort:
		return []Node{node.Sort.Source}
	case NodeTypeSortPreservingMerge:
		return []Node{node.SortPreservingMerge.Source}
	case NodeTypeLimit:
		return []Node{node.Limit.Source}
	}
	panic(fmt.Sprintf("unexhaustive node type match: %d", node.NodeType))
}
