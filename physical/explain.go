package physical

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"

	"github.com/cube2222/octopipe/arrowexec/nodes"
	"github.com/cube2222/octopipe/graph"
)

// Explain renders the plan one node per line, children indented by two spaces per level.
// Each line is the operator name, followed by its parameters after a colon.
func Explain(node Node) string {
	var sb strings.Builder
	explain(&sb, node, 0)
	return sb.String()
}

func explain(sb *strings.Builder, node Node, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(node.OperatorName())
	if params := node.parameters(); len(params) > 0 {
		sb.WriteString(": ")
		for i, param := range params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(param.String())
		}
	}
	sb.WriteString("\n")
	for _, child := range node.children() {
		explain(sb, child, depth+1)
	}
}

// ExplainGraph builds a graph of the plan, for rendering with graphviz.
func ExplainGraph(node Node) *graph.Node {
	out := graph.NewNode(node.OperatorName())
	for _, param := range node.parameters() {
		out.AddField(param.name, param.value)
	}
	out.AddField("partitioning", node.Partitioning().String())

	switch node.NodeType {
	case NodeTypeHashJoin:
		out.AddChild("build", ExplainGraph(node.HashJoin.Build))
		out.AddChild("probe", ExplainGraph(node.HashJoin.Probe))
	default:
		for _, child := range node.children() {
			out.AddChild("source", ExplainGraph(child))
		}
	}
	return out
}

// parameter is either a name=value pair, or a bare value with an empty name.
type parameter struct {
	name, value string
}

func (p parameter) String() string {
	if p.name == "" {
		return p.value
	}
	return p.name + "=" + p.value
}

func bare(value string) parameter {
	return parameter{value: value}
}

func named(name string, value any) parameter {
	return parameter{name: name, value: fmt.Sprint(value)}
}

// parameters returns the salient parameters of the node, in display order.
func (node Node) parameters() []parameter {
	switch node.NodeType {
	case NodeTypeScan:
		scan := node.Scan
		params := []parameter{bare(scan.Table)}
		if scan.Projection != nil {
			params = append(params, named("projection", fmt.Sprintf("[%s]", strings.Join(fieldNames(node.Schema), ", "))))
		}
		return append(params, named("partitioning", node.Partitioning()))

	case NodeTypeFilter:
		return []parameter{bare(node.Filter.Predicate.String())}

	case NodeTypeProjection:
		exprs := make([]string, len(node.Projection.Expressions))
		for i, expr := range node.Projection.Expressions {
			exprs[i] = expr.String()
			if expr.ExpressionType != ExpressionTypeColumn || expr.Column.Name != node.Projection.Names[i] {
				exprs[i] += " AS " + node.Projection.Names[i]
			}
		}
		return []parameter{bare(fmt.Sprintf("[%s]", strings.Join(exprs, ", ")))}

	case NodeTypeExchange:
		return []parameter{named("partitioning", node.Exchange.Partitioning)}

	case NodeTypeCoalesce:
		target := "default"
		if node.Coalesce.TargetBatchSize > 0 {
			target = strconv.Itoa(node.Coalesce.TargetBatchSize)
		}
		return []parameter{named("target_batch_size", target)}

	case NodeTypeCoalescePartitions:
		return nil

	case NodeTypeHashJoin:
		join := node.HashJoin
		pairs := make([]string, len(join.BuildKeys))
		for i := range join.BuildKeys {
			probeKey := "?"
			if i < len(join.ProbeKeys) {
				probeKey = join.ProbeKeys[i].String()
			}
			pairs[i] = fmt.Sprintf("(%s, %s)", join.BuildKeys[i], probeKey)
		}
		params := []parameter{
			named("type", join.Type),
			named("on", fmt.Sprintf("[%s]", strings.Join(pairs, ", "))),
		}
		if join.NullEqualsNull {
			params = append(params, named("null_equals_null", true))
		}
		return params

	case NodeTypeAggregate:
		agg := node.Aggregate
		keys := make([]string, len(agg.Keys))
		for i := range agg.Keys {
			keys[i] = agg.Keys[i].String()
		}
		aggs := make([]string, len(agg.Aggregates))
		for i := range agg.Aggregates {
			aggs[i] = agg.Aggregates[i].String()
		}
		return []parameter{
			named("mode", agg.Mode),
			named("gby", fmt.Sprintf("[%s]", strings.Join(keys, ", "))),
			named("aggr", fmt.Sprintf("[%s]", strings.Join(aggs, ", "))),
		}

	case NodeTypeSort:
		return sortParameters(node.Sort.Source.Schema, node.Sort.Fields, node.Sort.Fetch)

	case NodeTypeSortPreservingMerge:
		return sortParameters(node.SortPreservingMerge.Source.Schema, node.SortPreservingMerge.Fields, node.SortPreservingMerge.Fetch)

	case NodeTypeLimit:
		fetch := "None"
		if node.Limit.Fetch != nodes.NoFetch {
			fetch = strconv.Itoa(node.Limit.Fetch)
		}
		if node.Limit.Type == LimitTypeLocal {
			return []parameter{named("fetch", fetch)}
		}
		return []parameter{named("skip", node.Limit.Skip), named("fetch", fetch)}
	}
	panic(fmt.Sprintf("unexhaustive node type match: %d", node.NodeType))
}

func sortParameters(schema *arrow.Schema, fields []SortField, fetch int) []parameter {
	params := []parameter{bare(formatSortFields(schema, fields))}
	if fetch != nodes.NoFetch {
		params = append(params, named("fetch", fetch))
	}
	return params
}

func formatSortFields(schema *arrow.Schema, fields []SortField) string {
	out := make([]string, len(fields))
	for i, field := range fields {
		name := "?"
		if field.Column >= 0 && field.Column < len(schema.Fields()) {
			name = schema.Field(field.Column).Name
		}
		direction := "ASC"
		if field.Descending {
			direction = "DESC"
		}
		nulls := "NULLS LAST"
		if field.NullsFirst {
			nulls = "NULLS FIRST"
		}
		out[i] = fmt.Sprintf("%s@%d %s %s", name, field.Column, direction, nulls)
	}
	return fmt.Sprintf("[%s]", strings.Join(out, ", "))
}

func fieldNames(schema *arrow.Schema) []string {
	out := make([]string, len(schema.Fields()))
	for i, field := range schema.Fields() {
		out[i] = field.Name
	}
	return out
}
