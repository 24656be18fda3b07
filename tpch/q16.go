package tpch

import (
	"fmt"

	"github.com/cube2222/octopipe/arrowexec/aggregates"
	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/functions"
	"github.com/cube2222/octopipe/arrowexec/helpers"
	"github.com/cube2222/octopipe/arrowexec/nodes"
	"github.com/cube2222/octopipe/physical"
)

type Sources struct {
	Part     physical.Datasource
	PartSupp physical.Datasource
	Supplier physical.Datasource
}

// Q16Plan plans TPC-H query 16, the parts/supplier relationship query:
//
//	SELECT p_brand, p_type, p_size, COUNT(DISTINCT ps_suppkey) AS supplier_cnt
//	FROM partsupp, part
//	WHERE p_partkey = ps_partkey
//	  AND p_brand <> 'Brand#45'
//	  AND p_type NOT LIKE 'MEDIUM POLISHED%'
//	  AND p_size IN (49, 14, 23, 45, 19, 3, 36, 9)
//	  AND ps_suppkey NOT IN (SELECT s_suppkey FROM supplier WHERE s_comment LIKE '%Customer%Complaints%')
//	GROUP BY p_brand, p_type, p_size
//	ORDER BY supplier_cnt DESC, p_brand, p_type, p_size
//	LIMIT 10
//
// The NOT IN subquery is planned as an anti join. s_suppkey is never NULL, so the two are equivalent.
// Columns are looked up by name, so the sources may order them any way.
func Q16Plan(sources Sources, partitions int) (physical.Node, error) {
	if partitions < 1 {
		return physical.Node{}, execution.NewConfigurationError(fmt.Errorf("partitions must be positive, got %d", partitions))
	}

	part, err := scan(PartTable, sources.Part, "p_partkey", "p_brand", "p_type", "p_size")
	if err != nil {
		return physical.Node{}, err
	}
	sizes := make([]helpers.Value, 0, 8)
	for _, size := range []int64{49, 14, 23, 45, 19, 3, 36, 9} {
		sizes = append(sizes, helpers.NewInt(size))
	}
	part = physical.NewFilter(part, physical.NewAnd(
		physical.NewCompare(functions.NotEqual, physical.ColumnAt(part.Schema, 1), physical.NewConstant(helpers.NewString("Brand#45"))),
		physical.NewLike(physical.ColumnAt(part.Schema, 2), "MEDIUM POLISHED%", true),
		physical.NewIn(physical.ColumnAt(part.Schema, 3), sizes, false),
	))

	partSupp, err := scan(PartSuppTable, sources.PartSupp, "ps_partkey", "ps_suppkey")
	if err != nil {
		return physical.Node{}, err
	}
	joined := physical.HashJoinPartitioned(
		part, partSupp,
		[]physical.Expression{physical.ColumnAt(part.Schema, 0)},
		[]physical.Expression{physical.ColumnAt(partSupp.Schema, 0)},
		nodes.JoinTypeInner, false, partitions,
	)

	supplier, err := scan(SupplierTable, sources.Supplier, "s_suppkey", "s_comment")
	if err != nil {
		return physical.Node{}, err
	}
	complaints, err := physical.NewProjection(
		physical.NewFilter(supplier, physical.NewLike(physical.ColumnAt(supplier.Schema, 1), "%Customer%Complaints%", false)),
		[]physical.Expression{physical.ColumnAt(supplier.Schema, 0)},
		[]string{"s_suppkey"},
	)
	if err != nil {
		return physical.Node{}, err
	}
	psSuppKey := physical.MustColumn(joined.Schema, "ps_suppkey")
	withoutComplaints := physical.HashJoinPartitioned(
		complaints, joined,
		[]physical.Expression{physical.ColumnAt(complaints.Schema, 0)},
		[]physical.Expression{psSuppKey},
		nodes.JoinTypeLeftAnti, false, partitions,
	)

	keys := []physical.Expression{
		physical.MustColumn(withoutComplaints.Schema, "p_brand"),
		physical.MustColumn(withoutComplaints.Schema, "p_type"),
		physical.MustColumn(withoutComplaints.Schema, "p_size"),
	}
	counted, err := physical.DistinctAggregate(withoutComplaints, keys, []string{"p_brand", "p_type", "p_size"}, []physical.AggregateExpression{
		{Function: aggregates.FunctionCount, Argument: &psSuppKey, Distinct: true, Name: "supplier_cnt"},
	}, partitions)
	if err != nil {
		return physical.Node{}, fmt.Errorf("couldn't plan supplier count: %w", err)
	}

	plan := physical.TopK(counted, []physical.SortField{physical.Desc(3), physical.Asc(0), physical.Asc(1), physical.Asc(2)}, 0, 10)
	if err := physical.Validate(plan); err != nil {
		return physical.Node{}, fmt.Errorf("invalid plan: %w", err)
	}
	return plan, nil
}

func scan(table string, datasource physical.Datasource, columns ...string) (physical.Node, error) {
	if datasource == nil {
		return physical.Node{}, execution.NewConfigurationError(fmt.Errorf("missing %s data source", table))
	}
	projection := make([]int, len(columns))
	for i, name := range columns {
		indices := datasource.Schema().FieldIndices(name)
		if len(indices) != 1 {
			return physical.Node{}, execution.NewConfigurationError(fmt.Errorf("%s data source must have exactly one %s column, has %d", table, name, len(indices)))
		}
		projection[i] = indices[0]
	}
	return physical.NewScan(table, datasource, projection)
}
