package memory

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/nodes"
)

// Table is a table held in memory, one list of records per partition.
type Table struct {
	schema     *arrow.Schema
	partitions [][]execution.Record
}

func NewTable(schema *arrow.Schema, partitions [][]execution.Record) *Table {
	return &Table{
		schema:     schema,
		partitions: partitions,
	}
}

func (t *Table) Schema() *arrow.Schema {
	return t.schema
}

func (t *Table) Partitioning() execution.Partitioning {
	return execution.UnknownPartitioning(len(t.partitions))
}

func (t *Table) Materialize(ctx context.Context, projection []int) (execution.Node, error) {
	for _, index := range projection {
		if index < 0 || index >= len(t.schema.Fields()) {
			return nil, execution.NewConfigurationError(fmt.Errorf("projected column %d out of range", index))
		}
	}
	return nodes.NewInMemoryScan(t.schema, t.partitions, projection), nil
}
