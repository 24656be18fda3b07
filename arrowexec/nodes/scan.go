package nodes

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"

	"github.com/cube2222/octopipe/arrowexec/execution"
)

// InMemoryScan serves records held in memory, one list of records per partition.
type InMemoryScan struct {
	// Schema is the schema of the stored records, before projection.
	Schema     *arrow.Schema
	Partitions [][]execution.Record
	// Projection lists the columns to return. All columns are returned if it's nil.
	Projection []int

	projectedSchema *arrow.Schema
}

func NewInMemoryScan(schema *arrow.Schema, partitions [][]execution.Record, projection []int) *InMemoryScan {
	projectedSchema := schema
	if projection != nil {
		projectedSchema = execution.ProjectSchema(schema, projection)
	}
	return &InMemoryScan{
		Schema:          schema,
		Partitions:      partitions,
		Projection:      projection,
		projectedSchema: projectedSchema,
	}
}

func (s *InMemoryScan) OutputSchema() *arrow.Schema {
	return s.projectedSchema
}

func (s *InMemoryScan) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	if partition < 0 || partition >= len(s.Partitions) {
		return execution.NewConfigurationError(fmt.Errorf("partition %d out of range, scan has %d partitions", partition, len(s.Partitions)))
	}
	for _, record := range s.Partitions[partition] {
		if err := ctx.Context.Err(); err != nil {
			return err
		}
		if s.Projection != nil {
			record = execution.Record{Record: execution.ProjectRecord(s.projectedSchema, record, s.Projection)}
		}
		if err := produce(execution.ProduceContext{Context: ctx}, record); err != nil {
			return fmt.Errorf("couldn't produce record: %w", err)
		}
	}
	return nil
}
