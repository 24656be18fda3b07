package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/jackc/pgx"

	"github.com/cube2222/octopipe/arrowexec/execution"
)

type Options struct {
	// PartitionColumn is an integer column the rows are split on, required with more than one split.
	PartitionColumn string
	Splits          int
}

// Table is a Postgres table. Split i reads the rows with the partition column equal to i modulo the split count.
type Table struct {
	config  *Config
	table   string
	schema  *arrow.Schema
	options Options
}

func NewTable(config *Config, table string, schema *arrow.Schema, options Options) (*Table, error) {
	if options.Splits < 1 {
		return nil, execution.NewConfigurationError(fmt.Errorf("splits must be positive, got %d", options.Splits))
	}
	if options.Splits > 1 {
		if options.PartitionColumn == "" {
			return nil, execution.NewConfigurationError(fmt.Errorf("partitionColumn is required with %d splits", options.Splits))
		}
		indices := schema.FieldIndices(options.PartitionColumn)
		if len(indices) != 1 || schema.Field(indices[0]).Type.ID() != arrow.INT64 {
			return nil, execution.NewConfigurationError(fmt.Errorf("partitionColumn %s must be an integer column of table %s", options.PartitionColumn, table))
		}
	}
	return &Table{
		config:  config,
		table:   table,
		schema:  schema,
		options: options,
	}, nil
}

func (t *Table) Schema() *arrow.Schema {
	return t.schema
}

func (t *Table) Partitioning() execution.Partitioning {
	return execution.UnknownPartitioning(t.options.Splits)
}

func (t *Table) Materialize(ctx context.Context, projection []int) (execution.Node, error) {
	schema := t.schema
	if projection != nil {
		fields := make([]arrow.Field, len(projection))
		for i, index := range projection {
			if index < 0 || index >= len(t.schema.Fields()) {
				return nil, execution.NewConfigurationError(fmt.Errorf("projected column %d out of range", index))
			}
			fields[i] = t.schema.Field(index)
		}
		schema = arrow.NewSchema(fields, nil)
	}
	return &scan{
		config: t.config,
		schema: schema,
		query:  t.query,
		splits: t.options.Splits,
	}, nil
}

// query returns the query reading the given columns of a split.
func (t *Table) query(schema *arrow.Schema, split int) string {
	columns := make([]string, len(schema.Fields()))
	for i, field := range schema.Fields() {
		columns[i] = pgx.Identifier{field.Name}.Sanitize()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(columns, ", "), pgx.Identifier{t.table}.Sanitize())
	if t.options.Splits > 1 {
		fmt.Fprintf(&sb, " WHERE mod(abs(%s), %d) = %d", pgx.Identifier{t.options.PartitionColumn}.Sanitize(), t.options.Splits, split)
	}
	return sb.String()
}
