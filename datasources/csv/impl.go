package csv

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/apache/arrow/go/v13/arrow"

	"github.com/cube2222/octopipe/arrowexec/execution"
)

type Options struct {
	Delimiter rune
	// Header means the first line of the file holds the column names and gets skipped.
	Header bool
	// TrailingDelimiter means every line is terminated by the delimiter, like in TPC-H .tbl files.
	TrailingDelimiter bool
	// Splits is the count of byte ranges the file is read in, each one being a partition.
	Splits int
	// NullValues are the field contents read as NULL. Strings can only be NULL if NullValues are set.
	NullValues []string
}

// Table is a delimited text file with a fixed schema.
type Table struct {
	path    string
	schema  *arrow.Schema
	options Options
}

func NewTable(path string, schema *arrow.Schema, options Options) (*Table, error) {
	if options.Splits < 1 {
		return nil, execution.NewConfigurationError(fmt.Errorf("split count must be positive, got %d", options.Splits))
	}
	if options.Delimiter == 0 {
		options.Delimiter = ','
	}
	if options.TrailingDelimiter && options.Delimiter >= utf8.RuneSelf {
		return nil, execution.NewConfigurationError(fmt.Errorf("trailing delimiter %q must be a single byte", options.Delimiter))
	}
	return &Table{
		path:    path,
		schema:  schema,
		options: options,
	}, nil
}

func (t *Table) Schema() *arrow.Schema {
	return t.schema
}

// Partitioning is RoundRobin, as lines are spread over the splits irrespective of their contents.
func (t *Table) Partitioning() execution.Partitioning {
	return execution.RoundRobinPartitioning(t.options.Splits)
}

func (t *Table) Materialize(ctx context.Context, projection []int) (execution.Node, error) {
	for _, index := range projection {
		if index < 0 || index >= len(t.schema.Fields()) {
			return nil, execution.NewConfigurationError(fmt.Errorf("projected column %d out of range", index))
		}
	}
	var projectedSchema *arrow.Schema
	if projection != nil {
		projectedSchema = execution.ProjectSchema(t.schema, projection)
	}
	return &scan{
		table:           t,
		projection:      projection,
		projectedSchema: projectedSchema,
	}, nil
}
