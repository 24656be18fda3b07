package lines

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/pkg/errors"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/config"
)

var schema = arrow.NewSchema([]arrow.Field{
	{Name: "text", Type: arrow.BinaryTypes.String},
}, nil)

// Table is a text file with one row per line.
type Table struct {
	path   string
	splits int
}

func NewTable(path string, splits int) (*Table, error) {
	if splits < 1 {
		return nil, execution.NewConfigurationError(fmt.Errorf("split count must be positive, got %d", splits))
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, execution.NewSourceError(errors.Wrap(err, "couldn't check if file exists"))
	}
	if info.IsDir() {
		return nil, execution.NewConfigurationError(fmt.Errorf("%s is a directory", path))
	}
	return &Table{path: path, splits: splits}, nil
}

func Creator(dbConfig map[string]interface{}) (*Table, error) {
	path, err := config.GetString(dbConfig, "path")
	if err != nil {
		return nil, execution.NewConfigurationError(errors.Wrap(err, "couldn't get path"))
	}
	splits, err := config.GetInt(dbConfig, "splits", config.WithDefault(1))
	if err != nil {
		return nil, execution.NewConfigurationError(errors.Wrap(err, "couldn't get splits"))
	}
	return NewTable(path, splits)
}

func (t *Table) Schema() *arrow.Schema {
	return schema
}

func (t *Table) Partitioning() execution.Partitioning {
	return execution.RoundRobinPartitioning(t.splits)
}

func (t *Table) Materialize(ctx context.Context, projection []int) (execution.Node, error) {
	for _, index := range projection {
		if index != 0 {
			return nil, execution.NewConfigurationError(fmt.Errorf("projected column %d out of range", index))
		}
	}
	return &scan{path: t.path, splits: t.splits}, nil
}
