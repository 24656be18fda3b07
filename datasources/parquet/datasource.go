package parquet

import (
	"github.com/pkg/errors"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/config"
)

// Creator creates a table out of its data source configuration. The schema is read from the file.
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
