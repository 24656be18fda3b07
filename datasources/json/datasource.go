package json

import (
	"github.com/pkg/errors"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/config"
)

// Creator creates a table out of its data source configuration.
// The schema is inferred from the file if no columns are configured.
func Creator(dbConfig map[string]interface{}) (*Table, error) {
	path, err := config.GetString(dbConfig, "path")
	if err != nil {
		return nil, execution.NewConfigurationError(errors.Wrap(err, "couldn't get path"))
	}
	splits, err := config.GetInt(dbConfig, "splits", config.WithDefault(1))
	if err != nil {
		return nil, execution.NewConfigurationError(errors.Wrap(err, "couldn't get splits"))
	}

	if _, err := config.GetInterface(dbConfig, "columns"); errors.Cause(err) == config.ErrNotFound {
		schema, err := InferSchema(path)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't infer schema")
		}
		return NewTable(path, schema, splits)
	}
	schema, err := config.GetSchema(dbConfig, "columns")
	if err != nil {
		return nil, execution.NewConfigurationError(errors.Wrap(err, "couldn't get columns"))
	}
	return NewTable(path, schema, splits)
}
