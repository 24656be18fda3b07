package datasources

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/config"
	"github.com/cube2222/octopipe/datasources/csv"
	"github.com/cube2222/octopipe/datasources/json"
	"github.com/cube2222/octopipe/datasources/lines"
	"github.com/cube2222/octopipe/datasources/parquet"
	"github.com/cube2222/octopipe/datasources/postgres"
	"github.com/cube2222/octopipe/physical"
)

// Creator creates a table out of its data source configuration.
type Creator func(ctx context.Context, dbConfig map[string]interface{}) (physical.Datasource, error)

var creators = map[string]Creator{
	"csv": func(ctx context.Context, dbConfig map[string]interface{}) (physical.Datasource, error) {
		table, err := csv.Creator(dbConfig)
		if err != nil {
			return nil, err
		}
		return table, nil
	},
	"json": func(ctx context.Context, dbConfig map[string]interface{}) (physical.Datasource, error) {
		table, err := json.Creator(dbConfig)
		if err != nil {
			return nil, err
		}
		return table, nil
	},
	"lines": func(ctx context.Context, dbConfig map[string]interface{}) (physical.Datasource, error) {
		table, err := lines.Creator(dbConfig)
		if err != nil {
			return nil, err
		}
		return table, nil
	},
	"parquet": func(ctx context.Context, dbConfig map[string]interface{}) (physical.Datasource, error) {
		table, err := parquet.Creator(dbConfig)
		if err != nil {
			return nil, err
		}
		return table, nil
	},
	"postgres": func(ctx context.Context, dbConfig map[string]interface{}) (physical.Datasource, error) {
		table, err := postgres.Creator(ctx, dbConfig)
		if err != nil {
			return nil, err
		}
		return table, nil
	},
}

// Open creates the table of the given data source configuration.
func Open(ctx context.Context, dsConfig *config.DataSourceConfig) (physical.Datasource, error) {
	creator, ok := creators[dsConfig.Type]
	if !ok {
		return nil, execution.NewConfigurationError(errors.Errorf("unknown data source type %s of %s", dsConfig.Type, dsConfig.Name))
	}
	ds, err := creator(ctx, dsConfig.Config)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't create data source %s", dsConfig.Name)
	}
	return ds, nil
}
