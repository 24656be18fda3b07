package postgres

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/jackc/pgx"
	"github.com/jackc/pgx/log/zapadapter"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/config"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

func connect(ctx context.Context, config *Config, logger *zap.Logger) (*pgx.Conn, error) {
	connConfig := pgx.ConnConfig{
		Host:     config.Host,
		Port:     uint16(config.Port),
		User:     config.User,
		Database: config.Database,
		Password: config.Password,
	}
	if logger != nil {
		connConfig.Logger = zapadapter.NewLogger(logger)
		connConfig.LogLevel = pgx.LogLevelWarn
	}
	db, err := pgx.Connect(connConfig)
	if err != nil {
		return nil, fmt.Errorf("couldn't open database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("couldn't ping database: %w", err)
	}
	return db, nil
}

// Creator creates a table out of its data source configuration. It connects to the database to describe the table.
func Creator(ctx context.Context, dbConfig map[string]interface{}) (*Table, error) {
	cfg, table, options, err := readConfig(dbConfig)
	if err != nil {
		return nil, execution.NewConfigurationError(err)
	}

	db, err := connect(ctx, cfg, nil)
	if err != nil {
		return nil, execution.NewSourceError(err)
	}
	defer db.Close()

	schema, err := describeTable(ctx, db, table)
	if err != nil {
		return nil, err
	}
	return NewTable(cfg, table, schema, options)
}

func readConfig(dbConfig map[string]interface{}) (*Config, string, Options, error) {
	var cfg Config
	var err error
	if cfg.Host, err = config.GetString(dbConfig, "host", config.WithDefault("localhost")); err != nil {
		return nil, "", Options{}, errors.Wrap(err, "couldn't get host")
	}
	if cfg.Port, err = config.GetInt(dbConfig, "port", config.WithDefault(5432)); err != nil {
		return nil, "", Options{}, errors.Wrap(err, "couldn't get port")
	}
	if cfg.User, err = config.GetString(dbConfig, "user"); err != nil {
		return nil, "", Options{}, errors.Wrap(err, "couldn't get user")
	}
	if cfg.Password, err = config.GetString(dbConfig, "password", config.WithDefault("")); err != nil {
		return nil, "", Options{}, errors.Wrap(err, "couldn't get password")
	}
	if cfg.Database, err = config.GetString(dbConfig, "database"); err != nil {
		return nil, "", Options{}, errors.Wrap(err, "couldn't get database")
	}
	table, err := config.GetString(dbConfig, "table")
	if err != nil {
		return nil, "", Options{}, errors.Wrap(err, "couldn't get table")
	}
	var options Options
	if options.PartitionColumn, err = config.GetString(dbConfig, "partitionColumn", config.WithDefault("")); err != nil {
		return nil, "", Options{}, errors.Wrap(err, "couldn't get partitionColumn")
	}
	if options.Splits, err = config.GetInt(dbConfig, "splits", config.WithDefault(1)); err != nil {
		return nil, "", Options{}, errors.Wrap(err, "couldn't get splits")
	}
	return &cfg, table, options, nil
}

func describeTable(ctx context.Context, db *pgx.Conn, table string) (*arrow.Schema, error) {
	rows, err := db.QueryEx(ctx, "SELECT column_name, data_type FROM information_schema.columns WHERE table_name = $1 ORDER BY ordinal_position", nil, table)
	if err != nil {
		return nil, execution.NewSourceError(fmt.Errorf("couldn't describe table: %w", err))
	}
	defer rows.Close()

	var fields []arrow.Field
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, execution.NewSourceError(fmt.Errorf("couldn't scan table description: %w", err))
		}
		arrowType, ok := columnType(dataType)
		if !ok {
			return nil, execution.NewConfigurationError(fmt.Errorf("column %s has unsupported type %s", name, dataType))
		}
		fields = append(fields, arrow.Field{Name: name, Type: arrowType, Nullable: true})
	}
	if err := rows.Err(); err != nil {
		return nil, execution.NewSourceError(fmt.Errorf("couldn't describe table: %w", err))
	}
	if len(fields) == 0 {
		return nil, execution.NewConfigurationError(fmt.Errorf("table %s not found", table))
	}
	return arrow.NewSchema(fields, nil), nil
}

func columnType(dataType string) (arrow.DataType, bool) {
	switch dataType {
	case "bigint", "integer", "smallint":
		return arrow.PrimitiveTypes.Int64, true
	case "real", "double precision", "numeric":
		return arrow.PrimitiveTypes.Float64, true
	case "text", "character", "character varying":
		return arrow.BinaryTypes.String, true
	case "boolean":
		return arrow.FixedWidthTypes.Boolean, true
	}
	return nil, false
}
