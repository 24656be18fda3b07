package postgres

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/jackc/pgx/pgtype"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
)

type scan struct {
	config *Config
	schema *arrow.Schema
	query  func(schema *arrow.Schema, split int) string
	splits int
}

func (s *scan) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	if partition < 0 || partition >= s.splits {
		return execution.NewConfigurationError(fmt.Errorf("partition %d out of range, table has %d splits", partition, s.splits))
	}

	db, err := connect(ctx.Context, s.config, ctx.Logger())
	if err != nil {
		return execution.NewSourceError(err)
	}
	defer db.Close()

	rows, err := db.QueryEx(ctx.Context, s.query(s.schema, partition), nil)
	if err != nil {
		return execution.NewSourceError(fmt.Errorf("couldn't execute database query: %w", err))
	}
	defer rows.Close()

	batchSize := ctx.Options().BatchSize
	recordBuilder := array.NewRecordBuilder(ctx.Allocator(), s.schema)
	defer recordBuilder.Release()

	count := 0
	flush := func() error {
		record := recordBuilder.NewRecord()
		if err := produce(execution.ProduceContext{Context: ctx}, execution.Record{Record: record}); err != nil {
			return fmt.Errorf("couldn't produce record: %w", err)
		}
		count = 0
		return nil
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return execution.NewSourceError(fmt.Errorf("couldn't get row values: %w", err))
		}
		for i, value := range values {
			converted, err := toValue(value)
			if err != nil {
				return execution.NewSourceError(fmt.Errorf("column %s: %w", s.schema.Field(i).Name, err))
			}
			if err := helpers.AppendValue(recordBuilder.Field(i), converted); err != nil {
				return execution.NewSourceError(fmt.Errorf("column %s: %w", s.schema.Field(i).Name, err))
			}
		}
		count++
		if count == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return execution.NewSourceError(fmt.Errorf("couldn't read rows: %w", err))
	}
	if count > 0 {
		return flush()
	}
	return nil
}

func toValue(value interface{}) (helpers.Value, error) {
	switch value := value.(type) {
	case nil:
		return helpers.NewNull(), nil
	case int16:
		return helpers.NewInt(int64(value)), nil
	case int32:
		return helpers.NewInt(int64(value)), nil
	case int64:
		return helpers.NewInt(value), nil
	case float32:
		return helpers.NewFloat(float64(value)), nil
	case float64:
		return helpers.NewFloat(value), nil
	case string:
		return helpers.NewString(value), nil
	case bool:
		return helpers.NewBoolean(value), nil
	case *pgtype.Numeric:
		return numericValue(value)
	case pgtype.Numeric:
		return numericValue(&value)
	}
	return helpers.Value{}, fmt.Errorf("unsupported postgres value type %T", value)
}

func numericValue(value *pgtype.Numeric) (helpers.Value, error) {
	if value.Status == pgtype.Null {
		return helpers.NewNull(), nil
	}
	var out float64
	if err := value.AssignTo(&out); err != nil {
		return helpers.Value{}, fmt.Errorf("couldn't decode numeric: %w", err)
	}
	return helpers.NewFloat(out), nil
}
