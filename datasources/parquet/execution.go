package parquet

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/segmentio/parquet-go"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
)

type scan struct {
	path    string
	schema  *arrow.Schema
	columns []int
	rows    int64
	splits  int
}

func (s *scan) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	if partition < 0 || partition >= s.splits {
		return execution.NewConfigurationError(fmt.Errorf("partition %d out of range, table has %d splits", partition, s.splits))
	}
	start, end := rowRange(s.rows, partition, s.splits)
	if start == end {
		return nil
	}

	f, pf, err := openFile(s.path)
	if err != nil {
		return execution.NewSourceError(err)
	}
	defer f.Close()
	pr := parquet.NewReader(pf)

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

	var row parquet.Row
	values := make([]parquet.Value, len(pf.Schema().Fields()))
	for index := int64(0); index < end; index++ {
		row, err = pr.ReadRow(row[:0])
		if err == io.EOF {
			break
		} else if err != nil {
			return execution.NewSourceError(fmt.Errorf("couldn't read row: %w", err))
		}
		if index < start {
			continue
		}

		for _, value := range row {
			values[value.Column()] = value
		}
		for i, column := range s.columns {
			if err := helpers.AppendValue(recordBuilder.Field(i), toValue(values[column])); err != nil {
				return execution.NewSourceError(fmt.Errorf("column %s: %w", s.schema.Field(i).Name, err))
			}
		}
		count++
		if count == batchSize {
			if err := ctx.Context.Err(); err != nil {
				return err
			}
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if count > 0 {
		return flush()
	}
	return nil
}

func toValue(value parquet.Value) helpers.Value {
	if value.IsNull() {
		return helpers.NewNull()
	}
	switch value.Kind() {
	case parquet.Boolean:
		return helpers.NewBoolean(value.Boolean())
	case parquet.Int32:
		return helpers.NewInt(int64(value.Int32()))
	case parquet.Int64:
		return helpers.NewInt(value.Int64())
	case parquet.Float:
		return helpers.NewFloat(float64(value.Float()))
	case parquet.Double:
		return helpers.NewFloat(value.Double())
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return helpers.NewString(string(value.ByteArray()))
	}
	return helpers.NewNull()
}
