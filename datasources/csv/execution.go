package csv

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/csv"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/datasources/splits"
)

type scan struct {
	table           *Table
	projection      []int
	projectedSchema *arrow.Schema
}

func (s *scan) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	options := s.table.options
	if partition < 0 || partition >= options.Splits {
		return execution.NewConfigurationError(fmt.Errorf("partition %d out of range, table has %d splits", partition, options.Splits))
	}

	f, err := os.Open(s.table.path)
	if err != nil {
		return execution.NewSourceError(fmt.Errorf("couldn't open file: %w", err))
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return execution.NewSourceError(fmt.Errorf("couldn't stat file: %w", err))
	}

	r, err := splits.NewReader(f, info.Size(), partition, options.Splits)
	if err != nil {
		return execution.NewSourceError(fmt.Errorf("couldn't seek to split %d: %w", partition, err))
	}
	if options.TrailingDelimiter {
		r.TrailingDelimiter = byte(options.Delimiter)
	}

	readerOptions := []csv.Option{
		csv.WithComma(options.Delimiter),
		csv.WithHeader(options.Header && partition == 0),
		csv.WithChunk(ctx.Options().BatchSize),
		csv.WithAllocator(ctx.Allocator()),
	}
	if len(options.NullValues) > 0 {
		readerOptions = append(readerOptions, csv.WithNullReader(true, options.NullValues...))
	}
	reader := csv.NewReader(r, s.table.schema, readerOptions...)
	defer reader.Release()

	for reader.Next() {
		if err := ctx.Context.Err(); err != nil {
			return err
		}
		record := reader.Record()
		if s.projection != nil {
			record = execution.ProjectRecord(s.projectedSchema, record, s.projection)
		} else {
			record.Retain()
		}
		if err := produce(execution.ProduceContext{Context: ctx}, execution.Record{Record: record}); err != nil {
			return fmt.Errorf("couldn't produce record: %w", err)
		}
	}
	if err := reader.Err(); err != nil {
		return execution.NewSourceError(fmt.Errorf("couldn't read %s split %d: %w", s.table.path, partition, err))
	}
	return nil
}
