package lines

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v13/arrow/array"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/datasources/splits"
)

type scan struct {
	path   string
	splits int
}

func (s *scan) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	if partition < 0 || partition >= s.splits {
		return execution.NewConfigurationError(fmt.Errorf("partition %d out of range, table has %d splits", partition, s.splits))
	}

	f, err := os.Open(s.path)
	if err != nil {
		return execution.NewSourceError(fmt.Errorf("couldn't open file: %w", err))
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return execution.NewSourceError(fmt.Errorf("couldn't stat file: %w", err))
	}
	r, err := splits.NewReader(f, info.Size(), partition, s.splits)
	if err != nil {
		return execution.NewSourceError(fmt.Errorf("couldn't seek to split %d: %w", partition, err))
	}

	batchSize := ctx.Options().BatchSize
	recordBuilder := array.NewRecordBuilder(ctx.Allocator(), schema)
	defer recordBuilder.Release()
	recordBuilder.Reserve(batchSize)
	text := recordBuilder.Field(0).(*array.StringBuilder)

	flush := func() error {
		record := recordBuilder.NewRecord()
		if err := produce(execution.ProduceContext{Context: ctx}, execution.Record{Record: record}); err != nil {
			return fmt.Errorf("couldn't produce record: %w", err)
		}
		recordBuilder.Reserve(batchSize)
		return nil
	}

	count := 0
	for {
		line, err := r.ReadLine()
		if err == io.EOF {
			break
		} else if err != nil {
			return execution.NewSourceError(fmt.Errorf("couldn't read line: %w", err))
		}
		text.Append(string(bytes.TrimRight(line, "\r\n")))
		count++
		if count == batchSize {
			if err := ctx.Context.Err(); err != nil {
				return err
			}
			if err := flush(); err != nil {
				return err
			}
			count = 0
		}
	}
	if count > 0 {
		return flush()
	}
	return nil
}
