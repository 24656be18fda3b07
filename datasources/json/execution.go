package json

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/valyala/fastjson"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/datasources/splits"
)

type scan struct {
	path   string
	schema *arrow.Schema
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
	recordBuilder := array.NewRecordBuilder(ctx.Allocator(), s.schema)
	defer recordBuilder.Release()
	recordBuilder.Reserve(batchSize)

	readRecord, err := recordReader(s.schema, recordBuilder)
	if err != nil {
		return execution.NewConfigurationError(fmt.Errorf("couldn't construct record reader function: %w", err))
	}

	flush := func() error {
		record := recordBuilder.NewRecord()
		if err := produce(execution.ProduceContext{Context: ctx}, execution.Record{Record: record}); err != nil {
			return fmt.Errorf("couldn't produce record: %w", err)
		}
		recordBuilder.Reserve(batchSize)
		return nil
	}

	var p fastjson.Parser
	count := 0
	for {
		line, err := r.ReadLine()
		if err == io.EOF {
			break
		} else if err != nil {
			return execution.NewSourceError(fmt.Errorf("couldn't read line: %w", err))
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		value, err := p.ParseBytes(line)
		if err != nil {
			return execution.NewSourceError(fmt.Errorf("couldn't parse json: %w", err))
		}
		if err := readRecord(value); err != nil {
			return execution.NewSourceError(fmt.Errorf("couldn't read record: %w", err))
		}
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
		if err := flush(); err != nil {
			return err
		}
	}
	return nil
}
