package nodes

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"

	"github.com/cube2222/octopipe/arrowexec/execution"
)

// Coalesce merges small records into records of at least TargetBatchSize rows, keeping the row order.
// Empty records are dropped. The remainder is flushed at the end of the input.
type Coalesce struct {
	Source *execution.NodeWithMeta
	// TargetBatchSize defaults to the execution batch size if it's 0.
	TargetBatchSize int
}

func (c *Coalesce) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	target := c.TargetBatchSize
	if target <= 0 {
		target = ctx.Options().BatchSize
	}

	var pending []arrow.Record
	pendingRows := int64(0)
	flush := func(produceCtx execution.ProduceContext) error {
		if len(pending) == 0 {
			return nil
		}
		out, err := concatenateRecords(ctx, c.Source.Schema, pending, pendingRows)
		if err != nil {
			return execution.WrapOperatorError("Coalesce", partition, err)
		}
		pending = nil
		pendingRows = 0
		if err := produce(produceCtx, execution.Record{Record: out}); err != nil {
			return fmt.Errorf("couldn't produce record: %w", err)
		}
		return nil
	}

	if err := c.Source.Node.Run(ctx, partition, func(produceCtx execution.ProduceContext, record execution.Record) error {
		if record.NumRows() == 0 {
			return nil
		}
		if len(pending) == 0 && record.NumRows() >= int64(target) {
			// Already big enough, no need to copy.
			return produce(produceCtx, record)
		}
		pending = append(pending, record.Record)
		pendingRows += record.NumRows()
		if pendingRows >= int64(target) {
			return flush(produceCtx)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("couldn't run source node: %w", err)
	}

	return flush(execution.ProduceContext{Context: ctx})
}

func concatenateRecords(ctx execution.Context, schema *arrow.Schema, records []arrow.Record, rows int64) (arrow.Record, error) {
	if len(records) == 1 {
		return records[0], nil
	}
	columns := make([]arrow.Array, len(schema.Fields()))
	for i := range columns {
		parts := make([]arrow.Array, len(records))
		for j := range records {
			parts[j] = records[j].Column(i)
		}
		column, err := array.Concatenate(parts, ctx.Allocator())
		if err != nil {
			return nil, execution.NewResourceError(fmt.Errorf("couldn't concatenate column %s: %w", schema.Field(i).Name, err))
		}
		columns[i] = column
	}
	return array.NewRecord(schema, columns, rows), nil
}
