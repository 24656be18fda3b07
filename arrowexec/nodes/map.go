package nodes

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"

	"github.com/cube2222/octopipe/arrowexec/execution"
)

// Map is the projection operator. Each output column is an expression over the input record,
// renamed and synthetic columns are just expressions with a new name in OutSchema.
type Map struct {
	OutSchema *arrow.Schema
	Source    *execution.NodeWithMeta

	Exprs []execution.Expression
}

func (m *Map) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	return m.Source.Node.Run(ctx, partition, func(produceCtx execution.ProduceContext, record execution.Record) error {
		outCols := make([]arrow.Array, len(m.Exprs))
		for i := range outCols { // TODO: Parallelize.
			arr, err := m.Exprs[i].Evaluate(produceCtx.Context, record)
			if err != nil {
				return execution.WrapOperatorError("Projection", partition, fmt.Errorf("couldn't evaluate expression %s: %w", m.Exprs[i], err))
			}
			outCols[i] = arr
		}

		if err := produce(produceCtx, execution.Record{Record: array.NewRecord(m.OutSchema, outCols, record.NumRows())}); err != nil {
			return fmt.Errorf("couldn't produce record: %w", err)
		}
		return nil
	})
}
