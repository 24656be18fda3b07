package nodes

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow/array"
	"golang.org/x/sync/errgroup"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
)

// Filter has a custom routine for filtering records, it re-batches the filtered records so that they aren't too far off the ideal batch size.
// It actually ends up being *much* (~3x) faster than the arrow selection kernel if only few
// records are being filtered out.
//
// It's interesting, cause the original idea for the re-batching was
// that downstream operators should be faster if batches aren't too small.
// However, with most of the records filtered out, the workload for downstream
// operators is so small that it doesn't really matter.
type Filter struct {
	source    *execution.NodeWithMeta
	predicate execution.Expression
}

func NewFilter(source *execution.NodeWithMeta, predicate execution.Expression) *Filter {
	return &Filter{
		source:    source,
		predicate: predicate,
	}
}

func (f *Filter) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	recordBuilder := array.NewRecordBuilder(ctx.Allocator(), f.source.Schema)
	defer recordBuilder.Release()
	batchSize := ctx.Options().BatchSize
	rows := 0

	if err := f.source.Node.Run(ctx, partition, func(produceCtx execution.ProduceContext, record execution.Record) error {
		selection, err := f.predicate.Evaluate(produceCtx.Context, record)
		if err != nil {
			return execution.WrapOperatorError("Filter", partition, fmt.Errorf("couldn't evaluate filter predicate: %w", err))
		}
		typedSelection, ok := selection.(*array.Boolean)
		if !ok {
			return execution.WrapOperatorError("Filter", partition, execution.NewEvaluationError(fmt.Errorf("filter predicate must be boolean, got %s", selection.DataType())))
		}

		var g errgroup.Group
		columns := record.Columns()
		for i, column := range columns {
			rewriter := helpers.MakeColumnRewriter(recordBuilder.Field(i), column)
			g.Go(func() error {
				Rewrite(typedSelection, rewriter)
				return nil
			})
		}
		g.Wait()
		rows += countSelected(typedSelection)

		if rows > batchSize/2 {
			outRecord := recordBuilder.NewRecord()
			rows = 0
			if err := produce(produceCtx, execution.Record{Record: outRecord}); err != nil {
				return fmt.Errorf("couldn't produce record: %w", err)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("couldn't run source node: %w", err)
	}

	if rows > 0 {
		outRecord := recordBuilder.NewRecord()
		if err := produce(execution.ProduceContext{Context: ctx}, execution.Record{Record: outRecord}); err != nil {
			return fmt.Errorf("couldn't produce record: %w", err)
		}
	}

	return nil
}

// Rewrite calls rewriteFunc for each selected row. NULL counts as not selected.
func Rewrite(selection *array.Boolean, rewriteFunc func(rowIndex int)) {
	for i := 0; i < selection.Len(); i++ {
		if selection.IsValid(i) && selection.Value(i) {
			rewriteFunc(i)
		}
	}
}

func countSelected(selection *array.Boolean) int {
	count := 0
	for i := 0; i < selection.Len(); i++ {
		if selection.IsValid(i) && selection.Value(i) {
			count++
		}
	}
	return count
}
