package nodes

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/tidwall/btree"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
)

// SortPreservingMerge merges source partitions, each sorted by Fields, into a single sorted partition.
// Equal rows are taken from lower partition indices first.
// With a Fetch it stops after that many rows and cancels its inputs.
type SortPreservingMerge struct {
	Source *execution.NodeWithMeta
	Fields []helpers.SortField
	Fetch  int
}

type mergeCursor struct {
	partition int
	record    execution.Record
	rowIndex  int
	key       []helpers.Value

	extractKey func(rowIndex int) []helpers.Value
	rewrite    func(rowIndex int)
}

func (m *SortPreservingMerge) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	if partition != 0 {
		return execution.WrapOperatorError("SortPreservingMerge", partition, execution.NewConfigurationError(fmt.Errorf("partition out of range, sort preserving merge has a single output partition")))
	}
	if err := m.run(ctx, produce); err != nil {
		return execution.WrapOperatorError("SortPreservingMerge", partition, err)
	}
	return nil
}

func (m *SortPreservingMerge) run(ctx execution.Context, produce execution.ProduceFunc) error {
	localCtx, cancel := context.WithCancel(ctx.Context)
	defer cancel()

	inputCount := m.Source.Partitioning.PartitionCount()
	inputs := make([]chan execution.Record, inputCount)
	for i := range inputs {
		inputs[i] = make(chan execution.Record, ctx.Options().QueueCapacity)
	}
	for inputPartition := 0; inputPartition < inputCount; inputPartition++ {
		inputPartition := inputPartition
		ctx.Run.Go(func(runCtx execution.Context) error {
			err := m.Source.Node.Run(runCtx.WithContext(localCtx), inputPartition, func(produceCtx execution.ProduceContext, record execution.Record) error {
				if record.NumRows() == 0 {
					return nil
				}
				return execution.Send(localCtx, inputs[inputPartition], record)
			})
			if err != nil {
				if execution.StoppedLocally(err, localCtx, runCtx.Context) {
					return nil
				}
				// The queue stays open, so that the merge doesn't take the failure for the end of the partition.
				return execution.WrapOperatorError("SortPreservingMerge", inputPartition, err)
			}
			close(inputs[inputPartition])
			return nil
		})
	}

	recordBuilder := array.NewRecordBuilder(ctx.Allocator(), m.Source.Schema)
	defer recordBuilder.Release()

	// advance moves the cursor to its next row, receiving the next record of its partition if needed.
	// It returns false once the partition is exhausted.
	advance := func(cursor *mergeCursor) (bool, error) {
		cursor.rowIndex++
		for cursor.record.Record == nil || cursor.rowIndex >= int(cursor.record.NumRows()) {
			record, ok, err := execution.Receive(localCtx, inputs[cursor.partition])
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
			cursor.record = record
			cursor.rowIndex = 0
			cursor.extractKey = helpers.MakeSortKeyExtractor(record.Record, m.Fields)
			cursor.rewrite = helpers.MakeRecordRewriter(recordBuilder, record.Record, 0)
		}
		cursor.key = cursor.extractKey(cursor.rowIndex)
		return true, nil
	}

	cursors := btree.NewGenericOptions(func(a, b *mergeCursor) bool {
		if comp := helpers.CompareKeys(a.key, b.key, m.Fields); comp != 0 {
			return comp < 0
		}
		return a.partition < b.partition
	}, btree.Options{NoLocks: true})
	for i := 0; i < inputCount; i++ {
		cursor := &mergeCursor{partition: i, rowIndex: -1}
		ok, err := advance(cursor)
		if err != nil {
			return err
		}
		if ok {
			cursors.Set(cursor)
		}
	}

	batchSize := ctx.Options().BatchSize
	produced := 0
	outRows := 0
	flush := func() error {
		if outRows == 0 {
			return nil
		}
		outRows = 0
		if err := produce(execution.ProduceContext{Context: ctx}, execution.Record{Record: recordBuilder.NewRecord()}); err != nil {
			return fmt.Errorf("couldn't produce record: %w", err)
		}
		return nil
	}

	for cursors.Len() > 0 && (m.Fetch == NoFetch || produced < m.Fetch) {
		cursor, _ := cursors.PopMin()
		cursor.rewrite(cursor.rowIndex)
		outRows++
		produced++
		if outRows >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}

		ok, err := advance(cursor)
		if err != nil {
			return err
		}
		if ok {
			cursors.Set(cursor)
		}
	}

	// Stops the inputs if the fetch limit ended the merge early.
	cancel()
	return flush()
}
