package nodes

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/google/btree"
	tidwall "github.com/tidwall/btree"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
)

// NoFetch means there's no row limit.
const NoFetch = -1

// Retained rows are copied into a single record once they reference more records than this.
const maxRetainedRecords = 64

// Sort sorts each partition on its own.
// With a Fetch it's a top-K sort, keeping only the best Fetch rows seen so far.
// Rows with equal keys keep their input order.
type Sort struct {
	Source *execution.NodeWithMeta
	Fields []helpers.SortField
	Fetch  int
}

type sortItem struct {
	key []helpers.Value
	// seq is the position of the row in the partition, it breaks ties.
	seq         uint64
	recordIndex int
	rowIndex    int

	fields []helpers.SortField
}

func (item *sortItem) Less(than btree.Item) bool {
	thanTyped, ok := than.(*sortItem)
	if !ok {
		panic(fmt.Sprintf("invalid sort item comparison: %T", than))
	}
	return sortItemLess(item, thanTyped)
}

func sortItemLess(a, b *sortItem) bool {
	if comp := helpers.CompareKeys(a.key, b.key, a.fields); comp != 0 {
		return comp < 0
	}
	return a.seq < b.seq
}

// sortedRows is the set of rows retained by a single sort partition.
type sortedRows interface {
	add(item *sortItem)
	len() int
	ascend(f func(item *sortItem) bool)
}

type unboundedRows struct {
	tree *btree.BTree
}

func (r *unboundedRows) add(item *sortItem) {
	r.tree.ReplaceOrInsert(item)
}

func (r *unboundedRows) len() int {
	return r.tree.Len()
}

func (r *unboundedRows) ascend(f func(item *sortItem) bool) {
	r.tree.Ascend(func(item btree.Item) bool {
		return f(item.(*sortItem))
	})
}

type topKRows struct {
	k    int
	tree *tidwall.Generic[*sortItem]
}

func (r *topKRows) add(item *sortItem) {
	if r.k == 0 {
		return
	}
	if r.tree.Len() < r.k {
		r.tree.Set(item)
		return
	}
	worst, _ := r.tree.Max()
	if sortItemLess(item, worst) {
		r.tree.Delete(worst)
		r.tree.Set(item)
	}
}

func (r *topKRows) len() int {
	return r.tree.Len()
}

func (r *topKRows) ascend(f func(item *sortItem) bool) {
	r.tree.Scan(f)
}

func (s *Sort) newSortedRows() sortedRows {
	if s.Fetch == NoFetch {
		return &unboundedRows{tree: btree.New(32)}
	}
	return &topKRows{
		k:    s.Fetch,
		tree: tidwall.NewGenericOptions(sortItemLess, tidwall.Options{NoLocks: true}),
	}
}

func (s *Sort) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	rows := s.newSortedRows()
	var records []arrow.Record
	var seq uint64

	if err := s.Source.Node.Run(ctx, partition, func(produceCtx execution.ProduceContext, record execution.Record) error {
		if record.NumRows() == 0 {
			return nil
		}
		records = append(records, record.Record)
		recordIndex := len(records) - 1
		extractKey := helpers.MakeSortKeyExtractor(record.Record, s.Fields)
		numRows := int(record.NumRows())
		for rowIndex := 0; rowIndex < numRows; rowIndex++ {
			rows.add(&sortItem{
				key:         extractKey(rowIndex),
				seq:         seq,
				recordIndex: recordIndex,
				rowIndex:    rowIndex,
				fields:      s.Fields,
			})
			seq++
		}
		if s.Fetch != NoFetch && len(records) > maxRetainedRecords {
			records = compactRetained(produceCtx.Context, s.Source.Schema, records, rows)
		}
		return nil
	}); err != nil {
		return execution.WrapOperatorError("Sort", partition, fmt.Errorf("couldn't run source node: %w", err))
	}

	if err := produceSortedRows(ctx, s.Source.Schema, records, rows, produce); err != nil {
		return execution.WrapOperatorError("Sort", partition, err)
	}
	return nil
}

// compactRetained copies the retained rows into a single record, so that records without retained rows can be freed.
func compactRetained(ctx execution.Context, schema *arrow.Schema, records []arrow.Record, rows sortedRows) []arrow.Record {
	recordBuilder := array.NewRecordBuilder(ctx.Allocator(), schema)
	defer recordBuilder.Release()
	recordBuilder.Reserve(rows.len())

	rewriters := make([]func(rowIndex int), len(records))
	newRowIndex := 0
	rows.ascend(func(item *sortItem) bool {
		if rewriters[item.recordIndex] == nil {
			rewriters[item.recordIndex] = helpers.MakeRecordRewriter(recordBuilder, records[item.recordIndex], 0)
		}
		rewriters[item.recordIndex](item.rowIndex)
		item.recordIndex = 0
		item.rowIndex = newRowIndex
		newRowIndex++
		return true
	})
	return []arrow.Record{recordBuilder.NewRecord()}
}

func produceSortedRows(ctx execution.Context, schema *arrow.Schema, records []arrow.Record, rows sortedRows, produce execution.ProduceFunc) error {
	batchSize := ctx.Options().BatchSize
	recordBuilder := array.NewRecordBuilder(ctx.Allocator(), schema)
	defer recordBuilder.Release()

	rewriters := make([]func(rowIndex int), len(records))
	outRows := 0
	var produceErr error
	rows.ascend(func(item *sortItem) bool {
		if rewriters[item.recordIndex] == nil {
			rewriters[item.recordIndex] = helpers.MakeRecordRewriter(recordBuilder, records[item.recordIndex], 0)
		}
		rewriters[item.recordIndex](item.rowIndex)
		outRows++
		if outRows >= batchSize {
			outRows = 0
			if err := produce(execution.ProduceContext{Context: ctx}, execution.Record{Record: recordBuilder.NewRecord()}); err != nil {
				produceErr = fmt.Errorf("couldn't produce record: %w", err)
				return false
			}
		}
		return true
	})
	if produceErr != nil {
		return produceErr
	}
	if outRows > 0 {
		if err := produce(execution.ProduceContext{Context: ctx}, execution.Record{Record: recordBuilder.NewRecord()}); err != nil {
			return fmt.Errorf("couldn't produce record: %w", err)
		}
	}
	return nil
}
