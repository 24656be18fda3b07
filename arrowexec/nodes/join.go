package nodes

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
	"github.com/cube2222/octopipe/arrowexec/nodes/hashtable"
)

type JoinType int

const (
	// JoinTypeInner outputs the build side columns followed by the probe side columns, for each matching pair.
	JoinTypeInner JoinType = iota
	// JoinTypeLeftSemi outputs the probe side rows with at least one match, once.
	JoinTypeLeftSemi
	// JoinTypeLeftAnti outputs the probe side rows with no match. A NULL key never matches.
	JoinTypeLeftAnti
)

func (t JoinType) String() string {
	switch t {
	case JoinTypeInner:
		return "Inner"
	case JoinTypeLeftSemi:
		return "LeftSemi"
	case JoinTypeLeftAnti:
		return "LeftAnti"
	}
	return fmt.Sprintf("JoinType(%d)", int(t))
}

// HashJoin joins partition i of the build side with partition i of the probe side.
// Both sides must be co-located on their keys.
//
// The build partition is consumed fully first, then the probe partition is streamed through the table.
// Probe row order is preserved.
type HashJoin struct {
	Build, Probe         *execution.NodeWithMeta
	BuildKeys, ProbeKeys []execution.Expression
	Type                 JoinType
	NullEqualsNull       bool

	schema *arrow.Schema
}

func NewHashJoin(build, probe *execution.NodeWithMeta, buildKeys, probeKeys []execution.Expression, joinType JoinType, nullEqualsNull bool) *HashJoin {
	return &HashJoin{
		Build:          build,
		Probe:          probe,
		BuildKeys:      buildKeys,
		ProbeKeys:      probeKeys,
		Type:           joinType,
		NullEqualsNull: nullEqualsNull,
		schema:         HashJoinSchema(build.Schema, probe.Schema, joinType),
	}
}

func HashJoinSchema(build, probe *arrow.Schema, joinType JoinType) *arrow.Schema {
	if joinType != JoinTypeInner {
		return probe
	}
	fields := append([]arrow.Field{}, build.Fields()...)
	fields = append(fields, probe.Fields()...)
	return arrow.NewSchema(fields, nil)
}

func (j *HashJoin) OutputSchema() *arrow.Schema {
	return j.schema
}

func (j *HashJoin) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	table, err := j.build(ctx, partition)
	if err != nil {
		return execution.WrapOperatorError("HashJoin", partition, err)
	}
	if table.Len() == 0 && j.Type != JoinTypeLeftAnti {
		// Nothing can match, but the probe side still has to be drained for the partition to finish cleanly.
		if err := j.Probe.Node.Run(ctx, partition, func(produceCtx execution.ProduceContext, record execution.Record) error {
			return nil
		}); err != nil {
			return execution.WrapOperatorError("HashJoin", partition, fmt.Errorf("couldn't run probe side: %w", err))
		}
		return nil
	}

	var tableValues arrow.Record
	if j.Type == JoinTypeInner {
		tableValues = table.Values()
	}

	if err := j.Probe.Node.Run(ctx, partition, func(produceCtx execution.ProduceContext, record execution.Record) error {
		if record.NumRows() == 0 {
			return nil
		}
		keys, err := evaluateAll(produceCtx.Context, j.ProbeKeys, record)
		if err != nil {
			return execution.WrapOperatorError("HashJoin", partition, err)
		}
		prober, err := table.MakeProber(keys)
		if err != nil {
			return execution.WrapOperatorError("HashJoin", partition, err)
		}

		switch j.Type {
		case JoinTypeInner:
			return j.probeInner(produceCtx, record, tableValues, prober, produce)
		case JoinTypeLeftSemi, JoinTypeLeftAnti:
			return j.probeFilter(produceCtx, record, prober, produce)
		default:
			panic(fmt.Sprintf("unexhaustive join type match: %d", j.Type))
		}
	}); err != nil {
		return execution.WrapOperatorError("HashJoin", partition, fmt.Errorf("couldn't run probe side: %w", err))
	}
	return nil
}

func (j *HashJoin) build(ctx execution.Context, partition int) (*hashtable.JoinTable, error) {
	maxBuildRows := int64(ctx.Options().MaxBuildRows)

	var records []execution.Record
	var keyColumns [][]arrow.Array
	var rows int64
	if err := j.Build.Node.Run(ctx, partition, func(produceCtx execution.ProduceContext, record execution.Record) error {
		if record.NumRows() == 0 {
			return nil
		}
		rows += record.NumRows()
		if maxBuildRows > 0 && rows > maxBuildRows {
			return execution.NewResourceError(fmt.Errorf("hash join build side exceeds the limit of %d rows", maxBuildRows))
		}
		keys, err := evaluateAll(produceCtx.Context, j.BuildKeys, record)
		if err != nil {
			return err
		}
		records = append(records, record)
		keyColumns = append(keyColumns, keys)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("couldn't run build side: %w", err)
	}

	keyTypes := make([]arrow.DataType, len(j.BuildKeys))
	for i := range keyTypes {
		if len(keyColumns) > 0 {
			keyTypes[i] = keyColumns[0][i].DataType()
		} else {
			// With no rows the key types are irrelevant.
			keyTypes[i] = arrow.Null
		}
	}

	table, err := hashtable.BuildJoinTable(ctx.Allocator(), j.Build.Schema, records, keyColumns, keyTypes, j.NullEqualsNull)
	if err != nil {
		return nil, fmt.Errorf("couldn't build join table: %w", err)
	}
	return table, nil
}

func (j *HashJoin) probeInner(produceCtx execution.ProduceContext, record execution.Record, tableValues arrow.Record, prober func(int, func(int) bool), produce execution.ProduceFunc) error {
	batchSize := produceCtx.Options().BatchSize
	recordBuilder := array.NewRecordBuilder(produceCtx.Allocator(), j.schema)
	defer recordBuilder.Release()

	rewriteTableRow := helpers.MakeRecordRewriter(recordBuilder, tableValues, 0)
	rewriteProbeRow := helpers.MakeRecordRewriter(recordBuilder, record.Record, int(tableValues.NumCols()))

	outRows := 0
	var produceErr error
	numRows := int(record.NumRows())
	for rowIndex := 0; rowIndex < numRows; rowIndex++ {
		prober(rowIndex, func(tableRowIndex int) bool {
			rewriteTableRow(tableRowIndex)
			rewriteProbeRow(rowIndex)
			outRows++
			if outRows >= batchSize {
				outRows = 0
				if err := produce(produceCtx, execution.Record{Record: recordBuilder.NewRecord()}); err != nil {
					produceErr = fmt.Errorf("couldn't produce record: %w", err)
					return false
				}
			}
			return true
		})
		if produceErr != nil {
			return produceErr
		}
	}
	if outRows > 0 {
		if err := produce(produceCtx, execution.Record{Record: recordBuilder.NewRecord()}); err != nil {
			return fmt.Errorf("couldn't produce record: %w", err)
		}
	}
	return nil
}

func (j *HashJoin) probeFilter(produceCtx execution.ProduceContext, record execution.Record, prober func(int, func(int) bool), produce execution.ProduceFunc) error {
	keepMatched := j.Type == JoinTypeLeftSemi

	numRows := int(record.NumRows())
	selected := make([]int, 0, numRows)
	for rowIndex := 0; rowIndex < numRows; rowIndex++ {
		matched := false
		prober(rowIndex, func(tableRowIndex int) bool {
			matched = true
			return false
		})
		if matched == keepMatched {
			selected = append(selected, rowIndex)
		}
	}

	if len(selected) == 0 {
		return nil
	}
	out := record
	if len(selected) != numRows {
		out = execution.Record{Record: helpers.TakeRows(produceCtx.Allocator(), record.Record, selected)}
	}
	if err := produce(produceCtx, out); err != nil {
		return fmt.Errorf("couldn't produce record: %w", err)
	}
	return nil
}

func evaluateAll(ctx execution.Context, exprs []execution.Expression, record execution.Record) ([]arrow.Array, error) {
	out := make([]arrow.Array, len(exprs))
	for i, expr := range exprs {
		arr, err := expr.Evaluate(ctx, record)
		if err != nil {
			return nil, fmt.Errorf("couldn't evaluate expression %s: %w", expr, err)
		}
		out[i] = arr
	}
	return out, nil
}
