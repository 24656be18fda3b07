package nodes

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/brentp/intintmap"

	"github.com/cube2222/octopipe/arrowexec/aggregates"
	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
)

type AggregateMode int

const (
	// AggregateModePartial aggregates the rows of a partition into partial states, one row per group seen.
	AggregateModePartial AggregateMode = iota
	// AggregateModeFinalPartitioned merges partial states; its input must be hash partitioned on the group keys.
	AggregateModeFinalPartitioned
	// AggregateModeFinal merges partial states of a single partition input.
	AggregateModeFinal
	// AggregateModeSingle aggregates raw rows of a single partition, or of partitions co-located on the group keys.
	AggregateModeSingle
)

func (m AggregateMode) String() string {
	switch m {
	case AggregateModePartial:
		return "Partial"
	case AggregateModeFinalPartitioned:
		return "FinalPartitioned"
	case AggregateModeFinal:
		return "Final"
	case AggregateModeSingle:
		return "Single"
	}
	return fmt.Sprintf("AggregateMode(%d)", int(m))
}

func (m AggregateMode) Phase() aggregates.Phase {
	switch m {
	case AggregateModeFinalPartitioned, AggregateModeFinal:
		return aggregates.PhaseMerge
	}
	return aggregates.PhaseRaw
}

// IsFinal reports whether the mode produces final values, as opposed to partial states.
// It's the same arrow type either way.
func (m AggregateMode) IsFinal() bool {
	return m != AggregateModePartial
}

type AggregateSpec struct {
	Function aggregates.Function
	// Arg is nil for COUNT(*).
	Arg     execution.Expression
	ArgType arrow.DataType
	// Distinct makes the aggregate see every distinct value of a group only once.
	// Only possible in the Single mode.
	Distinct bool
}

// GroupBy is a hash aggregate. The output has the group keys first, followed by the aggregates.
type GroupBy struct {
	OutSchema *arrow.Schema
	Source    *execution.NodeWithMeta
	Mode      AggregateMode

	KeyExprs   []execution.Expression
	Aggregates []AggregateSpec
}

func (g *GroupBy) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	if err := g.run(ctx, partition, produce); err != nil {
		return execution.WrapOperatorError("Aggregate", partition, err)
	}
	return nil
}

func (g *GroupBy) run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	maxGroups := ctx.Options().MaxGroups

	aggs := make([]aggregates.Aggregate, len(g.Aggregates))
	for i, spec := range g.Aggregates {
		details, err := aggregates.Lookup(spec.Function)
		if err != nil {
			return execution.NewConfigurationError(err)
		}
		agg, err := details.New(g.Mode.Phase(), spec.ArgType)
		if err != nil {
			return execution.NewConfigurationError(fmt.Errorf("couldn't create aggregate %s: %w", spec.Function, err))
		}
		if spec.Distinct {
			if g.Mode != AggregateModeSingle {
				return execution.NewConfigurationError(fmt.Errorf("distinct aggregates are only supported in the Single mode, got %s", g.Mode))
			}
			agg = aggregates.NewDistinct(agg)
		}
		aggs[i] = agg
	}
	keys := make([]Key, len(g.KeyExprs))
	for i := range keys {
		key, err := MakeKey(ctx.Allocator(), g.OutSchema.Field(i).Type)
		if err != nil {
			return execution.NewConfigurationError(err)
		}
		keys[i] = key
	}

	// Entries with colliding hashes are chained, entryIndices points at the most recently added one.
	entryCount := 0
	entryIndices := intintmap.New(1024, 0.6)
	var nextEntryWithHash []int64

	addEntry := func() error {
		if maxGroups > 0 && entryCount >= maxGroups {
			return execution.NewResourceError(fmt.Errorf("aggregate exceeds the limit of %d groups", maxGroups))
		}
		entryCount++
		for _, agg := range aggs {
			agg.Grow(entryCount)
		}
		return nil
	}

	if err := g.Source.Node.Run(ctx, partition, func(produceCtx execution.ProduceContext, record execution.Record) error {
		if record.NumRows() == 0 {
			return nil
		}
		keyColumns, err := evaluateAll(produceCtx.Context, g.KeyExprs, record)
		if err != nil {
			return err
		}
		getKeyHash, err := helpers.MakeRowHasher(keyColumns)
		if err != nil {
			return execution.NewEvaluationError(err)
		}

		aggColumnConsumers := make([]func(entryIndex uint, rowIndex uint), len(aggs))
		for i, spec := range g.Aggregates {
			var arg arrow.Array
			if spec.Arg != nil {
				if arg, err = spec.Arg.Evaluate(produceCtx.Context, record); err != nil {
					return fmt.Errorf("couldn't evaluate aggregate argument %s: %w", spec.Arg, err)
				}
			}
			aggColumnConsumers[i] = aggs[i].MakeColumnConsumer(arg)
		}
		newKeyAdders := make([]func(rowIndex uint), len(keys))
		keyEqualityCheckers := make([]func(entryIndex uint, rowIndex uint) bool, len(keys))
		for i := range keys {
			newKeyAdders[i] = keys[i].MakeNewKeyAdder(keyColumns[i])
			keyEqualityCheckers[i] = keys[i].MakeKeyEqualityChecker(keyColumns[i])
		}
		keysEqual := func(entryIndex int64, rowIndex uint) bool {
			for _, checkKey := range keyEqualityCheckers {
				if !checkKey(uint(entryIndex), rowIndex) {
					return false
				}
			}
			return true
		}

		rows := record.NumRows()
		for rowIndex := uint(0); rowIndex < uint(rows); rowIndex++ {
			hash := int64(getKeyHash(rowIndex))
			entryIndex, ok := entryIndices.Get(hash)
			for ok && !keysEqual(entryIndex, rowIndex) {
				entryIndex = nextEntryWithHash[entryIndex]
				ok = entryIndex >= 0
			}
			if !ok {
				chained, hadHash := entryIndices.Get(hash)
				if !hadHash {
					chained = -1
				}
				entryIndex = int64(entryCount)
				if err := addEntry(); err != nil {
					return err
				}
				nextEntryWithHash = append(nextEntryWithHash, chained)
				entryIndices.Put(hash, entryIndex)
				for _, addKey := range newKeyAdders {
					addKey(rowIndex)
				}
			}

			for _, consume := range aggColumnConsumers {
				consume(uint(entryIndex), rowIndex)
			}
		}

		return nil
	}); err != nil {
		return fmt.Errorf("couldn't run source node: %w", err)
	}

	if entryCount == 0 {
		if len(keys) > 0 || !g.Mode.IsFinal() {
			return nil
		}
		// A global aggregate has exactly one output row, even without any input.
		if err := addEntry(); err != nil {
			return err
		}
	}

	batchSize := ctx.Options().BatchSize
	for offset := 0; offset < entryCount; offset += batchSize {
		length := entryCount - offset
		if length > batchSize {
			length = batchSize
		}

		columns := make([]arrow.Array, len(g.OutSchema.Fields()))
		for i := range keys {
			columns[i] = keys[i].GetBatch(length, offset)
		}
		for i := range aggs {
			columns[len(keys)+i] = aggs[i].GetBatch(length, offset)
		}

		record := array.NewRecord(g.OutSchema, columns, int64(length))

		if err := produce(execution.ProduceContext{Context: ctx}, execution.Record{Record: record}); err != nil {
			return fmt.Errorf("couldn't produce record: %w", err)
		}
	}

	return nil
}
