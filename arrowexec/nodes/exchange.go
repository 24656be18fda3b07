package nodes

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/apache/arrow/go/v13/arrow"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
)

// Exchange redistributes the records of all source partitions across the output partitions.
//
// With round-robin partitioning whole records are dealt out to the outputs in turns.
// With hash partitioning each row goes to the output partition hash(keys) mod n,
// so rows with equal keys always end up in the same output partition, whichever input partition they came from.
// Row order isn't preserved in either case.
//
// Each source partition is read by its own background unit. Every output partition has a bounded queue,
// a unit trying to push to a full queue blocks until the consuming partition catches up.
type Exchange struct {
	Source       *execution.NodeWithMeta
	Partitioning execution.Partitioning
}

type exchangeState struct {
	outputs []chan execution.Record

	// A closed abandoned channel means the output partition consumer is gone, records for it are dropped.
	abandoned    []chan struct{}
	abandonOnces []sync.Once
	// Closed once every output partition is abandoned, the inputs stop reading their sources then.
	allAbandoned   chan struct{}
	abandonedCount int32
	failed         int32
}

var errAllOutputsAbandoned = errors.New("all exchange outputs abandoned")

func (e *Exchange) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	outputCount := e.Partitioning.PartitionCount()
	if partition < 0 || partition >= outputCount {
		return execution.WrapOperatorError("Exchange", partition, execution.NewConfigurationError(fmt.Errorf("partition out of range, exchange has %d output partitions", outputCount)))
	}
	if ctx.Run == nil {
		return execution.NewConfigurationError(fmt.Errorf("exchange requires a run state"))
	}

	state := ctx.Run.Shared(e, func() any {
		return e.start(ctx.Run)
	}).(*exchangeState)
	defer state.abandon(partition)

	for {
		record, ok, err := execution.Receive(ctx.Context, state.outputs[partition])
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := produce(execution.ProduceContext{Context: ctx}, record); err != nil {
			return fmt.Errorf("couldn't produce record: %w", err)
		}
	}
}

func (e *Exchange) start(run *execution.RunState) *exchangeState {
	outputCount := e.Partitioning.PartitionCount()
	queueCapacity := execution.Context{Run: run}.Options().QueueCapacity

	state := &exchangeState{
		outputs:      make([]chan execution.Record, outputCount),
		abandoned:    make([]chan struct{}, outputCount),
		abandonOnces: make([]sync.Once, outputCount),
		allAbandoned: make(chan struct{}),
	}
	for i := range state.outputs {
		state.outputs[i] = make(chan execution.Record, queueCapacity)
		state.abandoned[i] = make(chan struct{})
	}

	inputCount := e.Source.Partitioning.PartitionCount()
	var wg sync.WaitGroup
	wg.Add(inputCount)
	for inputPartition := 0; inputPartition < inputCount; inputPartition++ {
		inputPartition := inputPartition
		run.Go(func(ctx execution.Context) error {
			defer wg.Done()
			if err := e.runInput(ctx, inputPartition, state); err != nil {
				atomic.StoreInt32(&state.failed, 1)
				return execution.WrapOperatorError("Exchange", inputPartition, err)
			}
			return nil
		})
	}
	run.Go(func(ctx execution.Context) error {
		wg.Wait()
		if atomic.LoadInt32(&state.failed) == 1 {
			// The consumers mustn't mistake a failure for the end of data, they get cancelled instead.
			return nil
		}
		for i := range state.outputs {
			close(state.outputs[i])
		}
		return nil
	})

	return state
}

func (e *Exchange) runInput(ctx execution.Context, inputPartition int, state *exchangeState) error {
	outputCount := len(state.outputs)
	// Each input starts dealing at a different output, so that small inputs don't all land in the first one.
	nextRoundRobin := inputPartition % outputCount

	if err := e.Source.Node.Run(ctx, inputPartition, func(produceCtx execution.ProduceContext, record execution.Record) error {
		if record.NumRows() == 0 {
			return nil
		}

		switch e.Partitioning.Type {
		case execution.PartitioningTypeSingle:
			return state.send(ctx, 0, record)

		case execution.PartitioningTypeRoundRobin, execution.PartitioningTypeUnknown:
			destination := nextRoundRobin
			nextRoundRobin = (nextRoundRobin + 1) % outputCount
			return state.send(ctx, destination, record)

		case execution.PartitioningTypeHash:
			return e.sendHashed(produceCtx.Context, record, state)

		default:
			panic(fmt.Sprintf("unexhaustive partitioning type match: %d", e.Partitioning.Type))
		}
	}); err != nil {
		if errors.Is(err, errAllOutputsAbandoned) {
			return nil
		}
		return fmt.Errorf("couldn't run source node: %w", err)
	}
	return nil
}

func (e *Exchange) sendHashed(ctx execution.Context, record execution.Record, state *exchangeState) error {
	outputCount := len(state.outputs)

	keys := make([]arrow.Array, len(e.Partitioning.Keys))
	for i, expr := range e.Partitioning.Keys {
		arr, err := expr.Evaluate(ctx, record)
		if err != nil {
			return fmt.Errorf("couldn't evaluate partitioning expression %s: %w", expr, err)
		}
		keys[i] = arr
	}
	hashRow, err := helpers.MakeRowHasher(keys)
	if err != nil {
		return execution.NewEvaluationError(fmt.Errorf("couldn't hash partitioning keys: %w", err))
	}

	numRows := int(record.NumRows())
	destinationRows := make([][]int, outputCount)
	for rowIndex := 0; rowIndex < numRows; rowIndex++ {
		destination := int(hashRow(uint(rowIndex)) % uint64(outputCount))
		destinationRows[destination] = append(destinationRows[destination], rowIndex)
	}

	for destination, rows := range destinationRows {
		if len(rows) == 0 {
			continue
		}
		out := record
		if len(rows) != numRows {
			out = execution.Record{Record: helpers.TakeRows(ctx.Allocator(), record, rows)}
		}
		if err := state.send(ctx, destination, out); err != nil {
			return err
		}
	}
	return nil
}

func (state *exchangeState) send(ctx execution.Context, destination int, record execution.Record) error {
	select {
	case state.outputs[destination] <- record:
		return nil
	case <-state.abandoned[destination]:
		select {
		case <-state.allAbandoned:
			return errAllOutputsAbandoned
		default:
			return nil
		}
	case <-ctx.Context.Done():
		return ctx.Context.Err()
	}
}

func (state *exchangeState) abandon(partition int) {
	state.abandonOnces[partition].Do(func() {
		close(state.abandoned[partition])
		if int(atomic.AddInt32(&state.abandonedCount, 1)) == len(state.abandoned) {
			close(state.allAbandoned)
		}
	})
}
