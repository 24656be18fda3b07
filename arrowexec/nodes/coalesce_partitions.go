package nodes

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cube2222/octopipe/arrowexec/execution"
)

// CoalescePartitions merges all source partitions into a single one, in arrival order.
type CoalescePartitions struct {
	Source *execution.NodeWithMeta
}

func (c *CoalescePartitions) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	if partition != 0 {
		return execution.WrapOperatorError("CoalescePartitions", partition, execution.NewConfigurationError(fmt.Errorf("partition out of range, coalesce partitions has a single output partition")))
	}

	localCtx, cancel := context.WithCancel(ctx.Context)
	defer cancel()

	inputCount := c.Source.Partitioning.PartitionCount()
	queue := make(chan execution.Record, ctx.Options().QueueCapacity*inputCount)
	var wg sync.WaitGroup
	var failed int32
	wg.Add(inputCount)
	for inputPartition := 0; inputPartition < inputCount; inputPartition++ {
		inputPartition := inputPartition
		ctx.Run.Go(func(runCtx execution.Context) error {
			defer wg.Done()
			err := c.Source.Node.Run(runCtx.WithContext(localCtx), inputPartition, func(produceCtx execution.ProduceContext, record execution.Record) error {
				if record.NumRows() == 0 {
					return nil
				}
				return execution.Send(localCtx, queue, record)
			})
			if err != nil && !execution.StoppedLocally(err, localCtx, runCtx.Context) {
				atomic.StoreInt32(&failed, 1)
				return execution.WrapOperatorError("CoalescePartitions", inputPartition, err)
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		if atomic.LoadInt32(&failed) == 0 {
			close(queue)
		}
	}()

	for {
		record, ok, err := execution.Receive(localCtx, queue)
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
