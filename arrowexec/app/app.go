package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"go.uber.org/zap"

	"github.com/cube2222/octopipe/arrowexec/execution"
	"github.com/cube2222/octopipe/arrowexec/helpers"
	"github.com/cube2222/octopipe/arrowexec/nodes"
)

type Options struct {
	Execution execution.Options
	Logger    *zap.Logger
	Allocator memory.Allocator
	// Metrics is optional.
	Metrics *Metrics
}

// Run executes the plan rooted at root, streaming the output records to produce.
//
// The root runs in the calling goroutine, every other unit is started on the run state.
// A root with more than one partition gets its partitions merged.
// Once the root is done, all remaining units are cancelled.
// The first error of any unit fails the whole execution.
func Run(ctx context.Context, root *execution.NodeWithMeta, opts Options, produce execution.ProduceFunc) error {
	partitions := root.Partitioning.PartitionCount()
	if partitions != 1 {
		root = &execution.NodeWithMeta{
			Node:         &nodes.CoalescePartitions{Source: root},
			Schema:       root.Schema,
			Partitioning: execution.SinglePartitioning(),
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runOpts := []execution.RunOption{execution.WithOptions(opts.Execution)}
	if opts.Logger != nil {
		runOpts = append(runOpts, execution.WithLogger(opts.Logger))
	}
	if opts.Allocator != nil {
		runOpts = append(runOpts, execution.WithAllocator(opts.Allocator))
	}
	run, execCtx := execution.NewRunState(runCtx, runOpts...)
	logger := execCtx.Logger()

	start := time.Now()
	logger.Info("run started", zap.Int("partitions", partitions))

	var rows int64
	rootErr := root.Node.Run(execCtx, 0, func(produceCtx execution.ProduceContext, record execution.Record) error {
		rows += record.NumRows()
		return produce(produceCtx, record)
	})
	cancel()
	backgroundErr := run.Wait()

	err := firstError(rootErr, backgroundErr)
	duration := time.Since(start)
	opts.Metrics.observeRun(err, duration)
	if err != nil {
		logger.Error("run failed", zap.Error(err), zap.Duration("duration", duration))
		return err
	}
	logger.Info("run finished", zap.Int64("rows", rows), zap.Duration("duration", duration))
	return nil
}

// firstError prefers the background failure which caused the cancellation over the cancellation errors it caused.
// Cancellations caused by the run finishing aren't errors.
func firstError(rootErr, backgroundErr error) error {
	backgroundFailed := backgroundErr != nil && !errors.Is(backgroundErr, context.Canceled)
	switch {
	case backgroundFailed:
		return backgroundErr
	case rootErr != nil:
		return rootErr
	}
	return nil
}

type Result struct {
	Schema  *arrow.Schema
	Records []arrow.Record
}

// Rows returns all rows of the result, in order.
func (r *Result) Rows() [][]helpers.Value {
	var out [][]helpers.Value
	for _, record := range r.Records {
		out = append(out, helpers.RecordRows(record)...)
	}
	return out
}

func (r *Result) NumRows() int64 {
	var out int64
	for _, record := range r.Records {
		out += record.NumRows()
	}
	return out
}

// Collect executes the plan and gathers the whole output in memory.
func Collect(ctx context.Context, root *execution.NodeWithMeta, opts Options) (*Result, error) {
	result := &Result{Schema: root.Schema}
	if err := Run(ctx, root, opts, func(produceCtx execution.ProduceContext, record execution.Record) error {
		result.Records = append(result.Records, record.Record)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("couldn't run plan: %w", err)
	}
	return result, nil
}
