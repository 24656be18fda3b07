package execution

import (
	"context"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"go.uber.org/zap"
)

// All nodes will try to create batches of approximately this size. Different sizes are allowed.
const IdealBatchSize = 16 * 1024

type Context struct {
	Context context.Context
	// Run holds the state shared by all units of a single execution.
	Run *RunState
}

func (ctx Context) WithContext(c context.Context) Context {
	return Context{
		Context: c,
		Run:     ctx.Run,
	}
}

func (ctx Context) Logger() *zap.Logger {
	if ctx.Run == nil || ctx.Run.logger == nil {
		return zap.NewNop()
	}
	return ctx.Run.logger
}

func (ctx Context) Allocator() memory.Allocator {
	if ctx.Run == nil || ctx.Run.allocator == nil {
		return memory.DefaultAllocator
	}
	return ctx.Run.allocator
}

func (ctx Context) Options() Options {
	if ctx.Run == nil {
		return DefaultOptions()
	}
	return ctx.Run.options
}

type ProduceContext struct {
	Context
}

// Node is a materialized operator. Run produces the records of a single output partition.
// Run may be called concurrently for different partitions.
type Node interface {
	Run(ctx Context, partition int, produce ProduceFunc) error
}

type NodeWithMeta struct {
	Node         Node
	Schema       *arrow.Schema
	Partitioning Partitioning
}

type ProduceFunc func(produceCtx ProduceContext, record Record) error

type Record struct {
	arrow.Record
}

// Options are the tunables of a single execution.
type Options struct {
	// BatchSize is the target row count of coalesced and newly built batches.
	BatchSize int
	// QueueCapacity is the count of batches buffered per destination at Exchange and merge boundaries.
	QueueCapacity int
	// MaxBuildRows limits the row count of a single hash join build table, 0 means unlimited.
	MaxBuildRows int
	// MaxGroups limits the group count of a single aggregate hash table, 0 means unlimited.
	MaxGroups int
}

func DefaultOptions() Options {
	return Options{
		BatchSize:     IdealBatchSize,
		QueueCapacity: 8,
	}
}
