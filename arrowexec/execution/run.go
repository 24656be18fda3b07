package execution

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"

	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RunState is the state of a single execution of a plan.
// Background units (Exchange producers, fan-in inputs) are started on it,
// the first one to fail cancels all the others.
type RunState struct {
	ID ulid.ULID

	ctx       context.Context
	group     *errgroup.Group
	logger    *zap.Logger
	allocator memory.Allocator
	options   Options

	sharedMutex sync.Mutex
	shared      map[any]any
}

type RunOption func(state *RunState)

func WithLogger(logger *zap.Logger) RunOption {
	return func(state *RunState) {
		state.logger = logger
	}
}

func WithAllocator(allocator memory.Allocator) RunOption {
	return func(state *RunState) {
		state.allocator = allocator
	}
}

func WithOptions(options Options) RunOption {
	return func(state *RunState) {
		if options.BatchSize <= 0 {
			options.BatchSize = IdealBatchSize
		}
		if options.QueueCapacity <= 0 {
			options.QueueCapacity = DefaultOptions().QueueCapacity
		}
		state.options = options
	}
}

// NewRunState creates the state of a new execution.
// The returned Context is cancelled as soon as any background unit fails.
func NewRunState(ctx context.Context, opts ...RunOption) (*RunState, Context) {
	group, groupCtx := errgroup.WithContext(ctx)
	state := &RunState{
		ID:        ulid.MustNew(ulid.Now(), rand.Reader),
		ctx:       groupCtx,
		group:     group,
		logger:    zap.NewNop(),
		allocator: memory.DefaultAllocator,
		options:   DefaultOptions(),
		shared:    make(map[any]any),
	}
	for _, opt := range opts {
		opt(state)
	}
	state.logger = state.logger.With(zap.String("run_id", state.ID.String()))

	return state, Context{
		Context: groupCtx,
		Run:     state,
	}
}

// Go starts a background unit.
func (r *RunState) Go(f func(ctx Context) error) {
	r.group.Go(func() error {
		return f(Context{
			Context: r.ctx,
			Run:     r,
		})
	})
}

// Wait waits for all background units and returns the first error any of them returned.
func (r *RunState) Wait() error {
	return r.group.Wait()
}

// Shared returns the value stored under the given key, initializing it using init on first use.
// It's used by operators which serve many partitions from a single state, like the Exchange.
func (r *RunState) Shared(key any, init func() any) any {
	r.sharedMutex.Lock()
	defer r.sharedMutex.Unlock()

	if value, ok := r.shared[key]; ok {
		return value
	}
	value := init()
	r.shared[key] = value
	return value
}

// Send pushes the record to the queue, blocking while it's full.
func Send(ctx context.Context, queue chan<- Record, record Record) error {
	select {
	case queue <- record:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive pops a record from the queue, blocking while it's empty.
// ok is false once the queue is closed.
func Receive(ctx context.Context, queue <-chan Record) (record Record, ok bool, err error) {
	select {
	case record, ok := <-queue:
		return record, ok, nil
	case <-ctx.Done():
		return Record{}, false, ctx.Err()
	}
}

// StoppedLocally reports whether err is the result of the local context being cancelled
// while the execution as a whole is still running.
func StoppedLocally(err error, local, run context.Context) bool {
	return errors.Is(err, context.Canceled) && local.Err() != nil && run.Err() == nil
}
