package nodes

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/cube2222/octopipe/arrowexec/execution"
)

// limitReachedError is returned through the source to stop underlying processing once the limit is reached.
// It's caught and silenced by the Limit node that emitted it.
type limitReachedError struct {
	id ulid.ULID
}

func (e *limitReachedError) Error() string {
	return fmt.Sprintf("limit %s reached", e.id)
}

func isLimitReached(err error, id ulid.ULID) bool {
	var limitErr *limitReachedError
	return errors.As(err, &limitErr) && limitErr.id == id
}

// GlobalLimit skips the first Skip rows and then passes at most Fetch rows of its single partition input.
type GlobalLimit struct {
	Source *execution.NodeWithMeta
	Skip   int
	Fetch  int
}

func (l *GlobalLimit) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	if partition != 0 {
		return execution.WrapOperatorError("GlobalLimit", partition, execution.NewConfigurationError(fmt.Errorf("partition out of range, global limit has a single output partition")))
	}
	return runLimit(ctx, "GlobalLimit", l.Source, partition, l.Skip, l.Fetch, produce)
}

// LocalLimit passes at most Fetch rows of each partition.
type LocalLimit struct {
	Source *execution.NodeWithMeta
	Fetch  int
}

func (l *LocalLimit) Run(ctx execution.Context, partition int, produce execution.ProduceFunc) error {
	return runLimit(ctx, "LocalLimit", l.Source, partition, 0, l.Fetch, produce)
}

func runLimit(ctx execution.Context, operator string, source *execution.NodeWithMeta, partition int, skip, fetch int, produce execution.ProduceFunc) error {
	limitID := ulid.MustNew(ulid.Now(), rand.Reader)

	if fetch == 0 {
		// Nothing to pass, the source is still started so that partitions it serves don't wait for it.
		if err := source.Node.Run(ctx, partition, func(produceCtx execution.ProduceContext, record execution.Record) error {
			return &limitReachedError{id: limitID}
		}); err != nil && !isLimitReached(err, limitID) {
			return execution.WrapOperatorError(operator, partition, fmt.Errorf("couldn't run source: %w", err))
		}
		return nil
	}

	toSkip := int64(skip)
	passed := int64(0)
	if err := source.Node.Run(ctx, partition, func(produceCtx execution.ProduceContext, record execution.Record) error {
		rows := record.NumRows()
		offset := int64(0)
		if toSkip > 0 {
			if rows <= toSkip {
				toSkip -= rows
				return nil
			}
			offset = toSkip
			toSkip = 0
		}

		length := rows - offset
		if fetch != NoFetch && passed+length >= int64(fetch) {
			// Some go, some stay.
			length = int64(fetch) - passed
			passed = int64(fetch)
			if err := produce(produceCtx, execution.Record{Record: record.NewSlice(offset, offset+length)}); err != nil {
				return fmt.Errorf("couldn't produce: %w", err)
			}
			return &limitReachedError{id: limitID}
		}

		passed += length
		out := record
		if offset > 0 {
			out = execution.Record{Record: record.NewSlice(offset, rows)}
		}
		if err := produce(produceCtx, out); err != nil {
			return fmt.Errorf("couldn't produce: %w", err)
		}
		return nil
	}); err != nil {
		if isLimitReached(err, limitID) {
			return nil
		}
		return execution.WrapOperatorError(operator, partition, fmt.Errorf("couldn't run source: %w", err))
	}
	return nil
}
