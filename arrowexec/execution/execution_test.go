package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitioningString(t *testing.T) {
	a, b := NewRecordVariable("a", 0), NewRecordVariable("b", 1)
	assert.Equal(t, "Hash([a@0, b@1], 4)", HashPartitioning([]Expression{a, b}, 4).String())
	assert.Equal(t, "RoundRobin(3)", RoundRobinPartitioning(3).String())
	assert.Equal(t, "Single", SinglePartitioning().String())
	assert.Equal(t, "Unknown(2)", UnknownPartitioning(2).String())
	assert.Equal(t, 1, SinglePartitioning().PartitionCount())
}

func TestErrorKinds(t *testing.T) {
	cause := fmt.Errorf("bad row")
	err := WrapOperatorError("Filter", 3, NewEvaluationError(cause))
	assert.ErrorIs(t, err, ErrEvaluation)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrSource)
	assert.Equal(t, "Filter (partition 3): evaluation error: bad row", err.Error())

	// The innermost attribution wins.
	rewrapped := WrapOperatorError("HashJoin", 1, fmt.Errorf("couldn't run probe side: %w", err))
	var opErr *OperatorError
	require.ErrorAs(t, rewrapped, &opErr)
	assert.Equal(t, "Filter", opErr.Operator)

	assert.Nil(t, WrapOperatorError("Filter", 0, nil))
}

func TestRunStateFirstErrorCancels(t *testing.T) {
	run, ctx := NewRunState(context.Background())
	failure := errors.New("failure")
	run.Go(func(ctx Context) error {
		return failure
	})
	run.Go(func(ctx Context) error {
		<-ctx.Context.Done()
		return ctx.Context.Err()
	})
	assert.ErrorIs(t, run.Wait(), failure)
	assert.Error(t, ctx.Context.Err())
}

func TestRunStateShared(t *testing.T) {
	run, _ := NewRunState(context.Background())
	calls := 0
	init := func() any {
		calls++
		return calls
	}
	assert.Equal(t, 1, run.Shared("key", init))
	assert.Equal(t, 1, run.Shared("key", init))
	assert.Equal(t, 2, run.Shared("other", init))
}

func TestSendReceiveCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	queue := make(chan Record)
	cancel()
	assert.ErrorIs(t, Send(ctx, queue, Record{}), context.Canceled)
	_, ok, err := Receive(ctx, queue)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)

	local, cancelLocal := context.WithCancel(context.Background())
	cancelLocal()
	assert.True(t, StoppedLocally(context.Canceled, local, context.Background()))
	assert.False(t, StoppedLocally(context.Canceled, local, ctx))
}
