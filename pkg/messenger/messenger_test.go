package messenger

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"nts/pkg/operation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const opDuration = 30 * time.Millisecond

func timed(method operation.Method, d time.Duration, err error, done *atomic.Int32) *operation.Operation {
	return operation.New(operation.ExecutorFunc(func(context.Context, int) error {
		time.Sleep(d)
		if done != nil {
			done.Add(1)
		}
		return err
	}), operation.WithMethod(method))
}

func TestMessenger_ExecutionCombinations(t *testing.T) {
	S, A, P := operation.Sequential, operation.Asynchronous, operation.Parallel
	table := []struct {
		methods [3]operation.Method
		units   int
	}{
		{[3]operation.Method{S, S, S}, 3},
		{[3]operation.Method{S, S, A}, 3},
		{[3]operation.Method{S, S, P}, 3},
		{[3]operation.Method{S, A, S}, 3},
		{[3]operation.Method{S, A, A}, 2},
		{[3]operation.Method{S, A, P}, 2},
		{[3]operation.Method{S, P, S}, 2},
		{[3]operation.Method{S, P, A}, 2},
		{[3]operation.Method{S, P, P}, 2},
		{[3]operation.Method{A, S, S}, 3},
		{[3]operation.Method{A, S, A}, 3},
		{[3]operation.Method{A, S, P}, 3},
		{[3]operation.Method{A, A, S}, 2},
		{[3]operation.Method{A, A, A}, 1},
		{[3]operation.Method{A, A, P}, 1},
		{[3]operation.Method{A, P, S}, 2},
		{[3]operation.Method{A, P, A}, 1},
		{[3]operation.Method{A, P, P}, 1},
		{[3]operation.Method{P, S, S}, 2},
		{[3]operation.Method{P, S, A}, 2},
		{[3]operation.Method{P, S, P}, 2},
		{[3]operation.Method{P, A, S}, 2},
		{[3]operation.Method{P, A, A}, 1},
		{[3]operation.Method{P, A, P}, 1},
		{[3]operation.Method{P, P, S}, 1},
		{[3]operation.Method{P, P, A}, 1},
		{[3]operation.Method{P, P, P}, 1},
	}
	require.Len(t, table, 27, "Every combination of three methods should be covered")

	for _, tc := range table {
		name := fmt.Sprintf("%d%d%d", tc.methods[0], tc.methods[1], tc.methods[2])
		t.Run(name, func(t *testing.T) {
			var done atomic.Int32
			m := New()
			for _, method := range tc.methods {
				m.Push(timed(method, opDuration, nil, &done))
			}

			start := time.Now()
			require.NoError(t, m.Run(context.Background()))
			elapsed := time.Since(start)

			expected := time.Duration(tc.units) * opDuration
			assert.EqualValues(t, 3, done.Load(), "Every operation should have finished when Run returns")
			assert.GreaterOrEqual(t, elapsed, expected, "Run returned too early for %v", tc.methods)
			assert.Less(t, elapsed, expected+opDuration/2, "Run took too long for %v", tc.methods)
		})
	}
}

func TestMessenger_Empty(t *testing.T) {
	m := New()
	assert.Zero(t, m.Len())
	assert.NoError(t, m.Run(context.Background()))
}

func TestMessenger_SequentialFailureStopsWalk(t *testing.T) {
	boom := errors.New("boom")
	var done atomic.Int32

	parallel := timed(operation.Parallel, 3*opDuration, nil, &done)
	failing := timed(operation.Sequential, 0, boom, nil)
	skipped := timed(operation.Sequential, 0, nil, nil)

	m := New()
	m.Push(parallel)
	m.Push(failing)
	m.Push(skipped)

	err := m.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, done.Load(), "Launched parallel work should be joined after a failure")
	assert.Equal(t, operation.Success, parallel.State())
	assert.Equal(t, operation.Failure, failing.State())
	assert.Equal(t, operation.Waiting, skipped.State(), "Operations after a failure should not run")
}

func TestMessenger_AsyncFailureSurfacesAtBarrier(t *testing.T) {
	boom := errors.New("async boom")
	var done atomic.Int32

	m := New()
	m.Push(timed(operation.Asynchronous, opDuration, boom, &done))
	barrier := timed(operation.Sequential, 0, nil, &done)
	m.Push(barrier)
	after := timed(operation.Sequential, 0, nil, &done)
	m.Push(after)

	err := m.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, operation.Success, barrier.State(), "The barrier operation still runs after joining")
	assert.Equal(t, operation.Waiting, after.State(), "The walk should stop once the failure is known")
	assert.EqualValues(t, 2, done.Load())
}

func TestMessenger_AsyncFailureJoinedAtEnd(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")

	m := New()
	m.Push(timed(operation.Asynchronous, opDuration, first, nil))
	m.Push(timed(operation.Parallel, opDuration, second, nil))
	m.Push(timed(operation.Asynchronous, opDuration, nil, nil))

	err := m.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestMessenger_TimeoutReported(t *testing.T) {
	op := operation.New(operation.ExecutorFunc(func(context.Context, int) error {
		time.Sleep(opDuration)
		return nil
	}), operation.WithTimeout(opDuration/3), operation.WithName("slow"))

	m := New()
	m.Push(op)

	err := m.Run(context.Background())
	assert.ErrorIs(t, err, operation.ErrTimeout)
	assert.Contains(t, err.Error(), "slow")
	assert.Equal(t, operation.TimeOut, op.State())
}

func TestMessenger_RunTwice(t *testing.T) {
	var done atomic.Int32
	m := New()
	m.Push(timed(operation.Asynchronous, 0, nil, &done))
	m.Push(timed(operation.Parallel, 0, nil, &done))

	require.NoError(t, m.Run(context.Background()))
	require.NoError(t, m.Run(context.Background()))
	assert.EqualValues(t, 4, done.Load())
}
