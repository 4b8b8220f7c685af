package settle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAllPreservesInputOrder(t *testing.T) {
	delays := []time.Duration{30, 0, 20, 10}
	ops := make([]Op[int], len(delays))
	for i, d := range delays {
		ops[i] = func(ctx context.Context) (int, error) {
			time.Sleep(d * time.Millisecond)
			return i, nil
		}
	}

	results := All(context.Background(), ops)
	require.Len(t, results, len(delays))
	for i, r := range results {
		require.True(t, r.Ok())
		require.Equal(t, i, r.Value)
	}
}

func TestAllToleratesFailures(t *testing.T) {
	errBoom := errors.New("boom")
	ops := []Op[string]{
		func(ctx context.Context) (string, error) { return "", errBoom },
		func(ctx context.Context) (string, error) { return "ok", nil },
		func(ctx context.Context) (string, error) { panic("parser exploded") },
		func(ctx context.Context) (string, error) { return "also ok", nil },
	}

	results := All(context.Background(), ops)

	require.ErrorIs(t, results[0].Err, errBoom)
	require.Equal(t, "ok", results[1].Value)

	var panicErr PanicError
	require.ErrorAs(t, results[2].Err, &panicErr)
	require.Equal(t, "parser exploded", panicErr.Value)
	require.NotEmpty(t, panicErr.Stack)

	require.Equal(t, "also ok", results[3].Value)
}

func TestAllEmpty(t *testing.T) {
	results := All[int](context.Background(), nil)
	require.Len(t, results, 0)
}

// every operation blocks until all of them have started, this can only
// finish if they run concurrently.
func TestAllRunsConcurrently(t *testing.T) {
	const n = 4

	var started sync.WaitGroup
	started.Add(n)
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()

	ops := make([]Op[bool], n)
	for i := range ops {
		ops[i] = func(ctx context.Context) (bool, error) {
			started.Done()
			select {
			case <-allStarted:
				return true, nil
			case <-time.After(5 * time.Second):
				return false, errors.New("operations did not run concurrently")
			}
		}
	}

	results := All(context.Background(), ops)
	for _, r := range results {
		require.NoError(t, r.Err)
		require.True(t, r.Value)
	}
}

// a failure does not short-circuit the join, slow operations still finish
func TestAllWaitsForSlowOperations(t *testing.T) {
	var finished atomic.Int32
	ops := []Op[int]{
		func(ctx context.Context) (int, error) {
			return 0, errors.New("fails immediately")
		},
		func(ctx context.Context) (int, error) {
			time.Sleep(50 * time.Millisecond)
			finished.Add(1)
			return 1, nil
		},
	}

	results := All(context.Background(), ops)
	require.Equal(t, int32(1), finished.Load())
	require.Error(t, results[0].Err)
	require.Equal(t, 1, results[1].Value)
}
