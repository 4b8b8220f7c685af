// Package settle runs a fixed set of independent operations concurrently and
// waits for every one of them to reach a terminal state.
package settle

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// Result is the terminal state of a single operation.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok is true if the operation returned without an error.
func (r Result[T]) Ok() bool {
	return r.Err == nil
}

// PanicError is the error an operation settles with if it panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e PanicError) Error() string {
	return fmt.Sprintf("operation panicked: %v", e.Value)
}

// Op is a single operation to run.
type Op[T any] func(ctx context.Context) (T, error)

// All starts every operation at once and returns once all of them have settled.
// Results are in the same order as `ops` regardless of completion order. A failing
// or panicking operation does not cancel or otherwise affect the others.
func All[T any](ctx context.Context, ops []Op[T]) []Result[T] {
	results := make([]Result[T], len(ops))

	// a bare errgroup.Group (not WithContext) so that an error never cancels
	// the other operations, every goroutine also returns nil.
	var group errgroup.Group
	for i, op := range ops {
		group.Go(func() error {
			results[i] = run(ctx, op)
			return nil
		})
	}
	_ = group.Wait()

	return results
}

func run[T any](ctx context.Context, op Op[T]) (result Result[T]) {
	defer func() {
		recovered := recover()
		if recovered != nil {
			result = Result[T]{Err: PanicError{Value: recovered, Stack: debug.Stack()}}
		}
	}()
	value, err := op(ctx)
	return Result[T]{Value: value, Err: err}
}
