package bflow

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is a suspendable unit of work. A task may resolve to another Task, in which case [Await] keeps resolving
// until it reaches a plain value or an error.
type Task func(ctx context.Context) (any, error)

// Result is the outcome of a task or middleware unit: either a value or an error.
type Result struct {
	Value any
	Err   error
}

// Ok returns a successful result.
func Ok(v any) Result { return Result{Value: v} }

// Fail returns a failed result.
func Fail(err error) Result { return Result{Err: err} }

// IsErr reports whether the result carries an error.
func (r Result) IsErr() bool { return r.Err != nil }

// Await runs t and resolves nested tasks. A nil task resolves to an empty result.
func Await(ctx context.Context, t Task) Result {
	for t != nil {
		v, err := t(ctx)
		if err != nil {
			return Fail(err)
		}

		next, ok := v.(Task)
		if !ok {
			return Ok(v)
		}

		t = next
	}

	return Ok(nil)
}

// Value returns a task that resolves to v.
func Value(v any) Task {
	return func(context.Context) (any, error) { return v, nil }
}

// Errored returns a task that fails with err.
func Errored(err error) Task {
	return func(context.Context) (any, error) { return nil, err }
}

// Sleep returns a task that resolves after d, or fails when ctx is done first.
func Sleep(d time.Duration) Task {
	return func(ctx context.Context) (any, error) {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		}
	}
}

// Future is a started task.
type Future struct {
	res  Result
	once sync.Once
	done chan struct{}
}

// Go starts t in its own goroutine.
func Go(ctx context.Context, t Task) *Future {
	f := &Future{done: make(chan struct{})}

	go func() {
		defer close(f.done)

		// don't start work for a context that is already gone
		if ctx.Err() != nil {
			f.once.Do(func() { f.res = Fail(context.Cause(ctx)) })
			return
		}

		res := Await(ctx, t)
		f.once.Do(func() { f.res = res })
	}()

	return f
}

// Await blocks until the task settled.
func (f *Future) Await() Result {
	<-f.done
	return f.res
}

// Done is closed once the task settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Task turns the future back into a task, so it can be returned from a unit or composed.
func (f *Future) Task() Task {
	return func(ctx context.Context) (any, error) {
		select {
		case <-f.done:
			return f.res.Value, f.res.Err
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		}
	}
}

// All returns a task that runs all tasks concurrently and resolves to their values, in order. The first failure
// cancels the remaining tasks and becomes the task's error.
func All(tasks ...Task) Task {
	return func(ctx context.Context) (any, error) {
		vals := make([]any, len(tasks))
		eg, ctx := errgroup.WithContext(ctx)

		for i, t := range tasks {
			eg.Go(func() error {
				res := Await(ctx, t)
				vals[i] = res.Value
				return res.Err
			})
		}

		if err := eg.Wait(); err != nil {
			return nil, err
		}

		return vals, nil
	}
}

// Race returns a task that settles with the first of tasks to settle. The others are cancelled.
func Race(tasks ...Task) Task {
	return func(ctx context.Context) (any, error) {
		if len(tasks) == 0 {
			return nil, nil
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		first := make(chan Result, len(tasks))
		for _, t := range tasks {
			go func() { first <- Await(ctx, t) }()
		}

		res := <-first
		return res.Value, res.Err
	}
}
