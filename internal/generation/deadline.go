package generation

import (
	"context"
	"time"
)

// Status tags the result of a deadline-bounded operation.
type Status int

const (
	StatusOK Status = iota
	StatusTimedOut
	StatusFailed
)

// Outcome is the tagged result of RunWithDeadline.
type Outcome[T any] struct {
	Status Status
	Value  T
	Err    error
}

// OK reports whether the operation settled successfully before the deadline.
func (o Outcome[T]) OK() bool { return o.Status == StatusOK }

// RunWithDeadline races fn against a timer; the first to settle wins.
// The loser's in-flight work is abandoned, not forcibly cancelled: every
// caller passes an idempotent read or a side-effect-free call, so
// fire-and-forget is safe. The derived context still carries the deadline
// for implementations that honor it.
func RunWithDeadline[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) Outcome[T] {
	type settled struct {
		value T
		err   error
	}
	ch := make(chan settled, 1)
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	go func() {
		defer cancel()
		v, err := fn(opCtx)
		ch <- settled{value: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		if r.err != nil {
			return Outcome[T]{Status: StatusFailed, Err: r.err}
		}
		return Outcome[T]{Status: StatusOK, Value: r.value}
	case <-timer.C:
		return Outcome[T]{Status: StatusTimedOut, Err: context.DeadlineExceeded}
	case <-ctx.Done():
		return Outcome[T]{Status: StatusFailed, Err: ctx.Err()}
	}
}
