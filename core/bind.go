package core

import "context"

// Bind adapts a niladic function into a Task.
func Bind(fn func()) Task {
	return func(ctx context.Context) {
		fn()
	}
}

// Bind1 produces a Task invoking fn with a bound argument.
func Bind1[A any](fn func(A), arg A) Task {
	return func(ctx context.Context) {
		fn(arg)
	}
}

// Bind2 produces a Task invoking fn with two bound arguments.
func Bind2[A, B any](fn func(A, B), a A, b B) Task {
	return func(ctx context.Context) {
		fn(a, b)
	}
}

// BindWeak produces a Task invoking fn on a weakly referenced receiver.
// The invocation is dropped silently when the weak reference is no longer
// valid at execution time.
func BindWeak[T any](w WeakRef[T], fn func(ctx context.Context, receiver *T)) Task {
	return func(ctx context.Context) {
		receiver := w.Get(ctx)
		if receiver == nil {
			return
		}
		fn(ctx, receiver)
	}
}

// BindWeak1 is BindWeak with one bound argument.
func BindWeak1[T, A any](w WeakRef[T], fn func(ctx context.Context, receiver *T, arg A), arg A) Task {
	return func(ctx context.Context) {
		receiver := w.Get(ctx)
		if receiver == nil {
			return
		}
		fn(ctx, receiver, arg)
	}
}
