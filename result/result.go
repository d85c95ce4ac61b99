// Package result provides a two-variant outcome type. A Result is either a
// Success carrying a value or a Failure carrying a reason; the zero value is
// a Failure with the zero reason.
package result

type Result[T any, E any] struct {
	ok     bool
	value  T
	reason E
}

func Success[T any, E any](value T) Result[T, E] {
	return Result[T, E]{ok: true, value: value}
}

func Failure[T any, E any](reason E) Result[T, E] {
	return Result[T, E]{reason: reason}
}

func (r Result[T, E]) IsSuccess() bool { return r.ok }

func (r Result[T, E]) IsFailure() bool { return !r.ok }

// Value returns the success value, or the zero T on failure.
func (r Result[T, E]) Value() T {
	if !r.ok {
		var zero T
		return zero
	}
	return r.value
}

// Reason returns the failure reason, or the zero E on success.
func (r Result[T, E]) Reason() E {
	if r.ok {
		var zero E
		return zero
	}
	return r.reason
}

func (r Result[T, E]) Unwrap() (T, E, bool) {
	return r.value, r.reason, r.ok
}

func Bind[T any, U any, E any](r Result[T, E], fn func(T) Result[U, E]) Result[U, E] {
	if !r.ok {
		return Failure[U](r.reason)
	}
	return fn(r.value)
}

func Map[T any, U any, E any](r Result[T, E], fn func(T) U) Result[U, E] {
	if !r.ok {
		return Failure[U](r.reason)
	}
	return Success[U, E](fn(r.value))
}

func MapFailure[T any, E any, F any](r Result[T, E], fn func(E) F) Result[T, F] {
	if r.ok {
		return Success[T, F](r.value)
	}
	return Failure[T](fn(r.reason))
}

func Match[T any, E any, R any](r Result[T, E], onSuccess func(T) R, onFailure func(E) R) R {
	if r.ok {
		return onSuccess(r.value)
	}
	return onFailure(r.reason)
}
