package pool

// Handler consumes a single job payload. A Handler is shared by every worker
// in the pool and may be invoked from any worker goroutine, for many jobs at
// once, so implementations must be safe for concurrent use and must not hold
// goroutine-local state between invocations.
type Handler[T any] interface {
	Invoke(payload T)
}

// HandlerFunc adapts a plain function to a [Handler].
type HandlerFunc[T any] func(T)

// Invoke calls f(payload).
func (f HandlerFunc[T]) Invoke(payload T) { f(payload) }

// job pairs a payload with the handler that consumes it. Once enqueued, a job
// is received by exactly one worker and its handler invoked exactly once.
type job[T any] struct {
	handler Handler[T]
	payload T
}
