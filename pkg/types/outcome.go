package types

// Status classifies how a fallback-bearing step completed
type Status int

const (
	StatusOK Status = iota
	StatusDegraded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDegraded:
		return "degraded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of a step that may substitute a fallback value.
// Degraded carries a usable value; Failed carries only a reason.
type Outcome[T any] struct {
	Value  T
	Status Status
	Reason string
}

// OK wraps a healthy value
func OK[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v, Status: StatusOK}
}

// Degraded wraps a fallback value and the reason it was used
func Degraded[T any](v T, reason string) Outcome[T] {
	return Outcome[T]{Value: v, Status: StatusDegraded, Reason: reason}
}

// Failed reports an exhausted step
func Failed[T any](reason string) Outcome[T] {
	return Outcome[T]{Status: StatusFailed, Reason: reason}
}

func (o Outcome[T]) IsOK() bool       { return o.Status == StatusOK }
func (o Outcome[T]) IsDegraded() bool { return o.Status == StatusDegraded }
func (o Outcome[T]) IsFailed() bool   { return o.Status == StatusFailed }

// Usable reports whether Value can be consumed
func (o Outcome[T]) Usable() bool {
	return o.Status != StatusFailed
}
