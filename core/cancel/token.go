// Package cancel provides a one-shot cancellation handle for in-flight operations.
package cancel

import "sync"

// NoRequestDescription is reported by tokens that do not wrap an operation.
const NoRequestDescription = "no associated request"

// Operation is a handle to an in-flight operation owned by someone else.
// The token only ever asks it to stop or to describe itself.
type Operation interface {
	Cancel()
	String() string
}

// Token runs its cancel action at most once, however many goroutines call Cancel.
type Token struct {
	mu        sync.Mutex
	cancelled bool
	action    func()
	op        Operation
}

// New creates a token around an arbitrary cancel callback.
func New(action func()) *Token {
	return &Token{action: action}
}

// FromOperation creates a token whose cancel action is op.Cancel.
func FromOperation(op Operation) *Token {
	t := &Token{op: op}
	if op != nil {
		t.action = op.Cancel
	}
	return t
}

// Cancel marks the token cancelled and runs the action on the first call only.
// The flag is committed before the lock is released, so the action runs outside
// the critical section and later callers return immediately.
func (t *Token) Cancel() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	t.mu.Unlock()

	if t.action != nil {
		t.action()
	}
}

// IsCancelled reports whether Cancel has been called.
func (t *Token) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// String describes the wrapped operation, for diagnostics only.
func (t *Token) String() string {
	if t.op == nil {
		return NoRequestDescription
	}
	return t.op.String()
}
