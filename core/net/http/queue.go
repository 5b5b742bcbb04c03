package http

import (
	"github.com/panjf2000/ants/v2"

	"github.com/kochabx/courier/log"
)

// InlineQueue runs completions on the goroutine that finished the transfer,
// or on the caller's goroutine when the operation had already finished.
type InlineQueue struct{}

// Submit runs task immediately.
func (InlineQueue) Submit(task func()) error {
	task()
	return nil
}

// PoolQueue delivers completions on a bounded ants goroutine pool.
type PoolQueue struct {
	pool *ants.Pool
}

// NewPoolQueue creates a pool of size workers. Panics in completion handlers
// are logged instead of crashing the worker.
func NewPoolQueue(size int, opts ...ants.Option) (*PoolQueue, error) {
	opts = append([]ants.Option{
		ants.WithPanicHandler(func(p any) {
			log.Error().Interface("panic", p).Msg("completion handler panicked")
		}),
	}, opts...)

	pool, err := ants.NewPool(size, opts...)
	if err != nil {
		return nil, err
	}
	return &PoolQueue{pool: pool}, nil
}

// Submit schedules task on the pool, blocking while all workers are busy.
func (q *PoolQueue) Submit(task func()) error {
	return q.pool.Submit(task)
}

// Running returns the number of workers currently executing a completion.
func (q *PoolQueue) Running() int {
	return q.pool.Running()
}

// Release stops the pool. Submit fails afterwards.
func (q *PoolQueue) Release() {
	q.pool.Release()
}
