// Package pool bounds the number of concurrently executing download runs so
// long blocking probe/fetch work never stalls the update-handling loop.
package pool

import (
	"context"
	"errors"

	"golang.org/x/sync/semaphore"
)

// ErrSaturated is returned when every worker slot is taken. Callers surface
// it as back-pressure instead of queueing unbounded work.
var ErrSaturated = errors.New("worker pool is saturated")

type Pool struct {
	size int64
	sem  *semaphore.Weighted
}

func New(size int64) *Pool {
	if size < 1 {
		panic("pool size must be positive")
	}
	return &Pool{size: size, sem: semaphore.NewWeighted(size)}
}

// TryGo runs fn on its own goroutine if a slot is free, and fails fast with
// ErrSaturated otherwise.
func (p *Pool) TryGo(fn func()) error {
	if !p.sem.TryAcquire(1) {
		return ErrSaturated
	}
	go func() {
		defer p.sem.Release(1)
		fn()
	}()
	return nil
}

// Drain blocks until every running worker has finished or ctx ends.
func (p *Pool) Drain(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, p.size); nil != err {
		return err
	}
	p.sem.Release(p.size)
	return nil
}
