package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// WorkerPool bounds the number of background jobs running at once.
// Jobs beyond the limit wait for a slot; a job whose context ends while
// waiting completes with the context error without running.
type WorkerPool struct {
	sem  *semaphore.Weighted
	size int
	wg   sync.WaitGroup
}

// NewWorkerPool creates a pool running at most size jobs concurrently.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Size returns the concurrency limit.
func (p *WorkerPool) Size() int {
	return p.size
}

// Wait blocks until every submitted job has finished.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Future is the pending result of a job submitted to a WorkerPool.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the job finishes or ctx ends. A ctx that ends first
// does not cancel the job.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit runs fn on the pool and returns its future. Panics in fn are
// reported as errors.
func Submit[T any](ctx context.Context, p *WorkerPool, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(f.done)

		if err := p.sem.Acquire(ctx, 1); err != nil {
			f.err = err
			return
		}
		defer p.sem.Release(1)

		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("worker panic: %v", r)
			}
		}()
		f.value, f.err = fn(ctx)
	}()

	return f
}
