package utils

import (
	"context"
	"sync"
)

// executor bounds the number of functions in flight.
// Non-positive limits fall back to GetSemaphoreLimit.
type executor struct {
	semaphore chan struct{}
}

func newExecutor(maxConcurrency int) *executor {
	if maxConcurrency <= 0 {
		maxConcurrency = GetSemaphoreLimit()
	}
	return &executor{
		semaphore: make(chan struct{}, maxConcurrency),
	}
}

func (e *executor) acquire(ctx context.Context) bool {
	select {
	case e.semaphore <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *executor) release() {
	<-e.semaphore
}

// ExecuteWithResults runs functions with at most maxConcurrency in flight.
// Result i and error i belong to function i regardless of completion order.
// A function whose slot is never acquired because ctx ended reports ctx.Err().
func ExecuteWithResults[T any](ctx context.Context, maxConcurrency int, functions ...func() (T, error)) ([]T, []error) {
	if len(functions) == 0 {
		return nil, nil
	}

	sem := newExecutor(maxConcurrency)
	results := make([]T, len(functions))
	errs := make([]error, len(functions))
	var wg sync.WaitGroup

	for i, fn := range functions {
		wg.Add(1)
		go func(index int, function func() (T, error)) {
			defer wg.Done()
			defer RecoverWithCallback(func(err error) {
				errs[index] = err
			})

			if !sem.acquire(ctx) {
				errs[index] = ctx.Err()
				return
			}
			defer sem.release()

			results[index], errs[index] = function()
		}(i, fn)
	}

	wg.Wait()
	return results, errs
}

// Worker processes one item of a WorkerPool.
type Worker[T any, R any] func(ctx context.Context, item T) (R, error)

// WorkerPool feeds items to a fixed number of workers.
//
// Workers are started by ProcessItems and exit once the item queue is
// drained or ctx is cancelled. ProcessItems blocks until every worker has
// returned. Items left in the queue after cancellation report ctx.Err().
type WorkerPool[T any, R any] struct {
	numWorkers int
	worker     Worker[T, R]
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool[T any, R any](numWorkers int, worker Worker[T, R]) *WorkerPool[T, R] {
	if numWorkers <= 0 {
		numWorkers = GetSemaphoreLimit()
	}
	return &WorkerPool[T, R]{
		numWorkers: numWorkers,
		worker:     worker,
	}
}

type indexedItem[T any] struct {
	item  T
	index int
}

// ProcessItems runs the worker over items and returns results in input order.
func (wp *WorkerPool[T, R]) ProcessItems(ctx context.Context, items []T) ([]R, []error) {
	if len(items) == 0 {
		return nil, nil
	}

	queue := make(chan indexedItem[T], len(items))
	for i, item := range items {
		queue <- indexedItem[T]{item: item, index: i}
	}
	close(queue)

	results := make([]R, len(items))
	errs := make([]error, len(items))
	done := make([]bool, len(items))
	var wg sync.WaitGroup

	workers := wp.numWorkers
	if workers > len(items) {
		workers = len(items)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case next, ok := <-queue:
					if !ok {
						return
					}
					func() {
						defer RecoverWithCallback(func(err error) {
							errs[next.index] = err
						})
						done[next.index] = true
						results[next.index], errs[next.index] = wp.worker(ctx, next.item)
					}()
				}
			}
		}()
	}

	wg.Wait()

	for i := range items {
		if !done[i] {
			errs[i] = ctx.Err()
		}
	}
	return results, errs
}

// Batch splits items into consecutive slices of at most batchSize elements.
// Non-positive sizes fall back to DefaultBatchSize.
func Batch[T any](items []T, batchSize int) [][]T {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	batches := make([][]T, 0, (len(items)+batchSize-1)/batchSize)
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}
