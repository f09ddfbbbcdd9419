package concurrent

import (
	"sync"
)

type Job[T any] struct {
	ID      int
	JobItem T
}

type Result[G any] struct {
	ID     int
	Result G
}

type WorkerPool[T any, G any] struct {
	numWorkers int
	jobQueue   chan Job[T]
	results    chan Result[G]
	wg         sync.WaitGroup
}

type JobFunc[T any, G any] func(job T) G

func NewWorkerPool[T any, G any](numWorkers, jobQueueSize int) *WorkerPool[T, G] {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &WorkerPool[T, G]{
		numWorkers: numWorkers,
		jobQueue:   make(chan Job[T], jobQueueSize),
		results:    make(chan Result[G], jobQueueSize),
	}
}

func (wp *WorkerPool[T, G]) worker(jobFunc JobFunc[T, G]) {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		wp.results <- Result[G]{ID: job.ID, Result: jobFunc(job.JobItem)}
	}
}

func (wp *WorkerPool[T, G]) Start(jobFunc JobFunc[T, G]) {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(jobFunc)
	}
}

// Close stops accepting jobs. Workers drain what is queued, then Wait returns.
func (wp *WorkerPool[T, G]) Close() {
	close(wp.jobQueue)
}

func (wp *WorkerPool[T, G]) Wait() {
	wp.wg.Wait()
	close(wp.results)
}

func (wp *WorkerPool[T, G]) AddJob(id int, item T) {
	wp.jobQueue <- Job[T]{ID: id, JobItem: item}
}

func (wp *WorkerPool[T, G]) CollectResults() chan Result[G] {
	return wp.results
}

// Map runs fn over items on numWorkers goroutines and returns the results in input order.
func Map[T any, G any](numWorkers int, items []T, fn JobFunc[T, G]) []G {
	wp := NewWorkerPool[T, G](numWorkers, len(items))
	wp.Start(fn)
	for i, item := range items {
		wp.AddJob(i, item)
	}
	wp.Close()
	wp.Wait()

	out := make([]G, len(items))
	for res := range wp.CollectResults() {
		out[res.ID] = res.Result
	}
	return out
}
