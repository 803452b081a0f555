package workerpool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "xaas-logging.log-shipper/pkg/logging"
)

// Runner is the body of one pool worker. nbr identifies the worker within the pool.
// A runner returns when its work source is exhausted or it hits a terminal error.
type Runner func(nbr int)

type WorkerPool struct {
	ID            string
	name          string
	size          int
	runner        Runner
	awaitShutdown *sync.WaitGroup

	started atomic.Bool
}

func NewWorkerPool(name string, size int, runner Runner) *WorkerPool {
	if size < 1 {
		size = 1
	}
	id := uuid.New()
	return &WorkerPool{
		ID:            id.String(),
		name:          name,
		size:          size,
		runner:        runner,
		awaitShutdown: &sync.WaitGroup{},
	}
}

func (w *WorkerPool) run(nbr int) {
	defer w.awaitShutdown.Done()

	start := time.Now()
	log.Debugf("%v [#%v] worker [%v] started", w.name, nbr, w.ID)
	w.runner(nbr)
	log.Debugf("%v [#%v] worker [%v] exited after %v ms", w.name, nbr, w.ID, time.Since(start).Milliseconds())
}

// Size() returns the number of workers in the pool
func (w *WorkerPool) Size() int {
	return w.size
}

// Start() launches the workers. Calling Start more than once has no effect.
func (w *WorkerPool) Start() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}

	for i := 0; i < w.size; i++ {
		w.awaitShutdown.Add(1)
		go w.run(i)
	}
}

// Wait() blocks until every worker has returned
func (w *WorkerPool) Wait() {
	if !w.started.Load() {
		return
	}
	w.awaitShutdown.Wait()
	log.Debugf("%v done shutting down", w.name)
}
