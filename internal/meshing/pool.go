package meshing

import (
	"log"
	"sync/atomic"

	"github.com/alitto/pond/v2"
)

// WorkerPool runs mesh generation jobs on a fixed set of goroutines.
// At most workers+queue jobs are accepted at once; Deploy refuses the rest so
// callers can fall back to doing the work themselves or retry later.
type WorkerPool struct {
	pool     pond.Pool
	capacity int64
	inFlight atomic.Int64
	stopped  atomic.Bool
}

// NewWorkerPool creates a new mesh worker pool
func NewWorkerPool(workers, queue int) *WorkerPool {
	workers = max(workers, 1)
	queue = max(queue, 0)
	return &WorkerPool{
		pool:     pond.NewPool(workers),
		capacity: int64(workers + queue),
	}
}

// Deploy schedules job. It returns false, without running job, when the pool
// is saturated or stopped.
func (p *WorkerPool) Deploy(job func()) bool {
	if p.stopped.Load() {
		return false
	}
	for {
		n := p.inFlight.Load()
		if n >= p.capacity {
			return false
		}
		if p.inFlight.CompareAndSwap(n, n+1) {
			break
		}
	}
	p.pool.Submit(func() {
		defer p.inFlight.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				log.Printf("meshing: job panicked: %v", r)
			}
		}()
		job()
	})
	return true
}

// Busy returns the number of accepted jobs that have not finished.
func (p *WorkerPool) Busy() int { return int(p.inFlight.Load()) }

// Capacity returns how many jobs may be in flight at once.
func (p *WorkerPool) Capacity() int { return int(p.capacity) }

// Stop rejects new jobs and waits for accepted ones to finish.
func (p *WorkerPool) Stop() {
	if p.stopped.Swap(true) {
		return
	}
	p.pool.StopAndWait()
}
