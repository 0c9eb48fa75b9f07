package worker

import (
	"runtime"
	"sync"

	"github.com/mppjuro/pjurominer/hashctx"
	"github.com/mppjuro/pjurominer/stratum"
)

// Pool owns N workers, fans jobs out to all of them, and aggregates their
// hash counters.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool spawns count workers (minimum 1; 0 or negative defaults to
// runtime.NumCPU()) sharing ctx, each emitting solutions via onSolve.
func NewPool(count int, ctx *hashctx.Context, onSolve SolutionFunc) *Pool {
	if count <= 0 {
		count = runtime.NumCPU()
	}
	if count < 1 {
		count = 1
	}

	p := &Pool{workers: make([]*Worker, count)}
	for i := 0; i < count; i++ {
		p.workers[i] = New(i, ctx, onSolve)
	}
	return p
}

// Start launches each worker's main loop in its own goroutine.
func (p *Pool) Start() {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run()
		}(w)
	}
}

// Dispatch fans job out to every worker.
func (p *Pool) Dispatch(job stratum.MiningJob) {
	for _, w := range p.workers {
		w.SetJob(job)
	}
}

// TotalHashes sums the current hash counters of all workers.
func (p *Pool) TotalHashes() uint64 {
	var total uint64
	for _, w := range p.workers {
		total += w.HashCount()
	}
	return total
}

// Stop signals every worker to stop and waits for all of them to return.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.Stop()
	}
	p.wg.Wait()
}
