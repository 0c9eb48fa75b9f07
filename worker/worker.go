// Package worker implements the per-thread RandomX hashing loop and the
// pool that fans jobs out to it.
package worker

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mppjuro/pjurominer/hashctx"
	"github.com/mppjuro/pjurominer/randomx"
	"github.com/mppjuro/pjurominer/stratum"
)

const (
	noJobSleep       = 100 * time.Millisecond
	seedUnreadySleep = 500 * time.Millisecond
	stopCheckPeriod  = 1024
)

// SolutionFunc receives a qualifying hash.
type SolutionFunc func(stratum.Solution)

// jobSlot is a single-item mailbox: "latest wins", never queues.
type jobSlot struct {
	mu  sync.Mutex
	job *stratum.MiningJob
}

func (s *jobSlot) set(job stratum.MiningJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job = &job
}

func (s *jobSlot) take() *stratum.MiningJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.job
	s.job = nil
	return job
}

// Worker owns exactly one VM bound to the shared HashContext's dataset. It
// is never safe to share a Worker's VM with another goroutine.
type Worker struct {
	id       int
	ctx      *hashctx.Context
	onSolve  SolutionFunc
	flags    randomx.Flag
	hashes   atomic.Uint64
	stopping atomic.Bool
	done     chan struct{}

	slot jobSlot
}

// New constructs a Worker. Run must be called to start hashing.
func New(id int, ctx *hashctx.Context, onSolve SolutionFunc) *Worker {
	return &Worker{
		id:      id,
		ctx:     ctx,
		onSolve: onSolve,
		flags:   randomx.FastFlags(),
		done:    make(chan struct{}),
	}
}

// SetJob replaces the pending job slot; a newer job displaces any older
// one not yet picked up.
func (w *Worker) SetJob(job stratum.MiningJob) {
	w.slot.set(job)
}

// HashCount is a monotone counter of hashes computed by this worker.
func (w *Worker) HashCount() uint64 {
	return w.hashes.Load()
}

// Stop requests the worker's loop to exit. Non-blocking and idempotent.
func (w *Worker) Stop() {
	w.stopping.Store(true)
}

// Run is the worker's main loop. It returns once stopped. Callers
// typically run it in its own goroutine and join via Done.
func (w *Worker) Run() {
	defer close(w.done)

	//nolint:gosec // spreading initial nonce across workers, not a security use
	nonce := uint32((rand.Intn(10000)) * w.id)

	var activeJob *stratum.MiningJob
	var vm *randomx.VM
	var vmSeed string

	defer func() {
		if vm != nil {
			vm.Destroy()
		}
	}()

	iterations := 0
	for !w.stopping.Load() {
		if job := w.slot.take(); job != nil {
			activeJob = job
			nonce = 0
		}

		if activeJob == nil {
			time.Sleep(noJobSleep)
			continue
		}

		seedHex := fmt.Sprintf("%x", activeJob.SeedHash)
		if seedHex != vmSeed {
			handles := w.ctx.Handles()
			if handles.Dataset == nil || handles.Seed != seedHex {
				// Dataset not ready for this job's seed yet: drop the job
				// locally rather than hash against the wrong one.
				activeJob = nil
				time.Sleep(seedUnreadySleep)
				continue
			}

			if vm != nil {
				vm.Destroy()
				vm = nil
			}

			newVM, err := randomx.NewVM(w.flags, handles.Cache, handles.Dataset)
			if err != nil {
				logrus.WithFields(logrus.Fields{"worker": w.id, "error": err}).
					Error("worker: vm creation failed, parking until next job")
				activeJob = nil
				time.Sleep(seedUnreadySleep)
				continue
			}
			vm = newVM
			vmSeed = seedHex
		}

		input := stratum.InsertNonce(activeJob.Blob, nonce)
		hash := vm.CalculateHash(input)
		w.hashes.Add(1)

		if stratum.CheckTarget(hash, activeJob.Target) {
			w.onSolve(stratum.Solution{
				JobID:      activeJob.JobID,
				Nonce:      nonce,
				ResultHash: hash,
			})
			// Await a fresh job rather than resubmitting on the same nonce.
			activeJob = nil
		}

		nonce++
		iterations++
		if iterations%stopCheckPeriod == 0 && w.stopping.Load() {
			break
		}
	}
}

// Done is closed once Run has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}
