// Package rxminer wires the Stratum session, the shared RandomX context,
// and the worker pool together, and owns the process's shutdown ordering.
package rxminer

import (
	"context"
	"encoding/hex"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/mppjuro/pjurominer/config"
	"github.com/mppjuro/pjurominer/hashctx"
	"github.com/mppjuro/pjurominer/stratum"
	"github.com/mppjuro/pjurominer/telemetry"
	"github.com/mppjuro/pjurominer/worker"
)

// Coordinator is the top-level orchestrator: on a job from the session it
// updates the HashContext then fans the job out to the pool; on a
// solution from the pool it submits back through the session.
type Coordinator struct {
	cfg     *config.Config
	ctx     *hashctx.Context
	session *stratum.Session
	pool    *worker.Pool
	tracker *telemetry.Tracker
	metrics *telemetry.Metrics

	shuttingDown atomic.Bool
}

// New builds a Coordinator and the session/pool it wires together. metrics
// may be nil if Prometheus exposition is disabled.
func New(cfg *config.Config, metrics *telemetry.Metrics) *Coordinator {
	c := &Coordinator{
		cfg:     cfg,
		ctx:     hashctx.New(),
		tracker: telemetry.NewTracker(),
		metrics: metrics,
	}

	c.pool = worker.NewPool(cfg.Threads, c.ctx, c.onSolution)
	c.session = stratum.NewSession(stratum.Params{
		Host:            cfg.Pool.Host,
		Port:            cfg.Pool.Port,
		Login:           cfg.Pool.Wallet,
		Pass:            "x",
		Agent:           cfg.Agent,
		OnNewJob:        c.onNewJob,
		OnShareAccepted: c.onShareAccepted,
		OnShareRejected: c.onShareRejected,
	})

	return c
}

// Start connects the session and launches the worker pool. Non-blocking.
func (c *Coordinator) Start(ctx context.Context) error {
	c.pool.Start()
	if err := c.session.Connect(ctx); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.SetPoolConnected(true)
	}
	return nil
}

// onNewJob blocks its caller (the session's reader goroutine) for the
// full dataset rebuild when the seed changes, which is intentional
// back-pressure: the job is not fanned out to workers until the dataset
// backing it is ready.
//
// A cache allocation failure on the very first seed is fatal: there is no
// prior cache to fall back to and workers would sit idle forever, so it is
// treated the same as the teacher's other unrecoverable startup errors.
// A failure re-keying a later seed keeps mining against the previous seed.
func (c *Coordinator) onNewJob(job stratum.MiningJob) {
	seedHex := hex.EncodeToString(job.SeedHash)
	hadCache := c.ctx.Handles().Cache != nil

	if _, err := c.ctx.UpdateSeed(seedHex); err != nil {
		if !hadCache {
			logrus.WithError(err).Error("rxminer: initial cache allocation failed")
			panic(err)
		}
		logrus.WithError(err).Error("rxminer: seed update failed, continuing on previous seed")
		return
	}

	c.pool.Dispatch(job)
}

func (c *Coordinator) onSolution(sol stratum.Solution) {
	if err := c.session.Submit(sol); err != nil {
		logrus.WithError(err).Error("rxminer: submit failed")
	}
}

func (c *Coordinator) onShareAccepted() {
	logrus.Info("share accepted")
	if c.metrics != nil {
		c.metrics.RecordShare("accepted")
	}
}

func (c *Coordinator) onShareRejected() {
	if c.metrics != nil {
		c.metrics.RecordShare("rejected")
	}
}

// SampleHashrate records one hashrate sample in H/s, which the caller
// computes from the delta of TotalHashes over its sampling interval.
// Callers (cmd/rxminer) tick this roughly once a minute.
func (c *Coordinator) SampleHashrate(hashesPerSecond float64) {
	c.tracker.AddSample(hashesPerSecond)
	if c.metrics != nil {
		c.metrics.RecordAverages(c.tracker.Averages())
	}
}

// Averages returns the 1m/15m/1h moving averages for the "s"/"S" keypress.
func (c *Coordinator) Averages() (avg1m, avg15m, avg1h float64) {
	return c.tracker.Averages()
}

// TotalHashes returns the pool's aggregate hash counter.
func (c *Coordinator) TotalHashes() uint64 {
	return c.pool.TotalHashes()
}

// Shutdown marks the stop flag exactly once (CompareAndSwap) and performs
// the mining side of the teardown: stop and join the workers, then release
// the dataset and cache. It does not close the Stratum session or stdin;
// the session's reader goroutine, and the key reader when shutdown came
// from a signal, keep running until the process exits.
func (c *Coordinator) Shutdown() {
	if !c.shuttingDown.CompareAndSwap(false, true) {
		return
	}
	c.pool.Stop()
	c.ctx.Close()
}

