// Package hashctx owns the shared RandomX cache and dataset, keyed by the
// pool's current seed, and serialises seed transitions behind a single
// mutex so workers never observe a half-built dataset.
package hashctx

import (
	"encoding/hex"
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mppjuro/pjurominer/randomx"
)

const seedLen = 32

// Handles is a read-only snapshot of the current cache/dataset/seed triple.
// Dataset is nil before the first successful rebuild and after a failed
// dataset allocation. Handles blocks while a rebuild is in progress, so it
// never returns a half-built dataset.
type Handles struct {
	Cache   *randomx.Cache
	Dataset *randomx.Dataset
	Seed    string
}

// Context is the process-wide RandomX cache/dataset owner. The zero value
// is not usable; construct with New.
type Context struct {
	flags randomx.Flag

	mu      sync.RWMutex
	cache   *randomx.Cache
	dataset *randomx.Dataset
	seedHex string
}

// New allocates nothing yet; the first UpdateSeed call performs the
// initial (fatal-on-failure) cache allocation.
func New() *Context {
	return &Context{flags: randomx.FastFlags()}
}

// UpdateSeed ensures the context is keyed to seedHex, rebuilding the cache
// and dataset if it differs from the current seed. It returns false
// immediately (no work done) if seedHex already matches. It holds an
// exclusive lock for the entire rebuild, which may take a few seconds.
func (c *Context) UpdateSeed(seedHex string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seedHex == c.seedHex {
		return false, nil
	}

	seed, err := hex.DecodeString(seedHex)
	if err != nil || len(seed) != seedLen {
		return false, fmt.Errorf("hashctx: seed must be %d bytes hex, got %q", seedLen, seedHex)
	}

	logrus.WithField("seed", seedHex).Info("hashctx: new seed, rebuilding cache")

	cache, err := randomx.NewCache(c.flags, seed)
	if err != nil {
		return false, fmt.Errorf("hashctx: cache allocation failed: %w", err)
	}

	if c.dataset != nil {
		c.dataset.Release()
		c.dataset = nil
	}

	dataset, err := randomx.NewDataset(c.flags)
	if err != nil {
		// Recoverable: old cache/seed remain visible, dataset stays absent.
		cache.Release()
		logrus.WithError(err).Warn("hashctx: dataset allocation failed, workers will idle")
		return false, nil
	}

	if c.cache != nil {
		c.cache.Release()
	}
	c.cache = cache

	logrus.Info("hashctx: initialising dataset")
	initDataset(dataset, cache)
	logrus.Info("hashctx: dataset ready")

	c.dataset = dataset
	c.seedHex = seedHex

	return true, nil
}

// Handles returns a read-only snapshot of the current triple.
func (c *Context) Handles() Handles {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Handles{Cache: c.cache, Dataset: c.dataset, Seed: c.seedHex}
}

// Close releases the dataset then the cache, in that order.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dataset != nil {
		c.dataset.Release()
		c.dataset = nil
	}
	if c.cache != nil {
		c.cache.Release()
		c.cache = nil
	}
}

// initDataset splits the full item range across NumCPU goroutines and lets
// the library fill each disjoint subrange in parallel.
func initDataset(dataset *randomx.Dataset, cache *randomx.Cache) {
	total := randomx.DatasetItemCount()
	workers := uint64(runtime.NumCPU())
	if workers < 1 {
		workers = 1
	}
	if workers > total {
		workers = total
	}

	perWorker := total / workers
	remainder := total % workers

	var wg sync.WaitGroup
	var start uint64
	for i := uint64(0); i < workers; i++ {
		count := perWorker
		if i < remainder {
			count++
		}
		if count == 0 {
			continue
		}

		wg.Add(1)
		go func(start, count uint64) {
			defer wg.Done()
			dataset.InitRange(cache, start, count)
		}(start, count)

		start += count
	}
	wg.Wait()
}
