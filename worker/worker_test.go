package worker

import (
	"encoding/hex"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mppjuro/pjurominer/hashctx"
	"github.com/mppjuro/pjurominer/stratum"
)

func newReadyContext(t *testing.T) *hashctx.Context {
	t.Helper()
	ctx := hashctx.New()
	seed := strings.Repeat("42", 32)
	if _, err := ctx.UpdateSeed(seed); err != nil {
		t.Fatalf("UpdateSeed failed: %v", err)
	}
	return ctx
}

// TestWorker_hashCountMonotonic is property 6: hashCount is non-decreasing
// and strictly increases at least once after a job is dispatched.
func TestWorker_hashCountMonotonic(t *testing.T) {
	ctx := newReadyContext(t)
	defer ctx.Close()

	var mu sync.Mutex
	var solutions []stratum.Solution

	w := New(0, ctx, func(sol stratum.Solution) {
		mu.Lock()
		solutions = append(solutions, sol)
		mu.Unlock()
	})

	go w.Run()
	defer func() {
		w.Stop()
		<-w.Done()
	}()

	blob := make([]byte, 76)
	target, err := stratum.DecodeTarget(strings.Repeat("ff", 32))
	if err != nil {
		t.Fatal(err)
	}

	w.SetJob(stratum.MiningJob{
		JobID:    "J1",
		Blob:     blob,
		Target:   target,
		SeedHash: mustDecodeSeed(t, strings.Repeat("42", 32)),
	})

	deadline := time.After(5 * time.Second)
	var last uint64
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for hash counter to advance")
		default:
		}
		last = w.HashCount()
		if last > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(50 * time.Millisecond)
	if w.HashCount() < last {
		t.Errorf("HashCount went backwards: %d then %d", last, w.HashCount())
	}

	mu.Lock()
	n := len(solutions)
	mu.Unlock()
	if n == 0 {
		t.Error("expected at least one solution against an all-ones target")
	}
}

func mustDecodeSeed(t *testing.T, hexStr string) []byte {
	t.Helper()
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		t.Fatalf("bad hex fixture %q: %v", hexStr, err)
	}
	return b
}

func TestJobSlot_latestWins(t *testing.T) {
	var slot jobSlot

	slot.set(stratum.MiningJob{JobID: "first"})
	slot.set(stratum.MiningJob{JobID: "second"})

	job := slot.take()
	if job == nil || job.JobID != "second" {
		t.Errorf("expected latest job to win, got %+v", job)
	}

	if slot.take() != nil {
		t.Error("slot should be empty after take()")
	}
}
