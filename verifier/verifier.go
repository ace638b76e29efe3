// Package verifier runs background outcome verification for the memory
// engine.
//
// A Worker periodically enumerates records that have no recorded result
// yet, asks a caller-supplied VerifyFunc to judge each one (typically by
// checking what the market actually did after the recommendation), and
// writes confirmed outcomes back through the memory facade. Each cycle's
// failure is logged and absorbed; the worker simply tries again on the
// next tick. No retry or backoff beyond that.
package verifier

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tradekit/agentmemory/memory"
)

// DefaultInterval is the cycle interval used when none is configured.
const DefaultInterval = 24 * time.Hour

// minInterval floors the configured interval so a misconfigured worker
// cannot spin.
const minInterval = time.Minute

// Outcome is a verified result for a past recommendation.
type Outcome struct {
	Result  string
	Returns *float64
}

// VerifyFunc judges a single unverified record. Returning a nil Outcome
// (with nil error) means the case cannot be verified yet and is skipped
// until a later cycle.
type VerifyFunc func(ctx context.Context, rec *memory.Record) (*Outcome, error)

// Source supplies unverified records. sqlite.RecordStore satisfies it.
type Source interface {
	Unverified(ctx context.Context, limit int) ([]*memory.Record, error)
}

// Recorder accepts verified outcomes. memory.Manager satisfies it.
type Recorder interface {
	RecordOutcome(ctx context.Context, id int64, result string, returns *float64)
}

// Config holds worker configuration.
type Config struct {
	// Interval between verification cycles. Default: 24h, floored at 1m.
	Interval time.Duration

	// BatchLimit caps how many unverified records one cycle examines.
	// Default: 100.
	BatchLimit int
}

// Worker is the background verification loop.
type Worker struct {
	source   Source
	recorder Recorder
	verify   VerifyFunc
	interval time.Duration
	batch    int

	mu      sync.Mutex
	stop    chan struct{}
	stopped sync.WaitGroup
}

// New creates a Worker. A nil config means defaults.
func New(source Source, recorder Recorder, verify VerifyFunc, cfg *Config) *Worker {
	interval := DefaultInterval
	batch := 100
	if cfg != nil {
		if cfg.Interval > 0 {
			interval = cfg.Interval
		}
		if cfg.BatchLimit > 0 {
			batch = cfg.BatchLimit
		}
	}
	if interval < minInterval {
		interval = minInterval
	}
	return &Worker{
		source:   source,
		recorder: recorder,
		verify:   verify,
		interval: interval,
		batch:    batch,
	}
}

// Start launches the background loop: one cycle immediately, then one per
// interval until Stop is called or ctx is cancelled. Calling Start on a
// running worker is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		return
	}
	w.stop = make(chan struct{})
	w.stopped.Add(1)

	go func(stop chan struct{}) {
		defer w.stopped.Done()
		log.Printf("[VERIFIER] Worker started (interval=%s)", w.interval)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			if err := w.RunCycle(ctx); err != nil {
				log.Printf("[VERIFIER] Cycle failed: %v", err)
			}
			select {
			case <-ticker.C:
			case <-stop:
				log.Printf("[VERIFIER] Worker stopped")
				return
			case <-ctx.Done():
				log.Printf("[VERIFIER] Worker stopped: %v", ctx.Err())
				return
			}
		}
	}(w.stop)
}

// Stop halts the loop and waits for the background goroutine to exit.
// Safe to call more than once.
func (w *Worker) Stop() {
	w.mu.Lock()
	stop := w.stop
	w.stop = nil
	w.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	w.stopped.Wait()
}

// RunCycle performs one verification pass. Per-record verification
// failures are logged and do not abort the rest of the batch; only a
// failure to enumerate candidates is returned.
func (w *Worker) RunCycle(ctx context.Context) error {
	records, err := w.source.Unverified(ctx, w.batch)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	verified := 0
	for _, rec := range records {
		outcome, err := w.verify(ctx, rec)
		if err != nil {
			log.Printf("[VERIFIER] Verify failed for id=%d: %v", rec.ID, err)
			continue
		}
		if outcome == nil {
			continue // not verifiable yet
		}
		w.recorder.RecordOutcome(ctx, rec.ID, outcome.Result, outcome.Returns)
		verified++
	}

	log.Printf("[VERIFIER] Cycle done: %d examined, %d verified", len(records), verified)
	return nil
}
