package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const lockName = "payment_reconciler"

type Report struct {
	Skipped  bool `json:"skipped"`
	Verified int  `json:"verified"`
	Failed   int  `json:"failed"`
}

// RunOnce verifies unverified gateway payments and sweeps stale ones. It does nothing when
// another instance holds the lock.
func (r *Reconciler) RunOnce(ctx context.Context) (*Report, error) {
	ok, err := r.store.AcquireLock(ctx, lockName, r.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire reconciler lock: %w", err)
	}
	if !ok {
		r.log.Info().Msg("reconciler already running elsewhere, skipping")
		return &Report{Skipped: true}, nil
	}
	defer func() {
		if err := r.store.ReleaseLock(context.WithoutCancel(ctx), lockName); err != nil {
			r.log.Warn().Err(err).Msg("failed to release reconciler lock")
		}
	}()

	rep := &Report{}
	if rep.Verified, err = r.VerifyUnverified(ctx); err != nil {
		// the sweep does not depend on the unverified list
		r.log.Warn().Err(err).Msg("unverified payments check failed")
	}
	if rep.Failed, err = r.SweepStale(ctx); err != nil {
		return rep, fmt.Errorf("failed to sweep stale payments: %w", err)
	}
	r.log.Info().Int("verified", rep.Verified).Int("failed", rep.Failed).Msg("reconciler run finished")
	return rep, nil
}

// Scheduler calls RunOnce at start and then every Interval until stopped.
type Scheduler struct {
	rec    *Reconciler
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(rec *Reconciler) *Scheduler {
	return &Scheduler{rec: rec}
}

func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.rec.cfg.Interval)
	defer ticker.Stop()

	s.rec.log.Info().Dur("interval", s.rec.cfg.Interval).Msg("reconciler scheduler started")
	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.rec.log.Info().Msg("reconciler scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.rec.RunOnce(ctx); err != nil {
		s.rec.log.Error().Err(err).Msg("reconciler run failed")
	}
}

// Stop cancels the loop and waits for a running pass to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
