package service

import (
	"context"
	"time"

	"windfault/internal/logger"
	"windfault/internal/metrics"
	"windfault/internal/repository"
)

// ReconcilerService sweeps elapsed deferrals and feeds them back into the
// orchestrator with then-current history.
type ReconcilerService struct {
	recs repository.RecommendationRepo
	orch *OrchestratorService
	log  *logger.Logger
}

func NewReconcilerService(recs repository.RecommendationRepo, orch *OrchestratorService, log *logger.Logger) *ReconcilerService {
	return &ReconcilerService{recs: recs, orch: orch, log: log}
}

// Run ticks at the given interval until ctx is canceled. An in-flight sweep
// finishes before the loop exits; no new sweep starts afterwards.
func (s *ReconcilerService) Run(ctx context.Context, tick time.Duration) {
	s.log.Infow("reconciler started", "tick", tick)
	t := time.NewTicker(tick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Infow("reconciler stopped")
			return
		case now := <-t.C:
			n, err := s.ReconcileDue(ctx, now.UTC())
			if err != nil {
				s.log.Errorw("reconcile sweep failed", "err", err)
				continue
			}
			if n > 0 {
				s.log.Infow("reconcile sweep done", "reconciled", n)
			}
		}
	}
}

// ReconcileDue re-evaluates every SNOOZE recommendation whose deferral has
// elapsed at now and stamps it consumed. A failing entry is logged, left
// unstamped for the next tick and never aborts the rest of the sweep.
// Calling it again with the same now is a no-op: stamped entries are no
// longer due.
func (s *ReconcilerService) ReconcileDue(ctx context.Context, now time.Time) (int, error) {
	metrics.ReconcileRuns.Inc()

	due, err := s.recs.ListDue(ctx, now)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, rec := range due {
		if _, err := s.orch.reclassify(ctx, rec, now); err != nil {
			metrics.ReconcileFailures.Inc()
			s.log.Errorw("reconcile entry failed",
				"recommendation", rec.ID, "event", rec.EventID, "err", err)
			continue
		}
		stamped, err := s.recs.MarkReconciled(ctx, rec.ID, now)
		if err != nil {
			metrics.ReconcileFailures.Inc()
			s.log.Errorw("reconcile stamp failed", "recommendation", rec.ID, "err", err)
			continue
		}
		if stamped {
			metrics.ReconcileProcessed.Inc()
			count++
		}
	}
	return count, nil
}
