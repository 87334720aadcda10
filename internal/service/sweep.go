package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/flexprice/plansync/internal/api/dto"
	"github.com/flexprice/plansync/internal/types"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"
)

// ReconcileAll walks every user linked to a billing customer or holding a paid
// tier, and reconciles them
// one by one. Provider calls are rate limited and run on a bounded pool; a failure
// for one user is counted and never stops the sweep.
func (s *reconcilerService) ReconcileAll(ctx context.Context) (*dto.SweepResponse, error) {
	span, ctx := s.Sentry.StartTransaction(ctx, "billing.sweep")
	if span != nil {
		defer span.Finish()
	}

	cfg := s.Config.Billing.Sweep
	resp := &dto.SweepResponse{
		SweepID:   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SWEEP),
		StartedAt: time.Now().UTC(),
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	var checked, changed, failed atomic.Int64

	s.Logger.Infow("starting billing drift sweep",
		"sweep_id", resp.SweepID,
		"concurrency", cfg.Concurrency,
		"rate_per_second", cfg.RatePerSecond)

	afterID := ""
	for {
		users, err := s.UserRepo.ListReconcilable(ctx, afterID, cfg.BatchSize)
		if err != nil {
			return nil, err
		}
		if len(users) == 0 {
			break
		}

		p := pool.New().WithMaxGoroutines(cfg.Concurrency)
		for _, u := range users {
			userID := u.ID
			p.Go(func() {
				if err := limiter.Wait(ctx); err != nil {
					failed.Add(1)
					s.Metrics.RecordSweepUser("failed")
					return
				}

				checked.Add(1)
				result, err := s.ReconcileOnDemand(ctx, userID, TriggerSweep)
				switch {
				case err != nil:
					failed.Add(1)
					s.Metrics.RecordSweepUser("failed")
				case result.Outcome == types.ReconciliationOutcomeApplied:
					changed.Add(1)
					s.Metrics.RecordSweepUser("changed")
				default:
					s.Metrics.RecordSweepUser("unchanged")
				}
			})
		}
		p.Wait()

		afterID = users[len(users)-1].ID
		if len(users) < cfg.BatchSize || ctx.Err() != nil {
			break
		}
	}

	resp.Checked = checked.Load()
	resp.Changed = changed.Load()
	resp.Failed = failed.Load()
	resp.Duration = time.Since(resp.StartedAt).String()

	s.Logger.Infow("finished billing drift sweep",
		"sweep_id", resp.SweepID,
		"checked", resp.Checked,
		"changed", resp.Changed,
		"failed", resp.Failed,
		"duration", resp.Duration)
	return resp, nil
}
