package community

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	Checked  int
	Repaired int
	Failed   int
}

// Reconcile walks every community and provisions any missing default map,
// finishing creations whose follow-up step failed. Owner membership rows
// are left alone: an owner without a row is a valid state.
//
// A failure on one community is logged and counted; the pass continues.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	communities, err := s.communities.ListAll(ctx)
	if err != nil {
		return report, backend("list communities", err)
	}

	for i := range communities {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		c := &communities[i]
		report.Checked++

		_, created, err := s.EnsureDefaultMap(ctx, c)
		if err != nil {
			report.Failed++
			s.logger.Warn("reconcile: default map repair failed",
				zap.Stringer("community_id", c.ID),
				zap.Error(err),
			)
			continue
		}
		if created {
			report.Repaired++
			s.logger.Info("reconcile: default map repaired", zap.Stringer("community_id", c.ID))
		}
	}

	s.logger.Info("reconcile pass finished",
		zap.Int("checked", report.Checked),
		zap.Int("repaired", report.Repaired),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// RunReconciler runs Reconcile every interval until ctx is done. A failed
// pass is logged and the loop carries on.
func (s *Service) RunReconciler(ctx context.Context, interval time.Duration) error {
	s.logger.Info("reconciler started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reconciler stopped")
			return nil
		case <-s.clock.After(interval):
		}

		if _, err := s.Reconcile(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("reconcile pass failed", zap.Error(err))
		}
	}
}
