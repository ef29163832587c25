package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/repositories"
)

// ReconcileService fails discovery sessions that stopped making progress,
// typically after a crash mid-run. Sessions never sit in processing forever.
type ReconcileService struct {
	sessions  repositories.SessionRepository
	threshold time.Duration
	interval  time.Duration
	logger    *zap.Logger
}

// NewReconcileService creates a reconciler. threshold is how long a
// processing session may go without a progress update before it is failed.
func NewReconcileService(sessions repositories.SessionRepository, threshold time.Duration, logger *zap.Logger) *ReconcileService {
	if threshold <= 0 {
		threshold = 30 * time.Minute
	}
	return &ReconcileService{
		sessions:  sessions,
		threshold: threshold,
		interval:  threshold / 2,
		logger:    logger.Named("reconcile"),
	}
}

// Run sweeps periodically until the context is cancelled. Call in a
// goroutine at startup.
func (s *ReconcileService) Run(ctx context.Context) {
	// Sweep once immediately so sessions orphaned by a crash before this
	// start are cleaned up without waiting a full interval.
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep fails all stale processing sessions. Returns the number failed.
func (s *ReconcileService) Sweep(ctx context.Context) int {
	stale, err := s.sessions.ListStale(ctx, s.threshold)
	if err != nil {
		s.logger.Error("Failed to list stale sessions", zap.Error(err))
		return 0
	}

	failed := 0
	for _, session := range stale {
		err := s.sessions.Fail(ctx, session.ID,
			"session abandoned: no progress within reconciliation window")
		if err != nil {
			s.logger.Warn("Failed to reconcile stale session",
				zap.String("session_id", session.ID.String()), zap.Error(err))
			continue
		}
		failed++
		s.logger.Info("Reconciled stale session",
			zap.String("session_id", session.ID.String()),
			zap.String("data_source_id", session.DataSourceID),
			zap.Time("started_at", session.StartedAt))
	}
	return failed
}
