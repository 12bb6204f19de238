package service

import (
	"context"
	"time"

	"tgdispatch/internal/constants"

	"github.com/sirupsen/logrus"
)

// LedgerPruner removes old delivery-ledger rows.
type LedgerPruner interface {
	PruneDeliveryEntries(ctx context.Context, retentionDays int) (int64, error)
}

// Scheduler periodically prunes ledger rows past the retention window.
// This is whole-table maintenance on top of the per-group cascade.
type Scheduler struct {
	pruner        LedgerPruner
	retentionDays int
	intervalHours int
	logger        *logrus.Logger
	stopCh        chan struct{}
}

func NewScheduler(pruner LedgerPruner, retentionDays, intervalHours int, logger *logrus.Logger) *Scheduler {
	if retentionDays <= 0 {
		retentionDays = constants.DefaultLedgerRetentionDays
	}
	if intervalHours <= 0 {
		intervalHours = constants.CleanupSchedulerIntervalHours
	}
	return &Scheduler{
		pruner:        pruner,
		retentionDays: retentionDays,
		intervalHours: intervalHours,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.intervalHours) * time.Hour)
	defer ticker.Stop()

	s.logger.Info("Starting ledger retention scheduler")

	s.runPrune(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runPrune(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runPrune(ctx context.Context) {
	removed, err := s.pruner.PruneDeliveryEntries(ctx, s.retentionDays)
	if err != nil {
		s.logger.WithError(err).Error("Failed to prune delivery ledger")
		return
	}
	if removed > 0 {
		s.logger.WithFields(logrus.Fields{
			"removed":       removed,
			"retentionDays": s.retentionDays,
		}).Info("Pruned old delivery ledger entries")
	}
}
