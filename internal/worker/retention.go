package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/securequery/agent-api/internal/model"
	"github.com/securequery/agent-api/internal/repository"
	"github.com/securequery/agent-api/internal/service/audit"
)

// RetentionWorker purges audit events past the retention window. Each
// purge run writes its own DATA_DISPOSAL event, so disposal itself stays
// on the record.
type RetentionWorker struct {
	repo          repository.AuditRepository
	auditor       *audit.Service
	retentionDays int
	interval      time.Duration
	logger        zerolog.Logger
}

func NewRetentionWorker(
	repo repository.AuditRepository,
	auditor *audit.Service,
	retentionDays int,
	interval time.Duration,
	logger zerolog.Logger,
) *RetentionWorker {
	return &RetentionWorker{
		repo:          repo,
		auditor:       auditor,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger,
	}
}

func (w *RetentionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info().
		Int("retention_days", w.retentionDays).
		Dur("interval", w.interval).
		Msg("retention worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("retention worker stopped")
			return
		case <-ticker.C:
			if err := w.purge(ctx); err != nil {
				w.logger.Error().Err(err).Msg("audit retention purge failed")
			}
		}
	}
}

func (w *RetentionWorker) purge(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -w.retentionDays)

	purged, err := w.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge expired audit events: %w", err)
	}
	if purged == 0 {
		return nil
	}

	w.logger.Info().
		Int64("purged", purged).
		Time("cutoff", cutoff).
		Msg("purged expired audit events")

	w.auditor.LogAccess(ctx, "system", model.AuditActionDataDisposal, "audit_events",
		model.OutcomeSuccess, map[string]interface{}{
			"purged_count": purged,
			"cutoff":       cutoff.Format(time.RFC3339),
		})
	return nil
}
