package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"marketplace-orders/internal/config"
	"marketplace-orders/internal/repository"
)

// WebhookJanitor drops replay records older than the retention window. The
// gateway stops retrying long before that, so old pairs cannot be replayed.
type WebhookJanitor struct {
	events    repository.WebhookEventRepository
	retention time.Duration
	interval  time.Duration
	log       *slog.Logger
	now       func() time.Time
}

func NewWebhookJanitor(events repository.WebhookEventRepository, cfg config.Webhook, log *slog.Logger) *WebhookJanitor {
	return &WebhookJanitor{
		events:    events,
		retention: cfg.Retention,
		interval:  cfg.PruneInterval,
		log:       log,
		now:       time.Now,
	}
}

func (j *WebhookJanitor) PruneOnce(ctx context.Context) (int64, error) {
	if j.retention <= 0 {
		return 0, nil
	}

	cutoff := j.now().Add(-j.retention)
	removed, err := j.events.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune webhook events: %w", err)
	}

	if removed > 0 {
		j.log.InfoContext(ctx, "pruned webhook events",
			slog.Int64("removed", removed), slog.Time("cutoff", cutoff))
	}
	return removed, nil
}

// Run prunes on every tick until ctx is done.
func (j *WebhookJanitor) Run(ctx context.Context) error {
	if j.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := j.PruneOnce(ctx); err != nil {
				j.log.ErrorContext(ctx, "webhook prune failed", slog.Any("err", err))
			}
		}
	}
}
