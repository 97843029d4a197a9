package service

import (
	"context"
	"testing"
	"time"

	"marketplace-orders/internal/config"
	"marketplace-orders/internal/logger"
	"marketplace-orders/internal/model"
	"marketplace-orders/internal/repository"
	"marketplace-orders/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookJanitor_PrunesPastRetention(t *testing.T) {
	db := testutil.NewDB(t)
	events := repository.NewWebhookEventRepository(db)
	ctx := context.Background()

	require.NoError(t, events.Insert(ctx, &model.WebhookEvent{EventID: "evt_1", EntityID: "pay_1"}))

	janitor := NewWebhookJanitor(events, config.Webhook{Retention: time.Hour}, logger.Discard())

	removed, err := janitor.PruneOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed, "fresh records stay")

	janitor.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	removed, err = janitor.PruneOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestWebhookJanitor_DisabledRetention(t *testing.T) {
	db := testutil.NewDB(t)
	events := repository.NewWebhookEventRepository(db)
	require.NoError(t, events.Insert(context.Background(), &model.WebhookEvent{EventID: "evt_1", EntityID: "pay_1"}))

	janitor := NewWebhookJanitor(events, config.Webhook{}, logger.Discard())
	removed, err := janitor.PruneOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)

	// no interval: Run returns at once
	require.NoError(t, janitor.Run(context.Background()))
}
