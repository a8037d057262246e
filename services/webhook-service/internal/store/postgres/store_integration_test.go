package postgres

import (
	"context"
	"testing"
	"time"

	"payaid/internal/platform/pgtest"
	"payaid/services/webhook-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSubscription(t *testing.T, pool *pgxpool.Pool, tenantID string, events []string) string {
	t.Helper()
	webhookID := uuid.NewString()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO webhook_subscriptions (webhook_id, tenant_id, url, secret, events)
		VALUES ($1, $2, 'https://example.test/hook', 'secret', $3)
	`, webhookID, tenantID, events)
	require.NoError(t, err)
	return webhookID
}

func TestActiveSubscriptionsMatchEventType(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.NewPool(t)
	s := NewStore(pool)
	tenantID := pgtest.SeedTenant(t, pool, "29")
	otherTenant := pgtest.SeedTenant(t, pool, "27")

	exact := seedSubscription(t, pool, tenantID, []string{"invoice.issued"})
	wildcard := seedSubscription(t, pool, tenantID, []string{"*"})
	seedSubscription(t, pool, tenantID, []string{"payroll.finalized"})
	seedSubscription(t, pool, otherTenant, []string{"*"})

	subs, err := s.ActiveSubscriptions(ctx, tenantID, "invoice.issued")
	require.NoError(t, err)
	var ids []string
	for _, sub := range subs {
		ids = append(ids, sub.WebhookID)
	}
	assert.ElementsMatch(t, []string{exact, wildcard}, ids)
}

func TestFailureCountingAndDeactivation(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.NewPool(t)
	s := NewStore(pool)
	tenantID := pgtest.SeedTenant(t, pool, "29")
	webhookID := seedSubscription(t, pool, tenantID, []string{"*"})

	require.NoError(t, s.RecordDelivery(ctx, store.Delivery{
		DeliveryID: uuid.NewString(),
		WebhookID:  webhookID,
		EventID:    uuid.NewString(),
		Error:      "endpoint returned 500",
		StatusCode: 500,
		Duration:   120 * time.Millisecond,
	}))

	deactivated, err := s.MarkFailure(ctx, webhookID, "endpoint returned 500", 2)
	require.NoError(t, err)
	assert.False(t, deactivated)

	require.NoError(t, s.MarkSuccess(ctx, webhookID, time.Now().UTC()))
	var failures int
	require.NoError(t, pool.QueryRow(ctx, `SELECT failure_count FROM webhook_subscriptions WHERE webhook_id = $1`, webhookID).Scan(&failures))
	assert.Zero(t, failures)

	_, err = s.MarkFailure(ctx, webhookID, "timeout", 2)
	require.NoError(t, err)
	deactivated, err = s.MarkFailure(ctx, webhookID, "timeout", 2)
	require.NoError(t, err)
	assert.True(t, deactivated)

	subs, err := s.ActiveSubscriptions(ctx, tenantID, "invoice.issued")
	require.NoError(t, err)
	assert.Empty(t, subs)

	var deliveries int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM webhook_deliveries WHERE webhook_id = $1`, webhookID).Scan(&deliveries))
	assert.Equal(t, 1, deliveries)
}
