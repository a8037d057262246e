package postgres

import (
	"context"
	"time"

	"payaid/services/webhook-service/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) ActiveSubscriptions(ctx context.Context, tenantID, eventType string) ([]store.Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT webhook_id, tenant_id, url, secret, events, failure_count
		FROM webhook_subscriptions
		WHERE tenant_id = $1
		  AND active
		  AND ($2 = ANY(events) OR '*' = ANY(events))
		ORDER BY created_at ASC
	`, tenantID, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []store.Subscription
	for rows.Next() {
		var sub store.Subscription
		if err := rows.Scan(&sub.WebhookID, &sub.TenantID, &sub.URL, &sub.Secret, &sub.Events, &sub.FailureCount); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

func (s *Store) RecordDelivery(ctx context.Context, delivery store.Delivery) error {
	var status interface{}
	if delivery.StatusCode > 0 {
		status = delivery.StatusCode
	}
	var errText interface{}
	if delivery.Error != "" {
		errText = delivery.Error
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_deliveries (delivery_id, webhook_id, event_id, status_code, success, error, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, delivery.DeliveryID, delivery.WebhookID, delivery.EventID, status, delivery.Success, errText, delivery.Duration.Milliseconds())
	return err
}

func (s *Store) MarkSuccess(ctx context.Context, webhookID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE webhook_subscriptions
		SET failure_count = 0, last_error = NULL, last_delivery_at = $2
		WHERE webhook_id = $1
	`, webhookID, at)
	return err
}

func (s *Store) MarkFailure(ctx context.Context, webhookID, lastError string, maxFailures int) (bool, error) {
	var active bool
	row := s.pool.QueryRow(ctx, `
		UPDATE webhook_subscriptions
		SET failure_count = failure_count + 1,
		    last_error = $2,
		    active = CASE WHEN $3 > 0 AND failure_count + 1 >= $3 THEN FALSE ELSE active END
		WHERE webhook_id = $1
		RETURNING active
	`, webhookID, lastError, maxFailures)
	if err := row.Scan(&active); err != nil {
		return false, err
	}
	return !active, nil
}
