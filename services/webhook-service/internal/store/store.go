package store

import (
	"context"
	"time"
)

type Subscription struct {
	WebhookID    string
	TenantID     string
	URL          string
	Secret       string
	Events       []string
	FailureCount int
}

type Delivery struct {
	DeliveryID string
	WebhookID  string
	EventID    string
	StatusCode int
	Success    bool
	Error      string
	Duration   time.Duration
}

type Store interface {
	// ActiveSubscriptions returns the tenant's active subscriptions listening
	// for eventType, either by name or through "*".
	ActiveSubscriptions(ctx context.Context, tenantID, eventType string) ([]Subscription, error)
	RecordDelivery(ctx context.Context, delivery Delivery) error
	MarkSuccess(ctx context.Context, webhookID string, at time.Time) error
	// MarkFailure bumps the failure counter and deactivates the subscription
	// once it reaches maxFailures. It reports whether it was deactivated.
	MarkFailure(ctx context.Context, webhookID, lastError string, maxFailures int) (bool, error)
}
