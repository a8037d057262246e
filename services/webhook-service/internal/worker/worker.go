package worker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"payaid/internal/outbox"
	"payaid/services/webhook-service/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	HeaderEvent     = "X-PayAid-Event"
	HeaderDelivery  = "X-PayAid-Delivery"
	HeaderTimestamp = "X-PayAid-Timestamp"
	HeaderSignature = "X-PayAid-Signature"

	maxErrorLength = 500
)

type Config struct {
	BatchSize   int
	Concurrency int
	MaxFailures int
	Timeout     time.Duration
	Logger      *zap.Logger
	Client      *http.Client
	Now         func() time.Time
}

type Dispatcher struct {
	events      outbox.Reader
	store       store.Store
	client      *http.Client
	logger      *zap.Logger
	now         func() time.Time
	batchSize   int
	concurrency int
	maxFailures int
}

func New(events outbox.Reader, store store.Store, cfg Config) *Dispatcher {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 10
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		events:      events,
		store:       store,
		client:      client,
		logger:      logger,
		now:         now,
		batchSize:   batch,
		concurrency: concurrency,
		maxFailures: maxFailures,
	}
}

// Sign returns the signature header value for body sent at timestamp.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Run delivers one batch of events and advances the offset past it. Failed
// deliveries are recorded but not retried.
func (d *Dispatcher) Run(ctx context.Context) (int, error) {
	offset, err := d.events.GetOffset(ctx, outbox.ConsumerWebhook)
	if err != nil {
		return 0, fmt.Errorf("load offset: %w", err)
	}
	events, err := d.events.List(ctx, offset, d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	for _, event := range events {
		if err := d.dispatch(ctx, event); err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			d.logger.Warn("dispatch event",
				zap.String("event_id", event.EventID),
				zap.String("event_type", event.Type),
				zap.Error(err))
		}
		offset = offset.Advance(event)
	}

	if err := d.events.UpdateOffset(ctx, outbox.ConsumerWebhook, offset); err != nil {
		return 0, fmt.Errorf("update offset: %w", err)
	}
	return len(events), nil
}

func (d *Dispatcher) dispatch(ctx context.Context, event outbox.Event) error {
	subs, err := d.store.ActiveSubscriptions(ctx, event.TenantID, event.Type)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	// One subscription's store error must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, sub := range subs {
		g.Go(func() error {
			return d.deliver(ctx, sub, event, body)
		})
	}
	return g.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, sub store.Subscription, event outbox.Event, body []byte) error {
	delivery := store.Delivery{
		DeliveryID: uuid.NewString(),
		WebhookID:  sub.WebhookID,
		EventID:    event.EventID,
	}
	started := d.now()
	status, sendErr := d.send(ctx, sub, event, delivery.DeliveryID, started, body)
	delivery.Duration = d.now().Sub(started)
	delivery.StatusCode = status
	delivery.Success = sendErr == nil
	if sendErr != nil {
		delivery.Error = truncate(sendErr.Error())
	}
	if err := d.store.RecordDelivery(ctx, delivery); err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}

	if sendErr == nil {
		return d.store.MarkSuccess(ctx, sub.WebhookID, d.now().UTC())
	}
	deactivated, err := d.store.MarkFailure(ctx, sub.WebhookID, delivery.Error, d.maxFailures)
	if err != nil {
		return fmt.Errorf("mark failure: %w", err)
	}
	fields := []zap.Field{
		zap.String("webhook_id", sub.WebhookID),
		zap.String("tenant_id", sub.TenantID),
		zap.String("event_id", event.EventID),
		zap.Int("status", status),
		zap.Error(sendErr),
	}
	if deactivated {
		d.logger.Warn("webhook deactivated", fields...)
	} else {
		d.logger.Info("webhook delivery failed", fields...)
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, sub store.Subscription, event outbox.Event, deliveryID string, at time.Time, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	timestamp := strconv.FormatInt(at.Unix(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "PayAid-Webhooks/1")
	req.Header.Set(HeaderEvent, event.Type)
	req.Header.Set(HeaderDelivery, deliveryID)
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderSignature, Sign(sub.Secret, timestamp, body))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// truncate cuts text to maxErrorLength bytes on a rune boundary.
func truncate(text string) string {
	if len(text) <= maxErrorLength {
		return text
	}
	cut := maxErrorLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func Start(ctx context.Context, interval time.Duration, d *Dispatcher) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Run(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("webhook dispatcher", zap.Error(err))
			}
		}
	}
}
