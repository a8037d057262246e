// Package relay moves outbox events to connected realtime clients.
package relay

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"payaid/internal/outbox"

	"go.uber.org/zap"
)

type Broadcaster interface {
	Broadcast(event outbox.Event) int
}

// Cleaner deletes outbox rows every listed consumer has passed.
type Cleaner interface {
	Cleanup(ctx context.Context, consumers ...string) (int64, error)
}

type Config struct {
	BatchSize int
	Logger    *zap.Logger
	// Consumers whose offsets bound outbox cleanup. Nil disables cleanup.
	CleanupConsumers []string
}

type Relay struct {
	events    outbox.Reader
	cleaner   Cleaner
	hub       Broadcaster
	logger    *zap.Logger
	batchSize int
	consumers []string
	running   atomic.Bool
}

func New(events outbox.Reader, cleaner Cleaner, hub Broadcaster, cfg Config) *Relay {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		events:    events,
		cleaner:   cleaner,
		hub:       hub,
		logger:    logger,
		batchSize: batch,
		consumers: cfg.CleanupConsumers,
	}
}

// Run broadcasts one batch and advances the realtime offset. A tick that
// fires while the previous one is still running is skipped.
func (r *Relay) Run(ctx context.Context) (int, error) {
	if !r.running.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer r.running.Store(false)

	offset, err := r.events.GetOffset(ctx, outbox.ConsumerRealtime)
	if err != nil {
		return 0, fmt.Errorf("load offset: %w", err)
	}
	events, err := r.events.List(ctx, offset, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}
	for _, event := range events {
		r.hub.Broadcast(event)
		offset = offset.Advance(event)
	}
	if err := r.events.UpdateOffset(ctx, outbox.ConsumerRealtime, offset); err != nil {
		return 0, fmt.Errorf("update offset: %w", err)
	}

	if r.cleaner != nil && len(r.consumers) > 0 {
		removed, err := r.cleaner.Cleanup(ctx, r.consumers...)
		if err != nil {
			r.logger.Warn("outbox cleanup", zap.Error(err))
		} else if removed > 0 {
			r.logger.Debug("outbox cleanup", zap.Int64("removed", removed))
		}
	}
	return len(events), nil
}

func Start(ctx context.Context, interval time.Duration, r *Relay) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("realtime relay", zap.Error(err))
			}
		}
	}
}
