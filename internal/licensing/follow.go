package licensing

import (
	"context"
	"time"

	"payaid/internal/outbox"

	"go.uber.org/zap"
)

const followBatch = 200

// stateEvents are the platform event prefixes that change cached tenant state.
var stateEvents = []string{"tenant.license.", "tenant.status.changed"}

// EventLister is the part of outbox.Reader the gate polls.
type EventLister interface {
	List(ctx context.Context, offset outbox.Offset, limit int) ([]outbox.Event, error)
}

// Follow polls events and drops the cached state of every tenant whose
// licenses or status changed. It keeps its position in memory and starts one
// TTL in the past, since older changes cannot be cached yet. It returns when
// ctx is done.
func (g *Gate) Follow(ctx context.Context, events EventLister, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	offset := outbox.Offset{LastEventTime: g.now().Add(-g.ttl)}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next, err := g.invalidateChanged(ctx, events, offset)
			if err != nil && ctx.Err() == nil {
				g.logger.Warn("license event poll", zap.Error(err))
			}
			offset = next
		}
	}
}

// invalidateChanged applies every event after offset and returns the new
// position. On error it returns the position reached so far.
func (g *Gate) invalidateChanged(ctx context.Context, events EventLister, offset outbox.Offset) (outbox.Offset, error) {
	for {
		batch, err := events.List(ctx, offset, followBatch)
		if err != nil {
			return offset, err
		}
		for _, event := range batch {
			if outbox.MatchesTopic(stateEvents, event.Type) {
				g.Invalidate(event.TenantID)
			}
			offset = offset.Advance(event)
		}
		if len(batch) < followBatch {
			return offset, nil
		}
	}
}
