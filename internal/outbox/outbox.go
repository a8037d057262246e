package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ConsumerWebhook  = "webhook"
	ConsumerRealtime = "realtime"
)

type Event struct {
	EventID   string          `json:"event_id"`
	TenantID  string          `json:"tenant_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Offset is a consumer position. Events are ordered by (created_at, event_id).
type Offset struct {
	LastEventTime time.Time
	LastEventID   string
}

// After reports whether event sorts strictly after the offset.
func (o Offset) After(event Event) bool {
	if event.CreatedAt.After(o.LastEventTime) {
		return true
	}
	return event.CreatedAt.Equal(o.LastEventTime) && event.EventID > o.LastEventID
}

func (o Offset) Advance(event Event) Offset {
	return Offset{LastEventTime: event.CreatedAt, LastEventID: event.EventID}
}

type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Insert writes an event inside the caller's transaction so it commits
// together with the state change it describes.
func Insert(ctx context.Context, tx Execer, tenantID, eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	event := Event{
		EventID:   uuid.NewString(),
		TenantID:  tenantID,
		Type:      eventType,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, tenant_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, event.EventID, event.TenantID, event.Type, []byte(event.Payload), event.CreatedAt)
	if err != nil {
		return Event{}, fmt.Errorf("insert outbox event: %w", err)
	}
	return event, nil
}

// MatchesTopic reports whether eventType starts with one of topics. No topics
// matches everything.
func MatchesTopic(topics []string, eventType string) bool {
	if len(topics) == 0 {
		return true
	}
	for _, topic := range topics {
		if topic == "*" || strings.HasPrefix(eventType, topic) {
			return true
		}
	}
	return false
}

type Reader interface {
	List(ctx context.Context, offset Offset, limit int) ([]Event, error)
	GetOffset(ctx context.Context, consumer string) (Offset, error)
	UpdateOffset(ctx context.Context, consumer string, offset Offset) error
}

type PostgresReader struct {
	pool *pgxpool.Pool
}

func NewPostgresReader(pool *pgxpool.Pool) *PostgresReader {
	return &PostgresReader{pool: pool}
}

func (s *PostgresReader) List(ctx context.Context, offset Offset, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	lastID := offset.LastEventID
	if lastID == "" {
		lastID = uuid.Nil.String()
	}
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, tenant_id, type, payload_json, created_at
		FROM outbox_events
		WHERE (created_at, event_id) > ($1, $2::uuid)
		ORDER BY created_at ASC, event_id ASC
		LIMIT $3
	`, offset.LastEventTime, lastID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var payload []byte
		if err := rows.Scan(&event.EventID, &event.TenantID, &event.Type, &payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.Payload = payload
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *PostgresReader) GetOffset(ctx context.Context, consumer string) (Offset, error) {
	var offset Offset
	var lastID *string
	row := s.pool.QueryRow(ctx, `
		SELECT last_event_time, last_event_id::text
		FROM consumer_offsets
		WHERE consumer = $1
	`, consumer)
	if err := row.Scan(&offset.LastEventTime, &lastID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Offset{}, nil
		}
		return Offset{}, err
	}
	if lastID != nil {
		offset.LastEventID = *lastID
	}
	return offset, nil
}

func (s *PostgresReader) UpdateOffset(ctx context.Context, consumer string, offset Offset) error {
	var lastID interface{}
	if offset.LastEventID != "" {
		lastID = offset.LastEventID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO consumer_offsets (consumer, last_event_time, last_event_id, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (consumer) DO UPDATE
		SET last_event_time = EXCLUDED.last_event_time,
		    last_event_id = EXCLUDED.last_event_id,
		    updated_at = NOW()
	`, consumer, offset.LastEventTime, lastID)
	return err
}

// Cleanup deletes events every listed consumer has already passed.
func (s *PostgresReader) Cleanup(ctx context.Context, consumers ...string) (int64, error) {
	if len(consumers) == 0 {
		return 0, nil
	}
	oldest := time.Time{}
	for i, consumer := range consumers {
		offset, err := s.GetOffset(ctx, consumer)
		if err != nil {
			return 0, err
		}
		if offset.LastEventTime.IsZero() {
			return 0, nil
		}
		if i == 0 || offset.LastEventTime.Before(oldest) {
			oldest = offset.LastEventTime
		}
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM outbox_events WHERE created_at < $1`, oldest)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
