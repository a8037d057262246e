package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecer struct {
	sql  string
	args []any
}

func (r *recordingExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql = sql
	r.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestInsertMarshalsPayload(t *testing.T) {
	execer := &recordingExecer{}
	event, err := Insert(context.Background(), execer, "tenant-1", "payroll.cycle.process", map[string]string{"cycle_id": "c-1"})
	require.NoError(t, err)

	assert.Contains(t, execer.sql, "INSERT INTO outbox_events")
	require.Len(t, execer.args, 5)
	assert.Equal(t, "payroll.cycle.process", execer.args[2])
	var payload map[string]string
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, "c-1", payload["cycle_id"])
	assert.NotEmpty(t, event.EventID)
}

func TestOffsetOrdering(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	offset := Offset{LastEventTime: base, LastEventID: "b"}
	assert.True(t, offset.After(Event{EventID: "a", CreatedAt: base.Add(time.Millisecond)}))
	assert.True(t, offset.After(Event{EventID: "c", CreatedAt: base}))
	assert.False(t, offset.After(Event{EventID: "b", CreatedAt: base}))
	assert.False(t, offset.After(Event{EventID: "z", CreatedAt: base.Add(-time.Second)}))

	next := offset.Advance(Event{EventID: "c", CreatedAt: base})
	assert.Equal(t, "c", next.LastEventID)
}

func TestMatchesTopic(t *testing.T) {
	assert.True(t, MatchesTopic(nil, "invoice.issued"))
	assert.True(t, MatchesTopic([]string{"payroll.", "invoice."}, "invoice.issued"))
	assert.False(t, MatchesTopic([]string{"payroll."}, "invoice.issued"))
	assert.True(t, MatchesTopic([]string{"*"}, "tenant.license.granted"))
	assert.True(t, MatchesTopic([]string{"invoice.issued"}, "invoice.issued"))
}
