package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"payaid/internal/platform/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	objects map[string][]byte
	err     error
}

func (m *memoryStore) Put(_ context.Context, bucket, key, _ string, body []byte) error {
	if m.err != nil {
		return m.err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[bucket+"/"+key] = body
	return nil
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "tenants/t1/gst/2025-05/gstr1.csv", ObjectKey("t1", "2025-05", "gstr1"))
}

func TestArchiverPut(t *testing.T) {
	mem := &memoryStore{}
	a := NewArchiver(mem, "returns", nil)
	require.NoError(t, a.Put(context.Background(), "k.csv", "text/csv", []byte("a,b\n")))
	assert.Equal(t, []byte("a,b\n"), mem.objects["returns/k.csv"])
	assert.Equal(t, "returns", a.Bucket())
}

func TestArchiverDisabled(t *testing.T) {
	var a *Archiver
	assert.ErrorIs(t, a.Put(context.Background(), "k", "text/csv", nil), ErrDisabled)
	assert.NoError(t, a.Check(context.Background()))

	a = NewArchiver(&memoryStore{}, "", nil)
	assert.ErrorIs(t, a.Put(context.Background(), "k", "text/csv", nil), ErrDisabled)
}

func TestArchiverBreakerOpens(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	breaker := resilience.NewBreaker(resilience.Options{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		Now:              func() time.Time { return now },
	})
	mem := &memoryStore{err: errors.New("connection refused")}
	a := NewArchiver(mem, "returns", breaker)
	ctx := context.Background()

	assert.Error(t, a.Put(ctx, "k", "text/csv", nil))
	assert.Error(t, a.Put(ctx, "k", "text/csv", nil))
	assert.ErrorIs(t, a.Put(ctx, "k", "text/csv", nil), resilience.ErrOpen)
	assert.ErrorIs(t, a.Check(ctx), resilience.ErrOpen)

	mem.err = nil
	now = now.Add(2 * time.Minute)
	assert.NoError(t, a.Put(ctx, "k", "text/csv", []byte("x")))
	assert.NoError(t, a.Check(ctx))
}
