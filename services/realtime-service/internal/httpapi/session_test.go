package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"payaid/internal/authn"
	"payaid/internal/outbox"
	"payaid/services/realtime-service/internal/hub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errClosed = errors.New("session closed")

type fakeConn struct {
	req      *http.Request
	incoming chan string

	mu          sync.Mutex
	sent        []string
	closeStatus uint32
	closeReason string
}

func newFakeConn(target string) *fakeConn {
	return &fakeConn{req: httptest.NewRequest(http.MethodGet, target, nil), incoming: make(chan string, 4)}
}

func (c *fakeConn) Request() *http.Request { return c.req }

func (c *fakeConn) Recv() (string, error) {
	msg, ok := <-c.incoming
	if !ok {
		return "", errClosed
	}
	return msg, nil
}

func (c *fakeConn) Send(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Close(status uint32, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeStatus = status
	c.closeReason = reason
	return nil
}

func (c *fakeConn) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func issue(t *testing.T, tm *authn.TokenManager, tenantID string) string {
	t.Helper()
	token, _, err := tm.Issue(authn.Principal{UserID: "user-1", TenantID: tenantID, Role: authn.RoleMember})
	require.NoError(t, err)
	return token
}

func TestServeRejectsMissingToken(t *testing.T) {
	tm := authn.NewTokenManager([]byte("secret"), "payaid-auth", time.Minute)
	conn := newFakeConn("/realtime/websocket")
	NewSessions(hub.New(nil), tm, nil).Serve(conn)
	assert.Equal(t, uint32(CloseMissingToken), conn.closeStatus)
}

func TestServeRejectsInvalidToken(t *testing.T) {
	tm := authn.NewTokenManager([]byte("secret"), "payaid-auth", time.Minute)
	other := authn.NewTokenManager([]byte("other"), "payaid-auth", time.Minute)
	conn := newFakeConn("/realtime/websocket?access_token=" + issue(t, other, "tenant-a"))
	NewSessions(hub.New(nil), tm, nil).Serve(conn)
	assert.Equal(t, uint32(CloseInvalidToken), conn.closeStatus)
}

func TestServeDeliversSubscribedTenantEvents(t *testing.T) {
	tm := authn.NewTokenManager([]byte("secret"), "payaid-auth", time.Minute)
	h := hub.New(nil)
	conn := newFakeConn("/realtime/websocket?access_token=" + issue(t, tm, "tenant-a"))

	done := make(chan struct{})
	go func() {
		NewSessions(h, tm, nil).Serve(conn)
		close(done)
	}()

	conn.incoming <- `{"action":"subscribe","topics":["invoice."]}`
	require.Eventually(t, func() bool {
		if h.Count() != 1 {
			return false
		}
		// Until the subscribe frame is processed every event matches.
		return h.Broadcast(outbox.Event{TenantID: "tenant-a", Type: "payroll.finalized"}) == 0
	}, time.Second, 5*time.Millisecond)

	h.Broadcast(outbox.Event{EventID: "e1", TenantID: "tenant-b", Type: "invoice.issued", Payload: json.RawMessage(`{}`)})
	h.Broadcast(outbox.Event{EventID: "e2", TenantID: "tenant-a", Type: "invoice.issued", Payload: json.RawMessage(`{}`)})

	invoices := func() []hub.Message {
		var out []hub.Message
		for _, raw := range conn.messages() {
			var msg hub.Message
			if json.Unmarshal([]byte(raw), &msg) == nil && msg.Type == "invoice.issued" {
				out = append(out, msg)
			}
		}
		return out
	}
	require.Eventually(t, func() bool { return len(invoices()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "e2", invoices()[0].EventID)

	close(conn.incoming)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("session did not finish")
	}
	assert.Zero(t, h.Count())
}
