package httpapi

import (
	"net/http"

	"payaid/internal/authn"
	"payaid/services/realtime-service/internal/hub"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CloseMissingToken = 4001
	CloseInvalidToken = 4002

	sendBuffer = 32
)

// Conn is the part of a SockJS session the handler uses.
type Conn interface {
	Request() *http.Request
	Recv() (string, error)
	Send(string) error
	Close(status uint32, reason string) error
}

type Sessions struct {
	hub    *hub.Hub
	tokens *authn.TokenManager
	logger *zap.Logger
}

func NewSessions(h *hub.Hub, tokens *authn.TokenManager, logger *zap.Logger) *Sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{hub: h, tokens: tokens, logger: logger}
}

// Serve authenticates the session and pumps tenant events to it until the
// client disconnects.
func (s *Sessions) Serve(conn Conn) {
	raw := authn.TokenFromRequest(conn.Request())
	if raw == "" {
		_ = conn.Close(CloseMissingToken, "missing token")
		return
	}
	principal, err := s.tokens.Parse(raw)
	if err != nil {
		_ = conn.Close(CloseInvalidToken, "invalid token")
		return
	}

	client := &hub.Client{ID: uuid.NewString(), TenantID: principal.TenantID, Send: make(chan []byte, sendBuffer)}
	s.hub.Register(client)
	logger := s.logger.With(
		zap.String("client_id", client.ID),
		zap.String("tenant_id", principal.TenantID),
		zap.String("user_id", principal.UserID),
	)
	logger.Debug("session opened")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range client.Send {
			if err := conn.Send(string(msg)); err != nil {
				logger.Debug("send failed", zap.Error(err))
			}
		}
	}()
	defer func() {
		s.hub.Unregister(client)
		<-done
		logger.Debug("session closed")
	}()

	for {
		msg, err := conn.Recv()
		if err != nil {
			return
		}
		control, ok := hub.ParseControl([]byte(msg))
		if !ok {
			continue
		}
		switch control.Action {
		case "subscribe":
			s.hub.Subscribe(client, control.Topics)
		case "unsubscribe":
			s.hub.Unsubscribe(client)
		}
	}
}
