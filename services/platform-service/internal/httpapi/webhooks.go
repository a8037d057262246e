package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"

	"payaid/internal/authn"
	"payaid/internal/platform/web"
	"payaid/services/platform-service/internal/models"
)

const maxWebhookEvents = 32

type webhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

func (req webhookRequest) validate() (string, []string, string) {
	target := strings.TrimSpace(req.URL)
	parsed, err := url.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", nil, "url must be an absolute http or https URL"
	}
	if len(req.Events) == 0 || len(req.Events) > maxWebhookEvents {
		return "", nil, "events must list between 1 and 32 event types"
	}
	seen := make(map[string]bool, len(req.Events))
	events := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		event = strings.TrimSpace(event)
		if event == "" || strings.ContainsAny(event, " \t") {
			return "", nil, "events must be non-empty event types or *"
		}
		if seen[event] {
			continue
		}
		seen[event] = true
		events = append(events, event)
	}
	return target, events, ""
}

func newWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (h *Handler) handleWebhooks(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	if !authn.RequirePermission(w, r, authn.PermConfigWrite) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		webhooks, err := h.store.ListWebhooks(r.Context(), tenantID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, webhooks)
	case http.MethodPost:
		var req webhookRequest
		if !web.DecodeRequest(w, r, &req) {
			return
		}
		target, events, problem := req.validate()
		if problem != "" {
			web.WriteError(w, r, http.StatusBadRequest, "invalid_request", problem)
			return
		}
		secret, err := newWebhookSecret()
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		created, err := h.store.CreateWebhook(r.Context(), models.Webhook{
			TenantID: tenantID,
			URL:      target,
			Events:   events,
			Secret:   secret,
		})
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		h.recordAudit(r, tenantID, "webhook.create", "webhook", created.WebhookID)
		web.WriteJSON(w, http.StatusCreated, created)
	default:
		web.MethodNotAllowed(w, r)
	}
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	parts := web.PathParts(r.URL.Path, "/api/platform/webhooks/")
	if len(parts) == 0 || !web.IsValidUUID(parts[0]) {
		web.NotFound(w, r)
		return
	}
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	if !authn.RequirePermission(w, r, authn.PermConfigWrite) {
		return
	}
	webhookID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodDelete {
			web.MethodNotAllowed(w, r)
			return
		}
		if err := h.store.DeleteWebhook(r.Context(), tenantID, webhookID); err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		h.recordAudit(r, tenantID, "webhook.delete", "webhook", webhookID)
		w.WriteHeader(http.StatusNoContent)
	case len(parts) == 2 && parts[1] == "enable":
		if r.Method != http.MethodPut {
			web.MethodNotAllowed(w, r)
			return
		}
		webhook, err := h.store.EnableWebhook(r.Context(), tenantID, webhookID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		h.recordAudit(r, tenantID, "webhook.enable", "webhook", webhookID)
		web.WriteJSON(w, http.StatusOK, webhook)
	default:
		web.NotFound(w, r)
	}
}
