package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"payaid/internal/authn"
	"payaid/internal/licensing"
	"payaid/internal/platform/web"
	"payaid/services/platform-service/internal/models"
	"payaid/services/platform-service/internal/store"

	"go.uber.org/zap"
)

const (
	requestLicenseGrant  = "license.grant"
	requestLicenseRevoke = "license.revoke"
	requestUserRole      = "user.role"
)

func knownRequestType(requestType string) bool {
	switch requestType {
	case requestLicenseGrant, requestLicenseRevoke, requestUserRole:
		return true
	default:
		return false
	}
}

// authorizeApproval requires the permission the underlying change needs, on
// top of approval.manage. It writes the response when access is denied.
func authorizeApproval(w http.ResponseWriter, r *http.Request, requestType string) bool {
	switch requestType {
	case requestLicenseGrant, requestLicenseRevoke:
		return authn.RequireSuperAdmin(w, r)
	case requestUserRole:
		return authn.RequirePermission(w, r, authn.PermRolesManage)
	default:
		web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "unknown request_type")
		return false
	}
}

// approvalChange decodes the payload of requestType and validates it the way
// the direct endpoint would. The payload's tenant is always replaced by
// tenantID. A non-empty message means the payload is invalid.
func (h *Handler) approvalChange(tenantID, requestType string, raw json.RawMessage) (interface{}, string) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, "payload is required"
	}
	switch requestType {
	case requestLicenseGrant:
		var grant store.LicenseGrant
		if err := json.Unmarshal(raw, &grant); err != nil {
			return nil, "payload is not a license grant"
		}
		grant.TenantID = tenantID
		if msg := h.validateGrant(grant); msg != "" {
			return nil, msg
		}
		return grant, ""
	case requestLicenseRevoke:
		var revoke store.LicenseRevoke
		if err := json.Unmarshal(raw, &revoke); err != nil {
			return nil, "payload is not a license revoke"
		}
		revoke.TenantID = tenantID
		if !licensing.KnownModule(revoke.Module) {
			return nil, "unknown module " + revoke.Module
		}
		return revoke, ""
	case requestUserRole:
		var assignment store.RoleAssignment
		if err := json.Unmarshal(raw, &assignment); err != nil {
			return nil, "payload is not a role assignment"
		}
		assignment.TenantID = tenantID
		if !web.IsValidUUID(assignment.UserID) {
			return nil, "user_id must be a UUID"
		}
		if !web.IsValidUUID(assignment.RoleID) {
			return nil, "role_id must be a UUID"
		}
		return assignment, ""
	default:
		return nil, "unknown request_type"
	}
}

func (h *Handler) handleApprovals(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	if !authn.RequirePermission(w, r, authn.PermApprovalManage) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		switch status {
		case "", models.ApprovalPending, models.ApprovalApproved, models.ApprovalRejected:
		default:
			web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "status must be pending, approved or rejected")
			return
		}
		approvals, err := h.store.ListApprovals(r.Context(), tenantID, status)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, approvals)
	case http.MethodPost:
		var req struct {
			RequestType string          `json:"request_type"`
			Payload     json.RawMessage `json:"payload"`
		}
		if !web.DecodeRequest(w, r, &req) {
			return
		}
		if !knownRequestType(req.RequestType) {
			web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "unknown request_type")
			return
		}
		if !authorizeApproval(w, r, req.RequestType) {
			return
		}
		change, msg := h.approvalChange(tenantID, req.RequestType, req.Payload)
		if msg != "" {
			web.WriteError(w, r, http.StatusBadRequest, "invalid_request", msg)
			return
		}
		payload, err := json.Marshal(change)
		if err != nil {
			web.WriteError(w, r, http.StatusInternalServerError, "internal_error", "approval marshal failed")
			return
		}
		created, err := h.store.CreateApproval(r.Context(), models.ApprovalRequest{
			TenantID:    tenantID,
			RequestType: req.RequestType,
			Payload:     payload,
			CreatedBy:   actorID(r),
		})
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		h.recordAudit(r, tenantID, "approval.request", "approval", created.ApprovalID)
		web.WriteJSON(w, http.StatusCreated, created)
	default:
		web.MethodNotAllowed(w, r)
	}
}

func (h *Handler) handleApprovalPrefs(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !authn.RequirePermission(w, r, authn.PermConfigRead) {
			return
		}
		enabled, err := h.store.ApprovalsEnabled(r.Context(), tenantID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"tenant_id":         tenantID,
			"approvals_enabled": enabled,
		})
	case http.MethodPost:
		if !authn.RequirePermission(w, r, authn.PermConfigWrite) {
			return
		}
		var req struct {
			ApprovalsEnabled bool `json:"approvals_enabled"`
		}
		if !web.DecodeRequest(w, r, &req) {
			return
		}
		if err := h.store.SetApprovalPrefs(r.Context(), tenantID, req.ApprovalsEnabled); err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		h.recordAudit(r, tenantID, "approval.prefs_update", "tenant", tenantID)
		web.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"tenant_id":         tenantID,
			"approvals_enabled": req.ApprovalsEnabled,
		})
	default:
		web.MethodNotAllowed(w, r)
	}
}

func (h *Handler) handleApprovalAction(w http.ResponseWriter, r *http.Request) {
	parts := web.PathParts(r.URL.Path, "/api/platform/approvals/")
	if len(parts) != 2 || !web.IsValidUUID(parts[0]) {
		web.NotFound(w, r)
		return
	}
	var status string
	switch parts[1] {
	case "approve":
		status = models.ApprovalApproved
	case "reject":
		status = models.ApprovalRejected
	default:
		web.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPut {
		web.MethodNotAllowed(w, r)
		return
	}
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	if !authn.RequirePermission(w, r, authn.PermApprovalManage) {
		return
	}

	pending, err := h.store.GetApproval(r.Context(), tenantID, parts[0])
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if !authorizeApproval(w, r, pending.RequestType) {
		return
	}
	var change interface{}
	if status == models.ApprovalApproved {
		var msg string
		if change, msg = h.approvalChange(tenantID, pending.RequestType, pending.Payload); msg != "" {
			web.WriteError(w, r, http.StatusUnprocessableEntity, "invalid_payload", msg)
			return
		}
	}
	approval, err := h.store.DecideApproval(r.Context(), store.DecisionInput{
		TenantID:   tenantID,
		ApprovalID: pending.ApprovalID,
		DeciderID:  actorID(r),
		Status:     status,
	})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	approvalsDecided.Add(1)
	h.recordAudit(r, tenantID, "approval."+parts[1], "approval", approval.ApprovalID)

	if status == models.ApprovalApproved {
		if err := h.applyApproval(r, change); err != nil {
			h.logger.Warn("apply approval failed", zap.Error(err),
				zap.String("approval_id", approval.ApprovalID), zap.String("request_type", approval.RequestType))
			if _, reopenErr := h.store.ReopenApproval(r.Context(), tenantID, approval.ApprovalID); reopenErr != nil {
				h.logger.Error("reopen approval failed", zap.Error(reopenErr), zap.String("approval_id", approval.ApprovalID))
			} else {
				h.recordAudit(r, tenantID, "approval.reopen", "approval", approval.ApprovalID)
			}
			h.writeStoreError(w, r, err)
			return
		}
	}
	web.WriteJSON(w, http.StatusOK, approval)
}

// maybeCreateApproval defers a change when the tenant has approvals enabled.
// It returns true once it has written the response.
func (h *Handler) maybeCreateApproval(w http.ResponseWriter, r *http.Request, tenantID, requestType string, payload interface{}) bool {
	enabled, err := h.store.ApprovalsEnabled(r.Context(), tenantID)
	if err != nil {
		h.logger.Warn("approval prefs lookup failed", zap.Error(err), zap.String("tenant_id", tenantID))
		return false
	}
	if !enabled {
		return false
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		web.WriteError(w, r, http.StatusInternalServerError, "internal_error", "approval marshal failed")
		return true
	}
	created, err := h.store.CreateApproval(r.Context(), models.ApprovalRequest{
		TenantID:    tenantID,
		RequestType: requestType,
		Payload:     raw,
		CreatedBy:   actorID(r),
	})
	if err != nil {
		h.writeStoreError(w, r, err)
		return true
	}
	h.recordAudit(r, tenantID, "approval.request", "approval", created.ApprovalID)
	web.WriteJSON(w, http.StatusAccepted, created)
	return true
}

// applyApproval performs a change decoded by approvalChange.
func (h *Handler) applyApproval(r *http.Request, change interface{}) error {
	switch change := change.(type) {
	case store.LicenseGrant:
		_, err := h.grantLicense(r, change)
		return err
	case store.LicenseRevoke:
		_, err := h.revokeLicense(r, change)
		return err
	case store.RoleAssignment:
		_, err := h.assignRole(r, change)
		return err
	default:
		return fmt.Errorf("unsupported approval change %T", change)
	}
}
