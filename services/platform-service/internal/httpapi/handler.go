package httpapi

import (
	"errors"
	"expvar"
	"net/http"
	"regexp"
	"strings"
	"time"

	"payaid/internal/authn"
	"payaid/internal/gst"
	"payaid/internal/licensing"
	"payaid/internal/platform/web"
	"payaid/services/platform-service/internal/models"
	"payaid/services/platform-service/internal/store"

	"go.uber.org/zap"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]{3,40}$`)

var (
	tenantsCreated   = expvar.NewInt("platform_tenants_created_total")
	licensesChanged  = expvar.NewInt("platform_license_changes_total")
	approvalsDecided = expvar.NewInt("platform_approvals_decided_total")
)

type Handler struct {
	store  store.Store
	gate   *licensing.Gate
	logger *zap.Logger
	now    func() time.Time
}

type Options struct {
	Logger *zap.Logger
	Now    func() time.Time
}

func NewHandler(store store.Store, gate *licensing.Gate, options Options) *Handler {
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return &Handler{store: store, gate: gate, logger: options.Logger, now: options.Now}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/platform/tenants", h.handleTenants)
	mux.HandleFunc("/api/platform/tenants/", h.handleTenant)
	mux.HandleFunc("/api/platform/licenses", h.handleLicenses)
	mux.HandleFunc("/api/platform/licenses/", h.handleLicenseRevoke)
	mux.HandleFunc("/api/platform/access", h.handleAccess)
	mux.HandleFunc("/api/platform/modules", h.handleModules)
	mux.HandleFunc("/api/platform/roles", h.handleRoles)
	mux.HandleFunc("/api/platform/users/", h.handleUser)
	mux.HandleFunc("/api/platform/audit", h.handleAudit)
	mux.HandleFunc("/api/platform/approvals", h.handleApprovals)
	mux.HandleFunc("/api/platform/approvals/prefs", h.handleApprovalPrefs)
	mux.HandleFunc("/api/platform/approvals/", h.handleApprovalAction)
	mux.HandleFunc("/api/platform/webhooks", h.handleWebhooks)
	mux.HandleFunc("/api/platform/webhooks/", h.handleWebhook)
	return mux
}

type tenantRequest struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	GSTIN     string `json:"gstin"`
	StateCode string `json:"state_code"`
}

// toInput validates a tenant registration. A GSTIN fixes the state code.
func (req tenantRequest) toInput() (store.TenantInput, string) {
	input := store.TenantInput{
		Name:      strings.TrimSpace(req.Name),
		Slug:      strings.ToLower(strings.TrimSpace(req.Slug)),
		GSTIN:     gst.NormalizeGSTIN(req.GSTIN),
		StateCode: strings.TrimSpace(req.StateCode),
	}
	if input.Name == "" {
		return input, "name is required"
	}
	if !slugPattern.MatchString(input.Slug) {
		return input, "slug must be 3-40 lowercase letters, digits or hyphens"
	}
	if input.GSTIN != "" {
		if err := gst.ValidateGSTIN(input.GSTIN); err != nil {
			return input, "gstin: " + err.Error()
		}
		derived := gst.StateCode(input.GSTIN)
		if input.StateCode != "" && input.StateCode != derived {
			return input, "state_code does not match gstin"
		}
		input.StateCode = derived
	}
	if input.StateCode != "" && !gst.ValidStateCode(input.StateCode) {
		return input, "state_code must be a valid two digit state code"
	}
	return input, ""
}

func (h *Handler) handleTenants(w http.ResponseWriter, r *http.Request) {
	if !authn.RequireSuperAdmin(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		tenants, err := h.store.ListTenants(r.Context())
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, tenants)
	case http.MethodPost:
		var req tenantRequest
		if !web.DecodeRequest(w, r, &req) {
			return
		}
		input, problem := req.toInput()
		if problem != "" {
			web.WriteError(w, r, http.StatusBadRequest, "invalid_request", problem)
			return
		}
		tenant, err := h.store.CreateTenant(r.Context(), input)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		tenantsCreated.Add(1)
		h.recordAudit(r, tenant.TenantID, "tenant.create", "tenant", tenant.TenantID)
		web.WriteJSON(w, http.StatusCreated, tenant)
	default:
		web.MethodNotAllowed(w, r)
	}
}

func (h *Handler) handleTenant(w http.ResponseWriter, r *http.Request) {
	parts := web.PathParts(r.URL.Path, "/api/platform/tenants/")
	if len(parts) == 0 || !web.IsValidUUID(parts[0]) {
		web.NotFound(w, r)
		return
	}
	tenantID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			web.MethodNotAllowed(w, r)
			return
		}
		p, _ := authn.FromContext(r.Context())
		if !p.SuperAdmin && p.TenantID != tenantID {
			web.WriteError(w, r, http.StatusForbidden, "access_denied", "tenant access denied")
			return
		}
		tenant, err := h.store.GetTenant(r.Context(), tenantID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, tenant)
	case len(parts) == 2 && parts[1] == "status":
		if r.Method != http.MethodPut {
			web.MethodNotAllowed(w, r)
			return
		}
		if !authn.RequireSuperAdmin(w, r) {
			return
		}
		var req struct {
			Status string `json:"status"`
		}
		if !web.DecodeRequest(w, r, &req) {
			return
		}
		switch req.Status {
		case licensing.TenantActive, licensing.TenantSuspended, licensing.TenantTrial:
		default:
			web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "status must be active, suspended or trial")
			return
		}
		tenant, err := h.store.SetTenantStatus(r.Context(), tenantID, req.Status)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		h.gate.Invalidate(tenantID)
		h.recordAudit(r, tenantID, "tenant.status_update", "tenant", tenantID)
		web.WriteJSON(w, http.StatusOK, tenant)
	default:
		web.NotFound(w, r)
	}
}

func (h *Handler) handleLicenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tenantID, ok := authn.TenantScope(w, r)
		if !ok {
			return
		}
		licenses, err := h.store.ListLicenses(r.Context(), tenantID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, licenses)
	case http.MethodPost:
		if !authn.RequireSuperAdmin(w, r) {
			return
		}
		var grant store.LicenseGrant
		if !web.DecodeRequest(w, r, &grant) {
			return
		}
		if problem := h.validateGrant(grant); problem != "" {
			web.WriteError(w, r, http.StatusBadRequest, "invalid_request", problem)
			return
		}
		if h.maybeCreateApproval(w, r, grant.TenantID, requestLicenseGrant, grant) {
			return
		}
		license, err := h.grantLicense(r, grant)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, license)
	default:
		web.MethodNotAllowed(w, r)
	}
}

func (h *Handler) validateGrant(grant store.LicenseGrant) string {
	if !web.IsValidUUID(grant.TenantID) {
		return "tenant_id must be a UUID"
	}
	if !licensing.KnownModule(grant.Module) {
		return "unknown module " + grant.Module
	}
	if grant.Seats < 0 {
		return "seats must not be negative"
	}
	if grant.ExpiresAt != nil && !grant.ExpiresAt.After(h.now()) {
		return "expires_at must be in the future"
	}
	return ""
}

func (h *Handler) handleLicenseRevoke(w http.ResponseWriter, r *http.Request) {
	parts := web.PathParts(r.URL.Path, "/api/platform/licenses/")
	if len(parts) != 2 || !web.IsValidUUID(parts[0]) {
		web.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		web.MethodNotAllowed(w, r)
		return
	}
	if !authn.RequireSuperAdmin(w, r) {
		return
	}
	revoke := store.LicenseRevoke{TenantID: parts[0], Module: parts[1]}
	if !licensing.KnownModule(revoke.Module) {
		web.WriteError(w, r, http.StatusBadRequest, "unknown_module", "unknown module")
		return
	}
	if h.maybeCreateApproval(w, r, revoke.TenantID, requestLicenseRevoke, revoke) {
		return
	}
	license, err := h.revokeLicense(r, revoke)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, license)
}

func (h *Handler) grantLicense(r *http.Request, grant store.LicenseGrant) (licensing.License, error) {
	license, err := h.store.GrantLicense(r.Context(), grant)
	if err != nil {
		return licensing.License{}, err
	}
	h.gate.Invalidate(grant.TenantID)
	licensesChanged.Add(1)
	h.recordAudit(r, grant.TenantID, "license.grant", "license", grant.Module)
	return license, nil
}

func (h *Handler) revokeLicense(r *http.Request, revoke store.LicenseRevoke) (licensing.License, error) {
	license, err := h.store.RevokeLicense(r.Context(), revoke)
	if err != nil {
		return licensing.License{}, err
	}
	h.gate.Invalidate(revoke.TenantID)
	licensesChanged.Add(1)
	h.recordAudit(r, revoke.TenantID, "license.revoke", "license", revoke.Module)
	return license, nil
}

func (h *Handler) handleAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		web.MethodNotAllowed(w, r)
		return
	}
	p, ok := authn.FromContext(r.Context())
	if !ok {
		web.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}
	module := strings.TrimSpace(r.URL.Query().Get("module"))
	if err := h.gate.RequireModuleAccess(r.Context(), p, module); err != nil {
		if !licensing.HandleLicenseError(w, r, err) {
			h.logger.Error("module access check failed", zap.Error(err), zap.String("request_id", web.RequestID(r)))
			web.Internal(w, r)
		}
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]interface{}{"module": module, "allowed": true})
}

func (h *Handler) handleModules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		web.MethodNotAllowed(w, r)
		return
	}
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	state, err := h.gate.TenantState(r.Context(), tenantID)
	if err != nil {
		if !licensing.HandleLicenseError(w, r, err) {
			h.logger.Error("tenant state load failed", zap.Error(err), zap.String("request_id", web.RequestID(r)))
			web.Internal(w, r)
		}
		return
	}
	web.WriteJSON(w, http.StatusOK, licensing.Modules(state, h.now()))
}

func (h *Handler) handleRoles(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	if !authn.RequirePermission(w, r, authn.PermRolesManage) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		roles, err := h.store.ListRoles(r.Context(), tenantID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, roles)
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if !web.DecodeRequest(w, r, &req) {
			return
		}
		name := strings.ToLower(strings.TrimSpace(req.Name))
		if !authn.KnownRole(name) {
			web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "name must be one of "+strings.Join(authn.Roles, ", "))
			return
		}
		role, err := h.store.CreateRole(r.Context(), tenantID, name)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		h.recordAudit(r, tenantID, "role.create", "role", role.RoleID)
		web.WriteJSON(w, http.StatusCreated, role)
	default:
		web.MethodNotAllowed(w, r)
	}
}

func (h *Handler) handleUser(w http.ResponseWriter, r *http.Request) {
	parts := web.PathParts(r.URL.Path, "/api/platform/users/")
	if len(parts) == 0 || !web.IsValidUUID(parts[0]) {
		web.NotFound(w, r)
		return
	}
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	if !authn.RequirePermission(w, r, authn.PermRolesManage) {
		return
	}
	userID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			web.MethodNotAllowed(w, r)
			return
		}
		user, err := h.store.GetUser(r.Context(), tenantID, userID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, user)
	case len(parts) == 2 && parts[1] == "role":
		if r.Method != http.MethodPut {
			web.MethodNotAllowed(w, r)
			return
		}
		var req struct {
			RoleID string `json:"role_id"`
		}
		if !web.DecodeRequest(w, r, &req) {
			return
		}
		if !web.IsValidUUID(req.RoleID) {
			web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "role_id must be a UUID")
			return
		}
		assignment := store.RoleAssignment{TenantID: tenantID, UserID: userID, RoleID: req.RoleID}
		if h.maybeCreateApproval(w, r, tenantID, requestUserRole, assignment) {
			return
		}
		user, err := h.assignRole(r, assignment)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, user)
	default:
		web.NotFound(w, r)
	}
}

func (h *Handler) assignRole(r *http.Request, assignment store.RoleAssignment) (models.User, error) {
	user, err := h.store.UpdateUserRole(r.Context(), assignment)
	if err != nil {
		return models.User{}, err
	}
	h.recordAudit(r, assignment.TenantID, "user.role_update", "user", assignment.UserID)
	return user, nil
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		web.MethodNotAllowed(w, r)
		return
	}
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	if !authn.RequirePermission(w, r, authn.PermAuditRead) {
		return
	}
	filter := store.AuditFilter{
		ActionType: strings.TrimSpace(r.URL.Query().Get("action_type")),
		UserID:     strings.TrimSpace(r.URL.Query().Get("user_id")),
	}
	if filter.UserID != "" && !web.IsValidUUID(filter.UserID) {
		web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "user_id must be a UUID")
		return
	}
	entries, err := h.store.ListAudit(r.Context(), tenantID, filter)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, entries)
}

// recordAudit is best effort. A failed insert is logged and never fails the
// request that triggered it.
func (h *Handler) recordAudit(r *http.Request, tenantID, actionType, targetType, targetID string) {
	if !web.IsValidUUID(tenantID) {
		return
	}
	actor := actorID(r)
	if !web.IsValidUUID(actor) {
		actor = ""
	}
	err := h.store.InsertAudit(r.Context(), models.AuditLog{
		TenantID:    tenantID,
		ActorUserID: actor,
		ActionType:  actionType,
		TargetType:  targetType,
		TargetID:    targetID,
		IP:          r.RemoteAddr,
		UserAgent:   r.UserAgent(),
	})
	if err != nil {
		h.logger.Warn("audit insert failed", zap.Error(err), zap.String("action_type", actionType), zap.String("tenant_id", tenantID))
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("platform store error", zap.Error(err), zap.String("path", r.URL.Path), zap.String("request_id", web.RequestID(r)))
	}
	web.WriteError(w, r, status, code, msg)
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrTenantNotFound):
		return http.StatusNotFound, "tenant_not_found", "tenant not found"
	case errors.Is(err, store.ErrTenantExists):
		return http.StatusConflict, "tenant_exists", "tenant slug already taken"
	case errors.Is(err, store.ErrLicenseNotFound):
		return http.StatusNotFound, "license_not_found", "license not found"
	case errors.Is(err, store.ErrRoleNotFound):
		return http.StatusNotFound, "role_not_found", "role not found"
	case errors.Is(err, store.ErrRoleExists):
		return http.StatusConflict, "role_exists", "role already exists"
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found", "user not found"
	case errors.Is(err, store.ErrApprovalNotFound):
		return http.StatusNotFound, "approval_not_found", "approval request not found"
	case errors.Is(err, store.ErrApprovalNotPending):
		return http.StatusConflict, "already_processed", "approval request is not pending"
	case errors.Is(err, store.ErrSelfApproval):
		return http.StatusForbidden, "self_approval", "requester cannot decide their own request"
	case errors.Is(err, store.ErrWebhookNotFound):
		return http.StatusNotFound, "webhook_not_found", "webhook not found"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}
