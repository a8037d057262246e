package httpapi

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"expvar"
	"net/http"
	"strings"
	"time"

	"payaid/internal/authn"
	"payaid/internal/platform/web"
	"payaid/services/auth-service/internal/models"
	"payaid/services/auth-service/internal/store"

	"go.uber.org/zap"
)

const defaultRefreshTTL = 30 * 24 * time.Hour

var (
	loginsSucceeded = expvar.NewInt("auth_logins_total")
	loginsFailed    = expvar.NewInt("auth_login_failures_total")
	tokensRefreshed = expvar.NewInt("auth_token_refreshes_total")
)

type Handler struct {
	store      store.Store
	tokens     *authn.TokenManager
	logger     *zap.Logger
	now        func() time.Time
	refreshTTL time.Duration
	ssoSecret  string
}

type Options struct {
	Logger     *zap.Logger
	Now        func() time.Time
	RefreshTTL time.Duration
	// SSOSecret is the shared secret the identity gateway sends in
	// X-SSO-Secret. SSO login is disabled when it is empty.
	SSOSecret string
}

func NewHandler(store store.Store, tokens *authn.TokenManager, options Options) *Handler {
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	if options.RefreshTTL <= 0 {
		options.RefreshTTL = defaultRefreshTTL
	}
	return &Handler{
		store:      store,
		tokens:     tokens,
		logger:     options.Logger,
		now:        options.Now,
		refreshTTL: options.RefreshTTL,
		ssoSecret:  options.SSOSecret,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/sso", h.handleSSO)
	mux.HandleFunc("/api/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.HandleFunc("/api/auth/me", h.handleMe)
	return mux
}

type loginRequest struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken      string      `json:"access_token"`
	TokenType        string      `json:"token_type"`
	ExpiresAt        time.Time   `json:"expires_at"`
	RefreshToken     string      `json:"refresh_token"`
	RefreshExpiresAt time.Time   `json:"refresh_expires_at"`
	User             models.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		web.MethodNotAllowed(w, r)
		return
	}
	var req loginRequest
	if !web.DecodeRequest(w, r, &req) {
		return
	}
	req.TenantID = strings.TrimSpace(req.TenantID)
	req.Email = strings.TrimSpace(req.Email)
	if req.TenantID == "" || req.Email == "" || req.Password == "" {
		web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "tenant_id, email, and password are required")
		return
	}
	if !web.IsValidUUID(req.TenantID) {
		web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "tenant_id must be a UUID")
		return
	}

	user, err := h.store.Login(r.Context(), store.LoginInput{
		TenantID: req.TenantID,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		loginsFailed.Add(1)
		h.writeStoreError(w, r, err)
		return
	}
	h.issue(w, r, user)
}

func (h *Handler) handleSSO(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		web.MethodNotAllowed(w, r)
		return
	}
	if h.ssoSecret == "" {
		web.WriteError(w, r, http.StatusNotImplemented, "sso_disabled", "single sign-on is not configured")
		return
	}
	presented := r.Header.Get("X-SSO-Secret")
	if subtle.ConstantTimeCompare([]byte(presented), []byte(h.ssoSecret)) != 1 {
		web.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "invalid sso secret")
		return
	}

	var req struct {
		TenantID string `json:"tenant_id"`
		Provider string `json:"provider"`
		Subject  string `json:"subject"`
		Email    string `json:"email"`
	}
	if !web.DecodeRequest(w, r, &req) {
		return
	}
	input := store.SSOInput{
		TenantID: strings.TrimSpace(req.TenantID),
		Provider: strings.TrimSpace(req.Provider),
		Subject:  strings.TrimSpace(req.Subject),
		Email:    strings.TrimSpace(req.Email),
	}
	if input.TenantID == "" || input.Provider == "" || input.Subject == "" {
		web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "tenant_id, provider, subject are required")
		return
	}
	if !web.IsValidUUID(input.TenantID) {
		web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "tenant_id must be a UUID")
		return
	}

	user, err := h.store.SSOLogin(r.Context(), input)
	if err != nil {
		loginsFailed.Add(1)
		h.writeStoreError(w, r, err)
		return
	}
	h.issue(w, r, user)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		web.MethodNotAllowed(w, r)
		return
	}
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !web.DecodeRequest(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	raw, next, err := h.newRefreshToken()
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	user, err := h.store.RotateRefreshToken(r.Context(), hashToken(req.RefreshToken), next)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	tokensRefreshed.Add(1)
	h.writeTokens(w, r, user, raw, next)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		web.MethodNotAllowed(w, r)
		return
	}
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !web.DecodeRequest(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}
	if err := h.store.RevokeRefreshToken(r.Context(), hashToken(req.RefreshToken)); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		web.MethodNotAllowed(w, r)
		return
	}
	p, ok := authn.FromContext(r.Context())
	if !ok {
		web.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}
	user, err := h.store.GetUser(r.Context(), p.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			web.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "user no longer active")
			return
		}
		h.writeStoreError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, user)
}

// issue signs an access token for user and stores a fresh refresh token.
func (h *Handler) issue(w http.ResponseWriter, r *http.Request, user models.User) {
	raw, refresh, err := h.newRefreshToken()
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	refresh.UserID = user.UserID
	if err := h.store.CreateRefreshToken(r.Context(), refresh); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	loginsSucceeded.Add(1)
	h.writeTokens(w, r, user, raw, refresh)
}

func (h *Handler) writeTokens(w http.ResponseWriter, r *http.Request, user models.User, rawRefresh string, refresh models.RefreshToken) {
	access, expiresAt, err := h.tokens.Issue(authn.Principal{
		UserID:     user.UserID,
		TenantID:   user.TenantID,
		Email:      user.Email,
		Role:       user.RoleName,
		SuperAdmin: user.SuperAdmin,
	})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken:      access,
		TokenType:        "Bearer",
		ExpiresAt:        expiresAt,
		RefreshToken:     rawRefresh,
		RefreshExpiresAt: refresh.ExpiresAt,
		User:             user,
	})
}

func (h *Handler) newRefreshToken() (string, models.RefreshToken, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", models.RefreshToken{}, err
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)
	return raw, models.RefreshToken{
		TokenHash: hashToken(raw),
		ExpiresAt: h.now().UTC().Add(h.refreshTTL),
	}, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("auth store error", zap.Error(err), zap.String("path", r.URL.Path), zap.String("request_id", web.RequestID(r)))
	}
	web.WriteError(w, r, status, code, msg)
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid credentials"
	case errors.Is(err, store.ErrTenantSuspended):
		return http.StatusForbidden, "tenant_suspended", "tenant is suspended"
	case errors.Is(err, store.ErrRefreshInvalid):
		return http.StatusUnauthorized, "invalid_refresh_token", "refresh token is invalid or expired"
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found", "user not found"
	case errors.Is(err, store.ErrNoDefaultRole):
		return http.StatusConflict, "no_default_role", "tenant has no member role for new sso users"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}
