package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"payaid/internal/authn"
	"payaid/services/auth-service/internal/models"
	"payaid/services/auth-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tenantID = "11111111-1111-4111-8111-111111111111"
	userID   = "22222222-2222-4222-8222-222222222222"
)

type fakeStore struct {
	loginFn   func(ctx context.Context, input store.LoginInput) (models.User, error)
	ssoFn     func(ctx context.Context, input store.SSOInput) (models.User, error)
	getUserFn func(ctx context.Context, userID string) (models.User, error)

	mu      sync.Mutex
	tokens  map[string]models.RefreshToken
	revoked map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{tokens: map[string]models.RefreshToken{}, revoked: map[string]bool{}}
}

func (f *fakeStore) Login(ctx context.Context, input store.LoginInput) (models.User, error) {
	if f.loginFn == nil {
		return models.User{}, store.ErrInvalidCredentials
	}
	return f.loginFn(ctx, input)
}

func (f *fakeStore) SSOLogin(ctx context.Context, input store.SSOInput) (models.User, error) {
	if f.ssoFn == nil {
		return models.User{}, store.ErrInvalidCredentials
	}
	return f.ssoFn(ctx, input)
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (models.User, error) {
	if f.getUserFn == nil {
		return models.User{}, store.ErrUserNotFound
	}
	return f.getUserFn(ctx, id)
}

func (f *fakeStore) CreateRefreshToken(_ context.Context, token models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token.TokenHash] = token
	return nil
}

func (f *fakeStore) RotateRefreshToken(_ context.Context, oldHash string, next models.RefreshToken) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.tokens[oldHash]
	if !ok || f.revoked[oldHash] {
		return models.User{}, store.ErrRefreshInvalid
	}
	f.revoked[oldHash] = true
	next.UserID = old.UserID
	f.tokens[next.TokenHash] = next
	return member(), nil
}

func (f *fakeStore) RevokeRefreshToken(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[tokenHash] = true
	return nil
}

func member() models.User {
	return models.User{UserID: userID, TenantID: tenantID, RoleName: authn.RoleMember, Email: "asha@example.com"}
}

func testTokens() *authn.TokenManager {
	return authn.NewTokenManager([]byte("test-secret"), "payaid-auth", 15*time.Minute)
}

func newTestServer(st store.Store, options Options) http.Handler {
	tokens := testTokens()
	return authn.Middleware(tokens, IsPublic, NewHandler(st, tokens, options).Routes())
}

func post(t *testing.T, h http.Handler, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeTokens(t *testing.T, rec *httptest.ResponseRecorder) tokenResponse {
	t.Helper()
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestLoginIssuesVerifiableTokens(t *testing.T) {
	st := newFakeStore()
	st.loginFn = func(_ context.Context, input store.LoginInput) (models.User, error) {
		assert.Equal(t, "asha@example.com", input.Email)
		return member(), nil
	}
	h := newTestServer(st, Options{})

	rec := post(t, h, "/api/auth/login", map[string]string{
		"tenant_id": tenantID,
		"email":     " asha@example.com ",
		"password":  "correct horse",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeTokens(t, rec)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Contains(t, st.tokens, hashToken(resp.RefreshToken))

	principal, err := testTokens().Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, authn.Principal{UserID: userID, TenantID: tenantID, Email: "asha@example.com", Role: authn.RoleMember}, principal)
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name     string
		body     map[string]string
		loginErr error
		wantCode int
		wantErr  string
	}{
		{name: "missing password", body: map[string]string{"tenant_id": tenantID, "email": "a@b.c"}, wantCode: http.StatusBadRequest, wantErr: "invalid_request"},
		{name: "bad tenant", body: map[string]string{"tenant_id": "acme", "email": "a@b.c", "password": "x"}, wantCode: http.StatusBadRequest, wantErr: "invalid_request"},
		{name: "wrong password", body: map[string]string{"tenant_id": tenantID, "email": "a@b.c", "password": "x"}, loginErr: store.ErrInvalidCredentials, wantCode: http.StatusUnauthorized, wantErr: "invalid_credentials"},
		{name: "suspended", body: map[string]string{"tenant_id": tenantID, "email": "a@b.c", "password": "x"}, loginErr: store.ErrTenantSuspended, wantCode: http.StatusForbidden, wantErr: "tenant_suspended"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newFakeStore()
			st.loginFn = func(context.Context, store.LoginInput) (models.User, error) {
				return models.User{}, tt.loginErr
			}
			rec := post(t, newTestServer(st, Options{}), "/api/auth/login", tt.body, nil)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, errorCode(t, rec))
		})
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	st := newFakeStore()
	st.loginFn = func(context.Context, store.LoginInput) (models.User, error) { return member(), nil }
	h := newTestServer(st, Options{})

	login := decodeTokens(t, post(t, h, "/api/auth/login", map[string]string{"tenant_id": tenantID, "email": "a@b.c", "password": "x"}, nil))

	rec := post(t, h, "/api/auth/refresh", map[string]string{"refresh_token": login.RefreshToken}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refreshed := decodeTokens(t, rec)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	rec = post(t, h, "/api/auth/refresh", map[string]string{"refresh_token": login.RefreshToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_refresh_token", errorCode(t, rec))

	rec = post(t, h, "/api/auth/logout", map[string]string{"refresh_token": refreshed.RefreshToken}, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = post(t, h, "/api/auth/refresh", map[string]string{"refresh_token": refreshed.RefreshToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSSORequiresSharedSecret(t *testing.T) {
	st := newFakeStore()
	st.ssoFn = func(_ context.Context, input store.SSOInput) (models.User, error) {
		assert.Equal(t, "google", input.Provider)
		return member(), nil
	}
	body := map[string]string{"tenant_id": tenantID, "provider": "google", "subject": "sub-1", "email": "asha@example.com"}

	rec := post(t, newTestServer(st, Options{}), "/api/auth/sso", body, nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	h := newTestServer(st, Options{SSOSecret: "gateway"})
	rec = post(t, h, "/api/auth/sso", body, map[string]string{"X-SSO-Secret": "guess"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(t, h, "/api/auth/sso", body, map[string]string{"X-SSO-Secret": "gateway"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, userID, decodeTokens(t, rec).User.UserID)
}

func TestMe(t *testing.T) {
	st := newFakeStore()
	st.getUserFn = func(_ context.Context, id string) (models.User, error) {
		if id != userID {
			return models.User{}, store.ErrUserNotFound
		}
		return member(), nil
	}
	h := newTestServer(st, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := testTokens().Issue(authn.Principal{UserID: userID, TenantID: tenantID, Role: authn.RoleMember})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "asha@example.com", user.Email)

	stale, _, err := testTokens().Issue(authn.Principal{UserID: "33333333-3333-4333-8333-333333333333", TenantID: tenantID})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+stale)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
