package postgres

import (
	"context"
	"testing"
	"time"

	"payaid/internal/authn"
	"payaid/internal/platform/pgtest"
	"payaid/services/auth-service/internal/models"
	"payaid/services/auth-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func seedMember(t *testing.T, pool *pgxpool.Pool, tenantID, email, password string) string {
	t.Helper()
	ctx := context.Background()
	roleID := uuid.NewString()
	_, err := pool.Exec(ctx, `INSERT INTO roles (role_id, tenant_id, name) VALUES ($1, $2, $3)`, roleID, tenantID, authn.RoleMember)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	userID := uuid.NewString()
	_, err = pool.Exec(ctx, `
		INSERT INTO users (user_id, tenant_id, role_id, email, password_hash)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, tenantID, roleID, email, string(hash))
	require.NoError(t, err)
	return userID
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.NewPool(t)
	st := NewStore(pool)
	tenantID := pgtest.SeedTenant(t, pool, "27")
	userID := seedMember(t, pool, tenantID, "Asha@Example.com", "correct horse")

	user, err := st.Login(ctx, store.LoginInput{TenantID: tenantID, Email: "asha@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, userID, user.UserID)
	assert.Equal(t, authn.RoleMember, user.RoleName)

	_, err = st.Login(ctx, store.LoginInput{TenantID: tenantID, Email: "asha@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, store.ErrInvalidCredentials)

	_, err = pool.Exec(ctx, `UPDATE tenants SET status = 'suspended' WHERE tenant_id = $1`, tenantID)
	require.NoError(t, err)
	_, err = st.Login(ctx, store.LoginInput{TenantID: tenantID, Email: "asha@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, store.ErrTenantSuspended)
}

func TestSSOLinksExistingUser(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.NewPool(t)
	st := NewStore(pool)
	tenantID := pgtest.SeedTenant(t, pool, "27")
	userID := seedMember(t, pool, tenantID, "asha@example.com", "pw")

	linked, err := st.SSOLogin(ctx, store.SSOInput{TenantID: tenantID, Provider: "google", Subject: "g-1", Email: "ASHA@example.com"})
	require.NoError(t, err)
	assert.Equal(t, userID, linked.UserID)

	again, err := st.SSOLogin(ctx, store.SSOInput{TenantID: tenantID, Provider: "google", Subject: "g-1"})
	require.NoError(t, err)
	assert.Equal(t, userID, again.UserID)

	created, err := st.SSOLogin(ctx, store.SSOInput{TenantID: tenantID, Provider: "google", Subject: "g-2", Email: "ravi@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, userID, created.UserID)
	assert.Equal(t, authn.RoleMember, created.RoleName)

	_, err = st.Login(ctx, store.LoginInput{TenantID: tenantID, Email: "ravi@example.com", Password: "SSO"})
	assert.ErrorIs(t, err, store.ErrInvalidCredentials)
}

func TestRefreshTokenRotation(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.NewPool(t)
	st := NewStore(pool)
	tenantID := pgtest.SeedTenant(t, pool, "27")
	userID := seedMember(t, pool, tenantID, "asha@example.com", "pw")
	expires := time.Now().Add(time.Hour)

	require.NoError(t, st.CreateRefreshToken(ctx, models.RefreshToken{TokenHash: "first", UserID: userID, ExpiresAt: expires}))

	user, err := st.RotateRefreshToken(ctx, "first", models.RefreshToken{TokenHash: "second", ExpiresAt: expires})
	require.NoError(t, err)
	assert.Equal(t, userID, user.UserID)

	_, err = st.RotateRefreshToken(ctx, "first", models.RefreshToken{TokenHash: "third", ExpiresAt: expires})
	assert.ErrorIs(t, err, store.ErrRefreshInvalid)

	require.NoError(t, st.RevokeRefreshToken(ctx, "second"))
	require.NoError(t, st.RevokeRefreshToken(ctx, "second"))
	_, err = st.RotateRefreshToken(ctx, "second", models.RefreshToken{TokenHash: "fourth", ExpiresAt: expires})
	assert.ErrorIs(t, err, store.ErrRefreshInvalid)

	require.NoError(t, st.CreateRefreshToken(ctx, models.RefreshToken{TokenHash: "stale", UserID: userID, ExpiresAt: time.Now().Add(-time.Minute)}))
	_, err = st.RotateRefreshToken(ctx, "stale", models.RefreshToken{TokenHash: "fifth", ExpiresAt: expires})
	assert.ErrorIs(t, err, store.ErrRefreshInvalid)
}
