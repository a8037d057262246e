package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"payaid/internal/authn"
	"payaid/internal/licensing"
	"payaid/services/auth-service/internal/models"
	"payaid/services/auth-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// ssoPasswordHash is never a valid bcrypt hash, so SSO-created users cannot
// log in with a password.
const ssoPasswordHash = "SSO"

const userSelect = `
	SELECT u.user_id, u.tenant_id, r.name, u.email, u.super_admin, t.status, u.created_at
	FROM users u
	JOIN roles r ON r.role_id = u.role_id
	JOIN tenants t ON t.tenant_id = u.tenant_id`

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Login(ctx context.Context, input store.LoginInput) (models.User, error) {
	var user models.User
	var passwordHash string
	row := s.pool.QueryRow(ctx, `
		SELECT u.user_id, u.tenant_id, r.name, u.email, u.super_admin, t.status, u.created_at, u.password_hash
		FROM users u
		JOIN roles r ON r.role_id = u.role_id
		JOIN tenants t ON t.tenant_id = u.tenant_id
		WHERE u.tenant_id = $1 AND lower(u.email) = lower($2) AND u.active = TRUE
	`, input.TenantID, input.Email)
	if err := row.Scan(&user.UserID, &user.TenantID, &user.RoleName, &user.Email, &user.SuperAdmin,
		&user.TenantStatus, &user.Created, &passwordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, store.ErrInvalidCredentials
		}
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(input.Password)); err != nil {
		return models.User{}, store.ErrInvalidCredentials
	}
	if err := checkTenant(user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// SSOLogin resolves an identity provider subject to a user. Unknown subjects
// are linked to the tenant user with the same email, or to a new member.
func (s *Store) SSOLogin(ctx context.Context, input store.SSOInput) (models.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, userSelect+`
		JOIN user_idp_mappings m ON m.user_id = u.user_id
		WHERE m.tenant_id = $1 AND m.provider = $2 AND m.subject = $3 AND u.active = TRUE
	`, input.TenantID, input.Provider, input.Subject))
	if err == nil {
		return user, checkTenant(user)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, err
	}
	if strings.TrimSpace(input.Email) == "" {
		return models.User{}, store.ErrInvalidCredentials
	}
	return s.createMappedUser(ctx, input)
}

func (s *Store) createMappedUser(ctx context.Context, input store.SSOInput) (models.User, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.User{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var userID string
	err = tx.QueryRow(ctx, `
		SELECT user_id FROM users WHERE tenant_id = $1 AND lower(email) = lower($2) AND active = TRUE
	`, input.TenantID, input.Email).Scan(&userID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		var roleID string
		err = tx.QueryRow(ctx, `
			SELECT role_id FROM roles WHERE tenant_id = $1 AND name = $2
		`, input.TenantID, authn.RoleMember).Scan(&roleID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				err = store.ErrNoDefaultRole
			}
			return models.User{}, err
		}
		userID = uuid.NewString()
		_, err = tx.Exec(ctx, `
			INSERT INTO users (user_id, tenant_id, role_id, email, password_hash, active, created_at)
			VALUES ($1, $2, $3, $4, $5, TRUE, $6)
		`, userID, input.TenantID, roleID, input.Email, ssoPasswordHash, s.now().UTC())
		if err != nil {
			return models.User{}, err
		}
	case err != nil:
		return models.User{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_idp_mappings (mapping_id, tenant_id, provider, subject, user_id)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), input.TenantID, input.Provider, input.Subject, userID)
	if err != nil {
		return models.User{}, err
	}

	var user models.User
	user, err = scanUser(tx.QueryRow(ctx, userSelect+` WHERE u.user_id = $1`, userID))
	if err != nil {
		return models.User{}, err
	}
	if err = checkTenant(user); err != nil {
		return models.User{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (models.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, userSelect+` WHERE u.user_id = $1 AND u.active = TRUE`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, store.ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *Store) CreateRefreshToken(ctx context.Context, token models.RefreshToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, token.TokenHash, token.UserID, token.ExpiresAt, s.now().UTC())
	return err
}

func (s *Store) RotateRefreshToken(ctx context.Context, oldHash string, next models.RefreshToken) (models.User, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.User{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := s.now().UTC()
	var userID string
	err = tx.QueryRow(ctx, `
		SELECT user_id FROM refresh_tokens
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2
		FOR UPDATE
	`, oldHash, now).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrRefreshInvalid
		}
		return models.User{}, err
	}

	var user models.User
	user, err = scanUser(tx.QueryRow(ctx, userSelect+` WHERE u.user_id = $1 AND u.active = TRUE`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrRefreshInvalid
		}
		return models.User{}, err
	}
	if err = checkTenant(user); err != nil {
		return models.User{}, err
	}

	if _, err = tx.Exec(ctx, `UPDATE refresh_tokens SET revoked_at = $2 WHERE token_hash = $1`, oldHash, now); err != nil {
		return models.User{}, err
	}
	if _, err = tx.Exec(ctx, `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, next.TokenHash, userID, next.ExpiresAt, now); err != nil {
		return models.User{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// RevokeRefreshToken is idempotent.
func (s *Store) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, tokenHash, s.now().UTC())
	return err
}

func checkTenant(user models.User) error {
	if user.TenantStatus == licensing.TenantSuspended && !user.SuperAdmin {
		return store.ErrTenantSuspended
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.UserID, &user.TenantID, &user.RoleName, &user.Email, &user.SuperAdmin, &user.TenantStatus, &user.Created)
	return user, err
}
