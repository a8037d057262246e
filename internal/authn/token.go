package authn

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Principal is the caller identity carried by a verified access token.
type Principal struct {
	UserID     string `json:"user_id"`
	TenantID   string `json:"tenant_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	SuperAdmin bool   `json:"super_admin"`
}

type Claims struct {
	TenantID   string `json:"tenant_id"`
	UserID     string `json:"user_id"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role"`
	SuperAdmin bool   `json:"super_admin,omitempty"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret []byte, issuer string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenManager{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the manager that reads time from now.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	clone := *tm
	clone.now = now
	return &clone
}

func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

func (tm *TokenManager) Issue(p Principal) (string, time.Time, error) {
	now := tm.now().UTC()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		TenantID:   p.TenantID,
		UserID:     p.UserID,
		Email:      p.Email,
		Role:       p.Role,
		SuperAdmin: p.SuperAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.issuer,
			Subject:   p.UserID,
			Audience:  []string{p.TenantID},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (tm *TokenManager) Parse(raw string) (Principal, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	claims := &Claims{}
	token, err := parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" || claims.TenantID == "" {
		return Principal{}, ErrInvalidToken
	}
	return Principal{
		UserID:     claims.UserID,
		TenantID:   claims.TenantID,
		Email:      claims.Email,
		Role:       strings.ToLower(claims.Role),
		SuperAdmin: claims.SuperAdmin,
	}, nil
}
