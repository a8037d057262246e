package store

import (
	"context"

	"payaid/services/auth-service/internal/models"
)

type LoginInput struct {
	TenantID string
	Email    string
	Password string
}

type SSOInput struct {
	TenantID string
	Provider string
	Subject  string
	Email    string
}

type Store interface {
	Login(ctx context.Context, input LoginInput) (models.User, error)
	SSOLogin(ctx context.Context, input SSOInput) (models.User, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
	CreateRefreshToken(ctx context.Context, token models.RefreshToken) error
	// RotateRefreshToken revokes oldHash and stores next in one transaction,
	// returning the token's owner.
	RotateRefreshToken(ctx context.Context, oldHash string, next models.RefreshToken) (models.User, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
}
