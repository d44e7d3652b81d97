package auth

import (
	"context"

	"library/internal/domain"
	"library/internal/pkg/jwt"
)

// UserRepositoryInterface lists only the methods the auth service uses.
type UserRepositoryInterface interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, u *domain.User) error
}

type tokenIssuer interface {
	GenerateAccessToken(userID int64, isStaff bool) (string, error)
	GenerateRefreshToken(userID int64, isStaff bool) (string, error)
	ValidateToken(tokenStr, tokenType string) (*jwt.Claims, error)
}
