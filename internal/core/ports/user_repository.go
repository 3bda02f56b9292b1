package ports

import (
	"context"

	"github.com/99minutos/identity-system/internal/core/domain"
)

// UserRepository is the credential store. Implementations must enforce email
// uniqueness and return domain.ErrUserExists / domain.ErrUserNotFound for the
// corresponding conditions.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	// Update persists every mutable field of user, matched by ID. The refresh
	// token is owned by SetRefreshToken and left untouched.
	Update(ctx context.Context, user *domain.User) (*domain.User, error)
	// SetRefreshToken overwrites the stored refresh token. An empty token clears it.
	SetRefreshToken(ctx context.Context, id int64, token string) error
	Delete(ctx context.Context, id int64) error
}
