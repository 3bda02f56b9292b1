package ports

import (
	"context"

	"github.com/99minutos/identity-system/internal/core/domain"
)

// IdentityService is the full command set of the identity service. The service
// implements it directly; the gateway implements it over RPC.
type IdentityService interface {
	Register(ctx context.Context, in domain.RegisterPayload) (*domain.User, error)
	Login(ctx context.Context, in domain.LoginPayload) (*domain.TokenPair, error)
	Refresh(ctx context.Context, in domain.RefreshPayload) (*domain.AccessToken, error)
	GetProfile(ctx context.Context, actor domain.Actor) (*domain.User, error)
	ListUsers(ctx context.Context, actor domain.Actor) ([]*domain.User, error)
	UpdateUser(ctx context.Context, actor domain.Actor, update domain.UserUpdate) (*domain.User, error)
	DeleteUser(ctx context.Context, actor domain.Actor) (*domain.User, error)
}
