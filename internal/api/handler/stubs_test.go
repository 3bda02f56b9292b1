package handler

import (
	"context"

	"github.com/99minutos/identity-system/internal/core/domain"
)

// stubIdentity implements ports.IdentityService; unset functions fail loudly.
type stubIdentity struct {
	registerFn func(ctx context.Context, in domain.RegisterPayload) (*domain.User, error)
	loginFn    func(ctx context.Context, in domain.LoginPayload) (*domain.TokenPair, error)
	refreshFn  func(ctx context.Context, in domain.RefreshPayload) (*domain.AccessToken, error)
	profileFn  func(ctx context.Context, actor domain.Actor) (*domain.User, error)
	listFn     func(ctx context.Context, actor domain.Actor) ([]*domain.User, error)
	updateFn   func(ctx context.Context, actor domain.Actor, update domain.UserUpdate) (*domain.User, error)
	deleteFn   func(ctx context.Context, actor domain.Actor) (*domain.User, error)
}

var errNotStubbed = domain.Internal(nil)

func (s *stubIdentity) Register(ctx context.Context, in domain.RegisterPayload) (*domain.User, error) {
	if s.registerFn == nil {
		return nil, errNotStubbed
	}
	return s.registerFn(ctx, in)
}

func (s *stubIdentity) Login(ctx context.Context, in domain.LoginPayload) (*domain.TokenPair, error) {
	if s.loginFn == nil {
		return nil, errNotStubbed
	}
	return s.loginFn(ctx, in)
}

func (s *stubIdentity) Refresh(ctx context.Context, in domain.RefreshPayload) (*domain.AccessToken, error) {
	if s.refreshFn == nil {
		return nil, errNotStubbed
	}
	return s.refreshFn(ctx, in)
}

func (s *stubIdentity) GetProfile(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	if s.profileFn == nil {
		return nil, errNotStubbed
	}
	return s.profileFn(ctx, actor)
}

func (s *stubIdentity) ListUsers(ctx context.Context, actor domain.Actor) ([]*domain.User, error) {
	if s.listFn == nil {
		return nil, errNotStubbed
	}
	return s.listFn(ctx, actor)
}

func (s *stubIdentity) UpdateUser(ctx context.Context, actor domain.Actor, update domain.UserUpdate) (*domain.User, error) {
	if s.updateFn == nil {
		return nil, errNotStubbed
	}
	return s.updateFn(ctx, actor, update)
}

func (s *stubIdentity) DeleteUser(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	if s.deleteFn == nil {
		return nil, errNotStubbed
	}
	return s.deleteFn(ctx, actor)
}
