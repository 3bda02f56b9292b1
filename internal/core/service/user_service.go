package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-system/internal/core/domain"
	"github.com/99minutos/identity-system/internal/core/ports"
)

// UserService implements every identity command on top of the credential
// store and the token service.
type UserService struct {
	repo   ports.UserRepository
	hasher ports.PasswordHasher
	tokens *TokenService
	log    zerolog.Logger
	now    func() time.Time
}

var _ ports.IdentityService = (*UserService)(nil)

func NewUserService(repo ports.UserRepository, hasher ports.PasswordHasher, tokens *TokenService, log zerolog.Logger) *UserService {
	return &UserService{repo: repo, hasher: hasher, tokens: tokens, log: log, now: time.Now}
}

func (s *UserService) Register(ctx context.Context, in domain.RegisterPayload) (*domain.User, error) {
	if strings.TrimSpace(in.Email) == "" {
		return nil, domain.ErrEmailRequired
	}

	// The store's unique constraint is authoritative; this lookup only gives
	// retried submissions a deterministic Conflict before any other check.
	if _, err := s.repo.FindByEmail(ctx, in.Email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.Internal(err)
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, domain.Internal(err)
	}

	now := s.now().UTC()
	user := &domain.User{
		Email:        in.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	applyProfile(user, in.Profile)

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, storeErr(err)
	}
	s.log.Info().Int64("user_id", created.ID).Msg("user registered")
	return created, nil
}

func (s *UserService) Login(ctx context.Context, in domain.LoginPayload) (*domain.TokenPair, error) {
	if in.Email == "" || in.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.Internal(err)
	}
	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrAccountDisabled
	}

	return s.tokens.Issue(ctx, user)
}

func (s *UserService) Refresh(ctx context.Context, in domain.RefreshPayload) (*domain.AccessToken, error) {
	access, err := s.tokens.Rotate(ctx, in.RefreshToken)
	if err != nil {
		return nil, err
	}
	return &domain.AccessToken{AccessToken: access}, nil
}

func (s *UserService) GetProfile(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	return s.actor(ctx, actor)
}

// ListUsers returns every user. Only admins may call it; the role is read from
// the store, never from the token.
func (s *UserService) ListUsers(ctx context.Context, actor domain.Actor) ([]*domain.User, error) {
	user, err := s.actor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return users, nil
}

// UpdateUser applies a partial update to the actor's own record. Replaying the
// same update yields the same state.
func (s *UserService) UpdateUser(ctx context.Context, actor domain.Actor, update domain.UserUpdate) (*domain.User, error) {
	if update.Email != nil && *update.Email != actor.Email {
		return nil, domain.ErrEmailImmutable
	}

	user, err := s.actor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if update.Role != nil && *update.Role != user.Role && !user.IsAdmin() {
		return nil, domain.ErrRoleImmutable
	}
	if update.Password != nil {
		if err := checkPassword(*update.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*update.Password)
		if err != nil {
			return nil, domain.Internal(err)
		}
		user.PasswordHash = hash
	}
	if update.Role != nil {
		user.Role = *update.Role
	}
	applyUpdate(user, update)
	user.UpdatedAt = s.now().UTC()

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return nil, storeErr(err)
	}
	return updated, nil
}

// DeleteUser removes the actor's record and forgets its refresh token.
func (s *UserService) DeleteUser(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	user, err := s.actor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, user.ID); err != nil {
		return nil, storeErr(err)
	}
	if err := s.tokens.Revoke(ctx, user.ID); err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("revoke tokens of deleted user")
	}
	s.log.Info().Int64("user_id", user.ID).Msg("user deleted")
	return user, nil
}

// EnsureAdmin creates the bootstrap admin account, or promotes it if it exists
// with a lesser role. Calling it repeatedly is harmless.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		if _, err := s.Register(ctx, domain.RegisterPayload{Email: email, Password: password}); err != nil && !errors.Is(err, domain.ErrUserExists) {
			return nil, err
		}
		if user, err = s.repo.FindByEmail(ctx, email); err != nil {
			return nil, domain.Internal(err)
		}
	case err != nil:
		return nil, domain.Internal(err)
	}
	if user.IsAdmin() {
		return user, nil
	}
	user.Role = domain.RoleAdmin
	user.UpdatedAt = s.now().UTC()
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return nil, storeErr(err)
	}
	return updated, nil
}

// actor loads the current record of the identity a token vouches for.
func (s *UserService) actor(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, storeErr(err)
	}
	if user.Email != actor.Email {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func checkPassword(password string) error {
	if password == "" {
		return domain.ErrPasswordRequired
	}
	if len(password) < domain.MinPasswordLength {
		return domain.ErrPasswordTooShort
	}
	return nil
}

// storeErr passes typed store errors through and wraps anything else.
func storeErr(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	return domain.Internal(err)
}

func applyProfile(u *domain.User, p domain.Profile) {
	u.FirstName = p.FirstName
	u.LastName = p.LastName
	u.Avatar = p.Avatar
	u.Phone = p.Phone
	u.Address = p.Address
	u.City = p.City
	u.Country = p.Country
	u.PostalCode = p.PostalCode
	if u.Country == "" {
		u.Country = domain.DefaultCountry
	}
	if u.PostalCode == "" {
		u.PostalCode = domain.DefaultPostalCode
	}
}

func applyUpdate(u *domain.User, upd domain.UserUpdate) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&u.FirstName, upd.FirstName)
	set(&u.LastName, upd.LastName)
	set(&u.Avatar, upd.Avatar)
	set(&u.Phone, upd.Phone)
	set(&u.Address, upd.Address)
	set(&u.City, upd.City)
	set(&u.Country, upd.Country)
	set(&u.PostalCode, upd.PostalCode)
}
