package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-system/internal/core/domain"
	"github.com/99minutos/identity-system/internal/core/ports"
	"github.com/99minutos/identity-system/internal/core/token"
	"github.com/99minutos/identity-system/internal/metrics"
)

const defaultCacheTTL = 24 * time.Hour

// TokenService issues, verifies and renews session tokens.
//
// The currently valid refresh token of each user is tracked twice: in the
// cache (fast, may lose entries) and on the user record (authoritative). The
// cache TTL is independent of, and usually shorter than, the refresh token TTL.
type TokenService struct {
	codec    *token.Codec
	cache    ports.TokenCache
	users    ports.UserRepository
	cacheTTL time.Duration
	log      zerolog.Logger
}

func NewTokenService(codec *token.Codec, cache ports.TokenCache, users ports.UserRepository, cacheTTL time.Duration, log zerolog.Logger) *TokenService {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &TokenService{codec: codec, cache: cache, users: users, cacheTTL: cacheTTL, log: log}
}

// Issue signs a new token pair for user and makes the refresh token the one
// tracked for that user, replacing any previous one. Both tiers are written
// before Issue returns.
func (s *TokenService) Issue(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	access, err := s.codec.SignAccess(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, domain.Internal(err)
	}
	refresh, err := s.codec.SignRefresh(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, domain.Internal(err)
	}

	if err := s.users.SetRefreshToken(ctx, user.ID, refresh); err != nil {
		return nil, domain.Internal(err)
	}
	// A stale cache entry would shadow the stored token, so a failed cache
	// write fails the whole issue and the old entry is dropped.
	if err := s.cache.Set(ctx, user.ID, refresh, s.cacheTTL); err != nil {
		if derr := s.cache.Delete(ctx, user.ID); derr != nil {
			s.log.Warn().Err(derr).Int64("user_id", user.ID).Msg("token cache evict failed")
		}
		return nil, domain.Internal(err)
	}

	metrics.TokensIssuedTotal.Inc()
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess checks an access token's signature and expiry. No store is consulted.
func (s *TokenService) VerifyAccess(raw string) (*token.Claims, error) {
	claims, err := s.codec.VerifyAccess(raw)
	if err != nil {
		return nil, domain.ErrInvalidAccessToken
	}
	return claims, nil
}

// Rotate mints a new access token from a refresh token. The refresh token is
// accepted only if it is exactly the one currently tracked for its subject and
// it still verifies. The refresh token itself is left unchanged. The new access
// token carries the subject's stored email and role, so promotions and
// demotions take effect on the next refresh.
func (s *TokenService) Rotate(ctx context.Context, raw string) (string, error) {
	decoded, err := s.codec.Decode(raw)
	if err != nil {
		return "", domain.ErrInvalidRefreshToken
	}
	log := s.log.With().Int64("user_id", decoded.UserID).Logger()

	source := "cache"
	current, hit, err := s.cache.Get(ctx, decoded.UserID)
	if err != nil {
		log.Warn().Err(err).Msg("token cache read failed, falling back to store")
		hit = false
	}

	var user *domain.User
	if !hit {
		source = "store"
		if user, err = s.subject(ctx, decoded.UserID); err != nil {
			if errors.Is(err, domain.ErrInvalidRefreshToken) {
				metrics.TokenRefreshTotal.WithLabelValues(source, "rejected").Inc()
			}
			return "", err
		}
		current = user.RefreshToken
	}

	if current == "" || subtle.ConstantTimeCompare([]byte(current), []byte(raw)) != 1 {
		metrics.TokenRefreshTotal.WithLabelValues(source, "rejected").Inc()
		log.Debug().Str("source", source).Msg("refresh token does not match tracked token")
		return "", domain.ErrInvalidRefreshToken
	}

	claims, err := s.codec.VerifyRefresh(current)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues(source, "rejected").Inc()
		return "", domain.ErrInvalidRefreshToken
	}

	if hit {
		if user, err = s.subject(ctx, claims.UserID); err != nil {
			if errors.Is(err, domain.ErrInvalidRefreshToken) {
				metrics.TokenRefreshTotal.WithLabelValues(source, "rejected").Inc()
			}
			return "", err
		}
	} else if err := s.cache.Set(ctx, claims.UserID, current, s.cacheTTL); err != nil {
		log.Warn().Err(err).Msg("token cache repopulate failed")
	}

	access, err := s.codec.SignAccess(user.ID, user.Email, user.Role)
	if err != nil {
		return "", domain.Internal(err)
	}
	metrics.TokenRefreshTotal.WithLabelValues(source, "ok").Inc()
	return access, nil
}

// subject loads the owner of a refresh token. A vanished user invalidates the token.
func (s *TokenService) subject(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidRefreshToken
		}
		return nil, domain.Internal(err)
	}
	return user, nil
}

// Revoke forgets the tracked refresh token of userID in both tiers.
func (s *TokenService) Revoke(ctx context.Context, userID int64) error {
	if err := s.cache.Delete(ctx, userID); err != nil {
		return domain.Internal(err)
	}
	if err := s.users.SetRefreshToken(ctx, userID, ""); err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return domain.Internal(err)
	}
	return nil
}
