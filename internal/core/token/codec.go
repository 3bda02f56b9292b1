// Package token signs and parses the JWTs exchanged between the gateway and the
// identity service.
//
// Decode and Verify are intentionally separate: Decode reads claims without any
// trust and is only good for extracting a lookup key; Verify checks signature,
// algorithm, expiry and token type before the claims may be relied upon.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/99minutos/identity-system/internal/core/domain"
)

// Type distinguishes access tokens from refresh tokens.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

var (
	ErrMalformed   = errors.New("token: malformed")
	ErrInvalid     = errors.New("token: invalid")
	ErrWrongType   = errors.New("token: wrong type")
	ErrEmptySecret = errors.New("token: empty signing secret")
)

// Claims is the payload of both token types.
type Claims struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
	Type   Type   `json:"typ"`
	jwt.RegisteredClaims
}

// Actor returns the identity the claims vouch for.
func (c *Claims) Actor() domain.Actor {
	return domain.Actor{UserID: c.UserID, Email: c.Email}
}

// Codec signs and parses HS256 tokens with a shared secret.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewCodec(secret string, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Codec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

func (c *Codec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// SignAccess issues a short-lived access token for user.
func (c *Codec) SignAccess(userID int64, email, role string) (string, error) {
	return c.sign(userID, email, role, TypeAccess, c.accessTTL)
}

// SignRefresh issues a long-lived refresh token for user. Every call yields a
// distinct token thanks to a random jti.
func (c *Codec) SignRefresh(userID int64, email, role string) (string, error) {
	return c.sign(userID, email, role, TypeRefresh, c.refreshTTL)
}

func (c *Codec) sign(userID int64, email, role string, typ Type, ttl time.Duration) (string, error) {
	now := c.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Decode reads the claims of raw without checking signature or expiry. The
// result must never be trusted on its own.
func (c *Codec) Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	return claims, nil
}

// Verify checks signature, algorithm and expiry of raw and that it is of the
// expected type.
func (c *Codec) Verify(raw string, want Type) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !tkn.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if claims.Type != want {
		return nil, ErrWrongType
	}
	return claims, nil
}

// VerifyAccess is the stateless fast path used on every authenticated request.
func (c *Codec) VerifyAccess(raw string) (*Claims, error) {
	return c.Verify(raw, TypeAccess)
}

// VerifyRefresh verifies raw as a refresh token.
func (c *Codec) VerifyRefresh(raw string) (*Claims, error) {
	return c.Verify(raw, TypeRefresh)
}
