package domain

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const (
	DefaultCountry    = "Vietnam"
	DefaultPostalCode = "VN"

	// MinPasswordLength is the shortest plaintext secret accepted on register and update.
	MinPasswordLength = 6
)

// User models an identity held by the credential store.
//
// PasswordHash and RefreshToken are excluded from JSON so that every projection
// leaving the identity service is stripped of secrets.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	City         string    `json:"city,omitempty"`
	Country      string    `json:"country,omitempty"`
	PostalCode   string    `json:"postalCode,omitempty"`
	RefreshToken string    `json:"-"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Actor is the identity a verified access token vouches for. The gateway
// attaches it to every authenticated command.
type Actor struct {
	UserID int64  `json:"userId" validate:"required,gt=0"`
	Email  string `json:"email" validate:"required"`
}

// TokenPair is returned by a successful login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AccessToken is returned by a successful refresh; the refresh token is not rotated.
type AccessToken struct {
	AccessToken string `json:"access_token"`
}
