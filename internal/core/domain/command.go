package domain

// CommandTag discriminates the internal operations the identity service serves.
type CommandTag string

const (
	CmdRegister   CommandTag = "register"
	CmdLogin      CommandTag = "login"
	CmdRefresh    CommandTag = "refresh"
	CmdGetProfile CommandTag = "get_profile"
	CmdGetUsers   CommandTag = "get_users"
	CmdUpdateUser CommandTag = "update_user"
	CmdDeleteUser CommandTag = "delete_user"
)

// Commands lists every tag the identity service must handle.
var Commands = []CommandTag{
	CmdRegister,
	CmdLogin,
	CmdRefresh,
	CmdGetProfile,
	CmdGetUsers,
	CmdUpdateUser,
	CmdDeleteUser,
}

// Profile holds the optional, user-editable fields of an identity.
type Profile struct {
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

// RegisterPayload is the body of a register command.
type RegisterPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
	Profile
}

// LoginPayload is the body of a login command.
type LoginPayload struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshPayload is the body of a refresh command.
type RefreshPayload struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ActorPayload is the body of commands that act on the caller's own identity.
type ActorPayload struct {
	User Actor `json:"user"`
}

// UserUpdate is a partial update. Nil fields are left untouched.
type UserUpdate struct {
	Email      *string `json:"email,omitempty"`
	Password   *string `json:"password,omitempty"`
	Role       *string `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
	FirstName  *string `json:"firstName,omitempty"`
	LastName   *string `json:"lastName,omitempty"`
	Avatar     *string `json:"avatar,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Address    *string `json:"address,omitempty"`
	City       *string `json:"city,omitempty"`
	Country    *string `json:"country,omitempty"`
	PostalCode *string `json:"postalCode,omitempty"`
}

// UpdateUserPayload is the body of an update_user command.
type UpdateUserPayload struct {
	Data UserUpdate `json:"data"`
	User Actor      `json:"user"`
}
