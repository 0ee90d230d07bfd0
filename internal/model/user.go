package model

import "time"

// Role is reflected in the UI only; authorization is enforced server-side.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// User is the profile returned by the "who am I" and login endpoints.
type User struct {
	ID        string     `json:"id" validate:"required"`
	Email     string     `json:"email" validate:"required,email"`
	Name      string     `json:"name"`
	Role      Role       `json:"role" validate:"required,oneof=student admin"`
	Plan      string     `json:"plan"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// IsAdmin reports whether the user should see administrative screens.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// LoginRequest is the credentials payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest creates a new student account.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// AuthResult is the payload of a successful login or registration.
type AuthResult struct {
	Token string `json:"token" validate:"required"`
	User  User   `json:"user"`
}

// UserUpdate is the admin payload for editing a user. Nil fields are left untouched.
type UserUpdate struct {
	Name *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Role *Role   `json:"role,omitempty" validate:"omitempty,oneof=student admin"`
	Plan *string `json:"plan,omitempty"`
}
