package user

import "time"

// Role grants access to the admin back office.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Status gates login and write access.
type Status string

const (
	StatusActive Status = "active"
	StatusBanned Status = "banned"
)

// User is a storefront customer or administrator.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Nickname     string    `json:"nickname"`
	Avatar       string    `json:"avatar,omitempty"`
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Filter narrows user listings.
type Filter struct {
	Query  string
	Role   Role
	Status Status
}

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool { return r == RoleUser || r == RoleAdmin }

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool { return s == StatusActive || s == StatusBanned }
