package model

import (
	"slices"
	"strings"
	"time"
)

type Role string

const (
	RoleLibrarian Role = "ROLE_LIBRARIAN"
	RoleMember    Role = "ROLE_MEMBER"
)

// ParseRole accepts "librarian", "LIBRARIAN" or "ROLE_LIBRARIAN" style input.
func ParseRole(raw string) (Role, bool) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	if !strings.HasPrefix(name, "ROLE_") {
		name = "ROLE_" + name
	}

	switch Role(name) {
	case RoleLibrarian:
		return RoleLibrarian, true
	case RoleMember:
		return RoleMember, true
	default:
		return "", false
	}
}

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	MembershipID string    `json:"membership_id"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal is the identity attached to a request after its bearer token was verified.
type Principal struct {
	UserID     int64
	Identifier string
	Roles      []Role
}

func (p Principal) HasRole(role Role) bool {
	return slices.Contains(p.Roles, role)
}

func (p Principal) HasAnyRole(roles ...Role) bool {
	for _, role := range roles {
		if p.HasRole(role) {
			return true
		}
	}
	return false
}

func (p Principal) RoleNames() []string {
	names := make([]string, 0, len(p.Roles))
	for _, role := range p.Roles {
		names = append(names, string(role))
	}
	return names
}

// WhoAmI is the body of GET /auth/whoami.
type WhoAmI struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type UserList struct {
	Users []User `json:"users"`
}
