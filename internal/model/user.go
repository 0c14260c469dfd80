package model

import (
	"slices"
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash *string   `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name,omitempty" db:"first_name"`
	LastName     string    `json:"last_name,omitempty" db:"last_name"`
	Phone        string    `json:"phone,omitempty" db:"phone"`
	ProfileImage string    `json:"profile_image,omitempty" db:"profile_image"`
	Bio          string    `json:"bio,omitempty" db:"bio"`
	TokenVersion int       `json:"-" db:"token_version"`
	Roles        []string  `json:"roles" db:"roles"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Sanitized returns a copy of the user without its password hash.
func (u User) Sanitized() User {
	u.PasswordHash = nil
	u.Roles = slices.Clone(u.Roles)
	return u
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		ProfileImage: u.ProfileImage,
		Bio:          u.Bio,
	}
}

// TokenUser is the user projection embedded in access tokens.
type TokenUser struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

func (u TokenUser) HasRole(role string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func (u User) TokenUser() TokenUser {
	return TokenUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Roles:    slices.Clone(u.Roles),
	}
}

type PublicUser struct {
	ID           int64  `json:"id" db:"id"`
	Username     string `json:"username" db:"username"`
	FirstName    string `json:"first_name,omitempty" db:"first_name"`
	LastName     string `json:"last_name,omitempty" db:"last_name"`
	ProfileImage string `json:"profile_image,omitempty" db:"profile_image"`
	Bio          string `json:"bio,omitempty" db:"bio"`
}

type Profile struct {
	PublicUser
	FriendStatus    FriendRequestStatus `json:"friend_status,omitempty"`
	FriendRequestID *int64              `json:"friend_request_id,omitempty"`
}

// UserPatch holds the optional fields of a profile update.
type UserPatch struct {
	Username  *string `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Bio       *string `json:"bio"`
}

type UserSearchQuery struct {
	Query string
	Page  int
	Limit int
}
