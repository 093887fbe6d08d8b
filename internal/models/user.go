package models

import (
	"time"

	"gorm.io/gorm"
)

// User statuses
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

// OAuthProviderWallet marks users created by wallet signature login.
const OAuthProviderWallet = "wallet"

type User struct {
	gorm.Model
	Username        string     `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Email           string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password        string     `gorm:"not null" json:"-"`
	Kind            ActorKind  `gorm:"size:50;not null;default:'user'" json:"kind"`
	OAuthProvider   *string    `gorm:"size:50" json:"oauth_provider,omitempty"`
	OAuthProviderID *string    `gorm:"size:255" json:"oauth_provider_id,omitempty"`
	Status          string     `gorm:"size:20;not null;default:'active'" json:"status"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP     string     `gorm:"size:45" json:"-"`
	TokenVersion    int        `gorm:"not null;default:1" json:"-"`
}

// Actor returns the user as an actor reference.
func (u *User) Actor() ActorRef {
	kind := u.Kind
	if kind == "" {
		kind = ActorUser
	}
	return ActorRef{Kind: kind, ID: u.ID}
}

// IsActive reports whether the user may log in.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
