package models

import "github.com/golang-jwt/jwt/v5"

// UserClaims is the JWT payload issued at login and read by the auth
// middleware.
type UserClaims struct {
	jwt.RegisteredClaims
	UserID       uint      `json:"user_id"`
	Kind         ActorKind `json:"kind"`
	Email        string    `json:"email"`
	TokenVersion int       `json:"token_version"`
}

// Actor returns the authenticated identity.
func (c *UserClaims) Actor() ActorRef {
	kind := c.Kind
	if kind == "" {
		kind = ActorUser
	}
	return ActorRef{Kind: kind, ID: c.UserID}
}
