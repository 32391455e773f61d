package models

import "time"

type Session struct {
	User  User
	Token string
	// ExpiresAt is the token's exp claim, zero for opaque tokens.
	ExpiresAt time.Time
}
