package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles known to the portal. Admins manage everything, node officers
// create and manage metadata for their own organization.
const (
	RoleAdmin       = "ADMIN"
	RoleNodeOfficer = "NODE_OFFICER"
	RoleUser        = "USER"
)

type User struct {
	ID              string     `db:"id" json:"id"`
	Email           string     `db:"email" json:"email"`
	PasswordHash    *string    `db:"password_hash" json:"-"`
	Name            string     `db:"name" json:"name"`
	Role            string     `db:"role" json:"role"`
	Organization    *string    `db:"organization" json:"organization,omitempty"`
	Department      *string    `db:"department" json:"department,omitempty"`
	Phone           *string    `db:"phone" json:"phone,omitempty"`
	Image           *string    `db:"image" json:"image,omitempty"`
	EmailVerifiedAt *time.Time `db:"email_verified_at" json:"emailVerifiedAt,omitempty"`
	Disabled        bool       `db:"disabled" json:"disabled"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// Claims defines the structure of the session token. The role claim is
// re-derived from the user row at issuance, never taken from client input.
type Claims struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	DeviceID      string `json:"device_id"`
	EmailVerified bool   `json:"email_verified"`
	// ProviderExpiresAt carries the upstream provider's access token expiry
	// (unix seconds) for OAuth sessions; zero for credential sessions.
	ProviderExpiresAt int64 `json:"provider_expires_at,omitempty"`
	// RefreshError is set when an upstream token refresh failed. The prior
	// claims are kept intact; protected routes treat the token as
	// unauthenticated while sign-out remains possible.
	RefreshError string `json:"refresh_error,omitempty"`
	jwt.RegisteredClaims
}
