package models

import "time"

// Account links a user to an external identity provider. One user may hold
// several linked accounts (password plus OAuth). Uniqueness is on the
// (provider, provider_account_id) pair.
type Account struct {
	ID                string    `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"userId"`
	Provider          string    `db:"provider" json:"provider"`
	ProviderAccountID string    `db:"provider_account_id" json:"providerAccountId"`
	AccessToken       *string   `db:"access_token" json:"-"`
	RefreshToken      *string   `db:"refresh_token" json:"-"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

// ExternalIdentity is the payload of an identity-provider sync: the profile
// attributes the provider asserts about the signed-in user.
type ExternalIdentity struct {
	Provider          string
	ProviderAccountID string
	Email             string
	Name              string
	Image             *string
	AccessToken       string
	EmailVerified     bool
}
