package domain

import "time"

// Credential is an organization's stored OAuth token pair for one provider.
// AccessToken and RefreshToken are encrypted at rest; the plaintext secret
// is never persisted.
type Credential struct {
	OrganizationID string    `json:"organization_id" bson:"organization_id"`
	Provider       Provider  `json:"provider" bson:"provider"`
	AccountID      string    `json:"account_id" bson:"account_id"` // provider seller/account id
	ShopID         string    `json:"shop_id" bson:"shop_id"`       // shop id where the provider requires one
	AccessToken    string    `json:"-" bson:"access_token"`        // encrypted
	RefreshToken   string    `json:"-" bson:"refresh_token"`       // encrypted
	ExpiresAt      time.Time `json:"expires_at" bson:"expires_at"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// ExpiresWithin reports whether the credential expires before now+skew.
func (c *Credential) ExpiresWithin(now time.Time, skew time.Duration) bool {
	return !now.Before(c.ExpiresAt.Add(-skew))
}
