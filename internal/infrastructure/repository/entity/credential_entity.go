package entity

import (
	"time"

	"backoffice-marketsync-layer/internal/domain"
)

// MongoCredentialDoc represents a marketplace credential in MongoDB
type MongoCredentialDoc struct {
	OrganizationID string    `bson:"organizationId"`
	Provider       string    `bson:"provider"`
	AccountID      string    `bson:"accountId"`
	ShopID         string    `bson:"shopId"`
	AccessToken    string    `bson:"accessToken"`  // encrypted
	RefreshToken   string    `bson:"refreshToken"` // encrypted
	ExpiresAt      time.Time `bson:"expiresAt"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoCredentialDoc) ToDomain() *domain.Credential {
	return &domain.Credential{
		OrganizationID: d.OrganizationID,
		Provider:       domain.Provider(d.Provider),
		AccountID:      d.AccountID,
		ShopID:         d.ShopID,
		AccessToken:    d.AccessToken,
		RefreshToken:   d.RefreshToken,
		ExpiresAt:      d.ExpiresAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// MongoCredentialDocFromDomain converts a domain entity to a MongoDB document
func MongoCredentialDocFromDomain(cred *domain.Credential) *MongoCredentialDoc {
	return &MongoCredentialDoc{
		OrganizationID: cred.OrganizationID,
		Provider:       string(cred.Provider),
		AccountID:      cred.AccountID,
		ShopID:         cred.ShopID,
		AccessToken:    cred.AccessToken,
		RefreshToken:   cred.RefreshToken,
		ExpiresAt:      cred.ExpiresAt,
		CreatedAt:      cred.CreatedAt,
		UpdatedAt:      cred.UpdatedAt,
	}
}
