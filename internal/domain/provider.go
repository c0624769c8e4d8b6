package domain

// Provider identifies a connected marketplace.
type Provider string

const (
	// ProviderMeli is the bearer-token marketplace (OAuth refresh flow).
	ProviderMeli Provider = "meli"
	// ProviderShopee is the HMAC-signed marketplace (partner_id/timestamp/sign).
	ProviderShopee Provider = "shopee"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	return p == ProviderMeli || p == ProviderShopee
}

// SignatureRule selects how an outbound request is authenticated.
type SignatureRule int

const (
	// RuleBearer sends the access token in an Authorization header; no signature.
	RuleBearer SignatureRule = iota
	// RulePathToken signs over accountID + path + timestamp + accessToken + shopID.
	RulePathToken
	// RulePathBody signs over accountID + path + timestamp + canonical body JSON.
	RulePathBody
)
