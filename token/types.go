package token

type Header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
}

// Claims is the signed snapshot an entitlement token carries. The quota
// fields are informational; the usage ledger is authoritative at claim time.
type Claims struct {
	Subject        string `json:"sub"`
	Username       string `json:"username"`
	Score          int    `json:"score"`
	Tier           int    `json:"tier"`
	DailyLimitWei  string `json:"dailyLimitWei"`
	AgentTokenID   *int64 `json:"agentTokenId"`
	Generation     int64  `json:"generation"`
	Provider       string `json:"provider"`
	Issuer         string `json:"iss,omitempty"`
	IssuedAt       string `json:"iat,omitempty"`
	ExpirationTime string `json:"exp,omitempty"`
}
