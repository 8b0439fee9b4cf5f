package domain

import "time"

// Identity is a reputation-bearing principal derived from an external
// account. Quota is a deterministic function of Score via the tier table and
// is recomputed only at creation or explicit regeneration, never per claim.
type Identity struct {
	Subject         string `json:"subject"`
	Username        string `json:"username"`
	AvatarURL       string `json:"avatarUrl,omitempty"`
	Score           int    `json:"score"`
	Tier            int    `json:"tier"`
	DailyLimitWei   int64  `json:"dailyLimitWei"`
	AgentTokenID    *int64 `json:"agentTokenId,omitempty"`
	TokenGeneration int64  `json:"tokenGeneration"`
	Token           string `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

// Claim is the immutable record of one successfully executed dispensation.
// It exists if and only if the external transfer was confirmed successful.
type Claim struct {
	ID            string    `json:"id"`
	Subject       string    `json:"subject"`
	WalletAddress string    `json:"walletAddress"`
	AmountWei     int64     `json:"amountWei"`
	TxHash        string    `json:"txHash"`
	AgentTokenID  *int64    `json:"agentTokenId,omitempty"`
	ReservationID int64     `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Reservation is a provisional increment of the daily usage counter, taken
// before the external transfer is attempted and resolved by commit or
// release. Persisted so a crash between reserve and resolve is recoverable.
type Reservation struct {
	ID        int64     `json:"id"`
	Subject   string    `json:"subject"`
	Day       string    `json:"day"`
	AmountWei int64     `json:"amountWei"`
	CreatedAt time.Time `json:"createdAt"`
}

// Campaign is one verified sponsor deposit into the pool.
type Campaign struct {
	ID             int64     `json:"id"`
	SponsorAddress string    `json:"sponsorAddress"`
	Name           string    `json:"name"`
	DepositTxHash  string    `json:"depositTxHash"`
	AmountWei      string    `json:"amountWei"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TokenReturn is one verified return of previously dispensed funds.
type TokenReturn struct {
	ID          int64     `json:"id"`
	FromAddress string    `json:"fromAddress"`
	TxHash      string    `json:"txHash"`
	AmountWei   string    `json:"amountWei"`
	CreatedAt   time.Time `json:"createdAt"`
}
