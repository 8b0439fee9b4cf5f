package models

import (
	"time"
)

type Identity struct {
	Subject         string    `json:"subject" gorm:"primaryKey;type:text"`
	Username        string    `json:"username" gorm:"type:text;not null"`
	AvatarURL       string    `json:"avatarUrl" gorm:"type:text"`
	ReputationScore int       `json:"reputationScore" gorm:"not null;default:0"`
	Tier            int       `json:"tier" gorm:"not null;default:1"`
	DailyLimitWei   int64     `json:"dailyLimitWei" gorm:"type:bigint;not null"`
	AgentTokenID    *int64    `json:"agentTokenId" gorm:"type:bigint"`
	TokenGeneration int64     `json:"tokenGeneration" gorm:"type:bigint;not null;default:1"`
	Token           string    `json:"-" gorm:"type:text"`
	CDate           time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// DailyUsage is the per (identity, UTC day) consumption counter. ClaimedWei
// only moves through the ledger's conditional increment/decrement; rows are
// never deleted.
type DailyUsage struct {
	Subject    string   `json:"subject" gorm:"primaryKey;type:text"`
	Identity   Identity `json:"-" gorm:"foreignKey:Subject;references:Subject;constraint:OnDelete:CASCADE;"`
	Day        string   `json:"day" gorm:"primaryKey;type:text"`
	ClaimedWei int64    `json:"claimedWei" gorm:"type:bigint;not null;default:0"`
}

type Reservation struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Subject   string    `json:"subject" gorm:"type:text;index;not null"`
	Day       string    `json:"day" gorm:"type:text;not null"`
	AmountWei int64     `json:"amountWei" gorm:"type:bigint;not null"`
	CDate     time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp();index"`
}

type Claim struct {
	ID            string    `json:"id" gorm:"primaryKey;type:text"`
	Subject       string    `json:"subject" gorm:"type:text;index;not null"`
	Identity      Identity  `json:"-" gorm:"foreignKey:Subject;references:Subject;constraint:OnDelete:CASCADE;"`
	WalletAddress string    `json:"walletAddress" gorm:"type:text;index"`
	AmountWei     int64     `json:"amountWei" gorm:"type:bigint;not null"`
	TxHash        string    `json:"txHash" gorm:"type:text;uniqueIndex"`
	AgentTokenID  *int64    `json:"agentTokenId" gorm:"type:bigint"`
	ReservationID int64     `json:"-" gorm:"type:bigint;index"`
	CDate         time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type Campaign struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	SponsorAddress string    `json:"sponsorAddress" gorm:"type:text;index;not null"`
	Name           string    `json:"name" gorm:"type:text;not null"`
	DepositTxHash  string    `json:"depositTxHash" gorm:"type:text;uniqueIndex"`
	AmountWei      string    `json:"amountWei" gorm:"type:numeric(78,0);not null"`
	CDate          time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type TokenReturn struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	FromAddress string    `json:"fromAddress" gorm:"type:text;index"`
	TxHash      string    `json:"txHash" gorm:"type:text;uniqueIndex"`
	AmountWei   string    `json:"amountWei" gorm:"type:numeric(78,0);not null"`
	CDate       time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// IdempotencyKey stores the outcome of a completed claim keyed by
// (subject, client key), replayed verbatim on retry.
type IdempotencyKey struct {
	Subject   string    `json:"subject" gorm:"primaryKey;type:text"`
	Key       string    `json:"key" gorm:"primaryKey;type:text"`
	Response  string    `json:"response" gorm:"type:text;not null"`
	CDate     time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"type:timestamp with time zone;not null;index"`
}
