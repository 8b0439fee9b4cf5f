package faucet

import (
	"time"
)

// ClaimRequest is the body of POST /api/v1/claim. Amount is a decimal string in
// human units (e.g. "0.005"); when empty the server default is used.
type ClaimRequest struct {
	WalletAddress  string `json:"walletAddress"`
	Amount         string `json:"amount,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type ClaimResponse struct {
	Success      bool   `json:"success"`
	TxHash       string `json:"txHash"`
	Amount       string `json:"amount"`
	Remaining    string `json:"remaining"`
	AgentTokenID *int64 `json:"agentTokenId,omitempty"`
}

type StatusResponse struct {
	Username     string `json:"username"`
	Score        int    `json:"score"`
	Tier         int    `json:"tier"`
	DailyLimit   string `json:"dailyLimit"`
	ClaimedToday string `json:"claimedToday"`
	Remaining    string `json:"remaining"`
	AgentTokenID *int64 `json:"agentTokenId,omitempty"`
	TotalClaims  int64  `json:"totalClaims"`
}

type StatsResponse struct {
	PoolBalance      string `json:"poolBalance"`
	TotalClaims      int64  `json:"totalClaims"`
	UniqueDevelopers int64  `json:"uniqueDevelopers"`
	TotalDistributed string `json:"totalDistributed"`
	TotalReturned    string `json:"totalReturned"`
}

// RegisterRequest is handed over by the fronting identity layer after a
// successful OAuth exchange. AccessToken is the provider token used to read
// the subject's public profile; it is never stored.
type RegisterRequest struct {
	Subject     string `json:"subject"`
	Username    string `json:"username"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
}

type RegisterResponse struct {
	Token      string `json:"token"`
	Score      int    `json:"score"`
	Tier       int    `json:"tier"`
	DailyLimit string `json:"dailyLimit"`
}

type RegenerateRequest struct {
	Subject string `json:"subject"`
}

type RegenerateResponse struct {
	Token string `json:"token"`
}

type MintRequest struct {
	Subject  string `json:"subject"`
	AgentURI string `json:"agentUri,omitempty"`
}

type MintResponse struct {
	AgentTokenID int64  `json:"agentTokenId"`
	Message      string `json:"message"`
}

type SponsorRecordRequest struct {
	TxHash         string `json:"txHash"`
	SponsorAddress string `json:"sponsorAddress"`
	CampaignName   string `json:"campaignName,omitempty"`
}

type CampaignSummary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Amount    string    `json:"amount"`
	TxHash    string    `json:"txHash"`
	CreatedAt time.Time `json:"createdAt"`
}

type SponsorStatsResponse struct {
	TotalSponsored   string            `json:"totalSponsored"`
	AgentsFunded     int64             `json:"agentsFunded"`
	SponsorDeposits  int               `json:"sponsorDeposits"`
	SponsorTotal     string            `json:"sponsorTotal"`
	SponsorCampaigns []CampaignSummary `json:"sponsorCampaigns"`
}

// AgentFile is the public JSON-LD agent registration document served for a
// minted identity, in the ERC-8004 shape. Identifier is nil until the agent
// token is minted.
type AgentFile struct {
	Context            string          `json:"@context"`
	Type               string          `json:"@type"`
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	Identifier         *string         `json:"identifier"`
	Provider           AgentProvider   `json:"provider"`
	AdditionalProperty []AgentProperty `json:"additionalProperty"`
}

type AgentProvider struct {
	Type string `json:"@type"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type AgentProperty struct {
	Type  string `json:"@type"`
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// DispensationEvent is published to redis on every committed claim and
// forwarded to realtime subscribers.
type DispensationEvent struct {
	Username  string    `json:"username"`
	Amount    string    `json:"amount"`
	TxHash    string    `json:"txHash"`
	Timestamp time.Time `json:"timestamp"`
}
