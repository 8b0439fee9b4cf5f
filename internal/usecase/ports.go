package usecase

import (
	"context"
	"math/big"
	"time"

	faucet "github.com/agentfaucet/faucetd"
	"github.com/agentfaucet/faucetd/client"
	"github.com/agentfaucet/faucetd/internal/domain"
	"github.com/agentfaucet/faucetd/reputation"
)

// IdentityRepository defines persistence/lookup for identities.
type IdentityRepository interface {
	Create(ctx context.Context, identity domain.Identity) (domain.Identity, error)
	Get(ctx context.Context, subject string) (domain.Identity, error)
	GetByUsername(ctx context.Context, username string) (domain.Identity, error)
	RotateToken(ctx context.Context, subject string, tok string) (int64, error)
	SetToken(ctx context.Context, subject string, tok string) error
	SetAgentTokenID(ctx context.Context, subject string, agentTokenID int64) error
	Count(ctx context.Context) (int64, error)
}

// LedgerRepository defines the daily usage counter with its reserve/commit/
// release discipline.
type LedgerRepository interface {
	Reserve(ctx context.Context, subject, day string, amountWei, quotaWei int64) (domain.Reservation, error)
	Commit(ctx context.Context, reservation domain.Reservation, claim domain.Claim) error
	Release(ctx context.Context, reservation domain.Reservation) error
	Discard(ctx context.Context, reservation domain.Reservation) error
	ClaimedOn(ctx context.Context, subject, day string) (int64, error)
	StaleReservations(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error)
}

// ClaimRepository defines the read side of the dispensation record plus the
// idempotency outcome store.
type ClaimRepository interface {
	CountBySubject(ctx context.Context, subject string) (int64, error)
	Count(ctx context.Context) (int64, error)
	TotalDistributed(ctx context.Context) (string, error)
	CountFundedWallets(ctx context.Context) (int64, error)
	GetIdempotent(ctx context.Context, subject, key string) (string, bool, error)
	StoreIdempotent(ctx context.Context, subject, key, response string, ttl time.Duration) error
	HasClaimForReservation(ctx context.Context, reservationID int64) (bool, error)
}

// CampaignRepository defines persistence for sponsor deposits and returns.
type CampaignRepository interface {
	RecordCampaign(ctx context.Context, campaign domain.Campaign) error
	ListBySponsor(ctx context.Context, sponsorAddress string) ([]domain.Campaign, error)
	TotalSponsored(ctx context.Context) (string, error)
	RecordReturn(ctx context.Context, ret domain.TokenReturn) error
	TotalReturned(ctx context.Context) (string, error)
}

// ChainGateway encapsulates settlement: outbound pool transfers, identity
// registration and inbound transaction verification.
type ChainGateway interface {
	Transfer(ctx context.Context, to string, amountWei *big.Int, agentTokenID int64) (string, error)
	PoolBalance(ctx context.Context) (*big.Int, error)
	RegisterAgent(ctx context.Context, agentURI string) (int64, error)
	VerifyDeposit(ctx context.Context, txHash string) (string, *big.Int, error)
	VerifyReturn(ctx context.Context, txHash string) (string, *big.Int, error)
}

// ReputationGateway reads the subject's provider profile as scorer signals.
type ReputationGateway interface {
	Signals(ctx context.Context, accessToken string) (reputation.Signals, client.Profile, error)
}

// EventPublisher fans committed dispensations out to realtime subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, event faucet.DispensationEvent) error
}
