package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/zeebo/xxh3"

	faucet "github.com/agentfaucet/faucetd"
	"github.com/agentfaucet/faucetd/internal/domain"
)

// ClaimUsecase authorizes and executes dispensations. A claim walks a fixed
// sequence: verify the caller, validate the request, reserve allowance,
// transfer on-chain, then commit or release. The ledger reservation is the
// pivot; whatever the transfer does, the reservation is resolved exactly once.
type ClaimUsecase struct {
	config   domain.Config
	identity IdentityRepository
	ledger   LedgerRepository
	claims   ClaimRepository
	chain    ChainGateway
	signal   EventPublisher
}

func NewClaimUsecase(
	config domain.Config,
	identity IdentityRepository,
	ledger LedgerRepository,
	claims ClaimRepository,
	chain ChainGateway,
	signal EventPublisher,
) *ClaimUsecase {
	return &ClaimUsecase{
		config:   config,
		identity: identity,
		ledger:   ledger,
		claims:   claims,
		chain:    chain,
		signal:   signal,
	}
}

// Claim runs one dispensation for the verified subject. generation is the
// token generation the caller presented; a stale generation is rejected even
// though the signature verified, because the token has been superseded.
func (uc *ClaimUsecase) Claim(ctx context.Context, subject string, generation int64, req faucet.ClaimRequest) (faucet.ClaimResponse, error) {

	identity, err := uc.identity.Get(ctx, subject)
	if err != nil {
		return faucet.ClaimResponse{}, err
	}

	if generation != identity.TokenGeneration {
		return faucet.ClaimResponse{}, domain.ErrUnauthorized
	}

	if !faucet.IsHexAddress(req.WalletAddress) {
		return faucet.ClaimResponse{}, domain.InvalidRequestError{Reason: "invalid wallet address"}
	}

	amountWei, err := uc.resolveAmount(req.Amount)
	if err != nil {
		return faucet.ClaimResponse{}, err
	}

	// The quota comes from the stored identity, not the token snapshot, so a
	// regeneration takes effect immediately.
	quotaWei := identity.DailyLimitWei

	if req.IdempotencyKey != "" {
		stored, found, err := uc.claims.GetIdempotent(ctx, subject, req.IdempotencyKey)
		if err != nil {
			return faucet.ClaimResponse{}, err
		}
		if found {
			var response faucet.ClaimResponse
			if err := json.Unmarshal([]byte(stored), &response); err == nil {
				return response, nil
			}
		}
	}

	day := time.Now().UTC().Format(domain.DayFormat)

	reservation, err := uc.ledger.Reserve(ctx, subject, day, amountWei, quotaWei)
	if err != nil {
		return faucet.ClaimResponse{}, err
	}

	var agentTokenID int64
	if identity.AgentTokenID != nil {
		agentTokenID = *identity.AgentTokenID
	}

	transferCtx, cancel := context.WithTimeout(ctx, uc.config.TransferTimeout)
	txHash, err := uc.chain.Transfer(transferCtx, req.WalletAddress, big.NewInt(amountWei), agentTokenID)
	cancel()
	if err != nil {
		if releaseErr := uc.ledger.Release(ctx, reservation); releaseErr != nil {
			// The reconciler will pick the reservation up once it goes stale.
			return faucet.ClaimResponse{}, fmt.Errorf("%w: %v (release also failed: %v)", domain.ErrTransferFailed, err, releaseErr)
		}
		return faucet.ClaimResponse{}, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}

	claim := domain.Claim{
		ID:            fmt.Sprintf("%016x", xxh3.HashString(subject+":"+txHash)),
		Subject:       subject,
		WalletAddress: req.WalletAddress,
		AmountWei:     amountWei,
		TxHash:        txHash,
		AgentTokenID:  identity.AgentTokenID,
		ReservationID: reservation.ID,
	}

	if err := uc.ledger.Commit(ctx, reservation, claim); err != nil {
		// The transfer is already on-chain; surface the error but never release.
		return faucet.ClaimResponse{}, err
	}

	claimed, err := uc.ledger.ClaimedOn(ctx, subject, day)
	if err != nil {
		claimed = quotaWei
	}
	remaining := quotaWei - claimed
	if remaining < 0 {
		remaining = 0
	}

	response := faucet.ClaimResponse{
		Success:      true,
		TxHash:       txHash,
		Amount:       faucet.FormatWei(amountWei),
		Remaining:    faucet.FormatWei(remaining),
		AgentTokenID: identity.AgentTokenID,
	}

	if req.IdempotencyKey != "" {
		if body, err := json.Marshal(response); err == nil {
			uc.claims.StoreIdempotent(ctx, subject, req.IdempotencyKey, string(body), uc.config.IdempotencyTTL)
		}
	}

	uc.signal.Publish(ctx, domain.DispensationChannel, faucet.DispensationEvent{
		Username:  identity.Username,
		Amount:    faucet.FormatWei(amountWei),
		TxHash:    txHash,
		Timestamp: time.Now().UTC(),
	})

	return response, nil
}

// Status reports the verified subject's current quota position.
func (uc *ClaimUsecase) Status(ctx context.Context, subject string, generation int64) (faucet.StatusResponse, error) {

	identity, err := uc.identity.Get(ctx, subject)
	if err != nil {
		return faucet.StatusResponse{}, err
	}

	if generation != identity.TokenGeneration {
		return faucet.StatusResponse{}, domain.ErrUnauthorized
	}

	day := time.Now().UTC().Format(domain.DayFormat)
	claimed, err := uc.ledger.ClaimedOn(ctx, subject, day)
	if err != nil {
		return faucet.StatusResponse{}, err
	}

	remaining := identity.DailyLimitWei - claimed
	if remaining < 0 {
		remaining = 0
	}

	totalClaims, err := uc.claims.CountBySubject(ctx, subject)
	if err != nil {
		return faucet.StatusResponse{}, err
	}

	return faucet.StatusResponse{
		Username:     identity.Username,
		Score:        identity.Score,
		Tier:         identity.Tier,
		DailyLimit:   faucet.FormatWei(identity.DailyLimitWei),
		ClaimedToday: faucet.FormatWei(claimed),
		Remaining:    faucet.FormatWei(remaining),
		AgentTokenID: identity.AgentTokenID,
		TotalClaims:  totalClaims,
	}, nil
}

func (uc *ClaimUsecase) resolveAmount(amount string) (int64, error) {
	if amount == "" {
		return uc.config.DefaultClaimWei, nil
	}

	wei, err := faucet.ParseEther(amount)
	if err != nil {
		return 0, domain.InvalidRequestError{Reason: fmt.Sprintf("invalid amount: %v", err)}
	}
	if wei.Sign() <= 0 {
		return 0, domain.InvalidRequestError{Reason: "amount must be positive"}
	}
	if !wei.IsInt64() {
		return 0, domain.InvalidRequestError{Reason: "amount out of range"}
	}

	return wei.Int64(), nil
}
