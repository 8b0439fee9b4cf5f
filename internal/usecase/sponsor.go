package usecase

import (
	"context"
	"math/big"
	"strings"

	faucet "github.com/agentfaucet/faucetd"
	"github.com/agentfaucet/faucetd/internal/domain"
)

// SponsorUsecase records verified pool deposits and token returns. Nothing is
// taken on faith; every record is backed by a confirmed on-chain transaction
// whose events the gateway decoded.
type SponsorUsecase struct {
	campaigns CampaignRepository
	claims    ClaimRepository
	chain     ChainGateway
}

func NewSponsorUsecase(
	campaigns CampaignRepository,
	claims ClaimRepository,
	chain ChainGateway,
) *SponsorUsecase {
	return &SponsorUsecase{
		campaigns: campaigns,
		claims:    claims,
		chain:     chain,
	}
}

// RecordDeposit verifies the deposit transaction on-chain and stores the
// campaign. The tx hash is unique, so replaying a record request is rejected
// as a duplicate rather than double-counted.
func (uc *SponsorUsecase) RecordDeposit(ctx context.Context, req faucet.SponsorRecordRequest) (domain.Campaign, error) {

	if req.TxHash == "" {
		return domain.Campaign{}, domain.InvalidRequestError{Reason: "txHash is required"}
	}

	sender, amount, err := uc.chain.VerifyDeposit(ctx, req.TxHash)
	if err != nil {
		return domain.Campaign{}, err
	}

	if req.SponsorAddress != "" && !strings.EqualFold(req.SponsorAddress, sender) {
		return domain.Campaign{}, domain.InvalidRequestError{Reason: "sponsor address does not match the deposit sender"}
	}

	name := req.CampaignName
	if name == "" {
		name = "unnamed"
	}

	campaign := domain.Campaign{
		SponsorAddress: sender,
		Name:           name,
		DepositTxHash:  req.TxHash,
		AmountWei:      amount.String(),
	}

	if err := uc.campaigns.RecordCampaign(ctx, campaign); err != nil {
		return domain.Campaign{}, err
	}

	return campaign, nil
}

// RecordReturn verifies the return transaction on-chain and stores it.
func (uc *SponsorUsecase) RecordReturn(ctx context.Context, txHash string) (domain.TokenReturn, error) {

	if txHash == "" {
		return domain.TokenReturn{}, domain.InvalidRequestError{Reason: "txHash is required"}
	}

	sender, amount, err := uc.chain.VerifyReturn(ctx, txHash)
	if err != nil {
		return domain.TokenReturn{}, err
	}

	ret := domain.TokenReturn{
		FromAddress: sender,
		TxHash:      txHash,
		AmountWei:   amount.String(),
	}

	if err := uc.campaigns.RecordReturn(ctx, ret); err != nil {
		return domain.TokenReturn{}, err
	}

	return ret, nil
}

// Stats aggregates the sponsorship view, optionally scoped to one sponsor
// address.
func (uc *SponsorUsecase) Stats(ctx context.Context, sponsorAddress string) (faucet.SponsorStatsResponse, error) {

	totalSponsored, err := uc.campaigns.TotalSponsored(ctx)
	if err != nil {
		return faucet.SponsorStatsResponse{}, err
	}

	agentsFunded, err := uc.claims.CountFundedWallets(ctx)
	if err != nil {
		return faucet.SponsorStatsResponse{}, err
	}

	response := faucet.SponsorStatsResponse{
		TotalSponsored:   formatWeiString(totalSponsored),
		AgentsFunded:     agentsFunded,
		SponsorTotal:     "0",
		SponsorCampaigns: []faucet.CampaignSummary{},
	}

	if sponsorAddress == "" {
		return response, nil
	}
	if !faucet.IsHexAddress(sponsorAddress) {
		return faucet.SponsorStatsResponse{}, domain.InvalidRequestError{Reason: "invalid sponsor address"}
	}

	campaigns, err := uc.campaigns.ListBySponsor(ctx, sponsorAddress)
	if err != nil {
		return faucet.SponsorStatsResponse{}, err
	}

	sponsorTotal := new(big.Int)
	for _, campaign := range campaigns {
		if amount, ok := new(big.Int).SetString(campaign.AmountWei, 10); ok {
			sponsorTotal.Add(sponsorTotal, amount)
		}
		response.SponsorCampaigns = append(response.SponsorCampaigns, faucet.CampaignSummary{
			ID:        campaign.ID,
			Name:      campaign.Name,
			Amount:    faucet.FormatEther(mustBig(campaign.AmountWei)),
			TxHash:    campaign.DepositTxHash,
			CreatedAt: campaign.CreatedAt,
		})
	}

	response.SponsorDeposits = len(campaigns)
	response.SponsorTotal = faucet.FormatEther(sponsorTotal)

	return response, nil
}

func mustBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}
