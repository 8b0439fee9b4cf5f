package usecase

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/bradfitz/gomemcache/memcache"

	faucet "github.com/agentfaucet/faucetd"
	"github.com/agentfaucet/faucetd/internal/domain"
)

const statsCacheKey = "af:stats"

// StatsUsecase aggregates the public faucet counters. The aggregate hits
// every table plus an RPC balance read, so results are cached in memcached
// for a short window.
type StatsUsecase struct {
	config    domain.Config
	identity  IdentityRepository
	claims    ClaimRepository
	campaigns CampaignRepository
	chain     ChainGateway
	mc        *memcache.Client
}

func NewStatsUsecase(
	config domain.Config,
	identity IdentityRepository,
	claims ClaimRepository,
	campaigns CampaignRepository,
	chain ChainGateway,
	mc *memcache.Client,
) *StatsUsecase {
	return &StatsUsecase{
		config:    config,
		identity:  identity,
		claims:    claims,
		campaigns: campaigns,
		chain:     chain,
		mc:        mc,
	}
}

func (uc *StatsUsecase) Stats(ctx context.Context) (faucet.StatsResponse, error) {

	if uc.mc != nil {
		if item, err := uc.mc.Get(statsCacheKey); err == nil {
			var cached faucet.StatsResponse
			if err := json.Unmarshal(item.Value, &cached); err == nil {
				return cached, nil
			}
		}
	}

	balance, err := uc.chain.PoolBalance(ctx)
	if err != nil {
		return faucet.StatsResponse{}, err
	}

	totalClaims, err := uc.claims.Count(ctx)
	if err != nil {
		return faucet.StatsResponse{}, err
	}

	developers, err := uc.identity.Count(ctx)
	if err != nil {
		return faucet.StatsResponse{}, err
	}

	distributed, err := uc.claims.TotalDistributed(ctx)
	if err != nil {
		return faucet.StatsResponse{}, err
	}

	returned, err := uc.campaigns.TotalReturned(ctx)
	if err != nil {
		return faucet.StatsResponse{}, err
	}

	response := faucet.StatsResponse{
		PoolBalance:      faucet.FormatEther(balance),
		TotalClaims:      totalClaims,
		UniqueDevelopers: developers,
		TotalDistributed: formatWeiString(distributed),
		TotalReturned:    formatWeiString(returned),
	}

	if uc.mc != nil {
		if body, err := json.Marshal(response); err == nil {
			uc.mc.Set(&memcache.Item{
				Key:        statsCacheKey,
				Value:      body,
				Expiration: int32(uc.config.StatsCacheTTL.Seconds()),
			})
		}
	}

	return response, nil
}

// formatWeiString renders a database wei sum (decimal string, possibly wider
// than int64) in whole-currency units.
func formatWeiString(wei string) string {
	n, ok := new(big.Int).SetString(wei, 10)
	if !ok {
		return "0"
	}
	return faucet.FormatEther(n)
}
