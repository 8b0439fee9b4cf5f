package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	faucet "github.com/agentfaucet/faucetd"
	"github.com/agentfaucet/faucetd/internal/domain"
	"github.com/agentfaucet/faucetd/reputation"
	"github.com/agentfaucet/faucetd/token"
)

// IdentityUsecase covers registration, token regeneration and the agent
// identity mint.
type IdentityUsecase struct {
	config     domain.Config
	identity   IdentityRepository
	reputation ReputationGateway
	chain      ChainGateway
	issuer     *token.Issuer
}

func NewIdentityUsecase(
	config domain.Config,
	identity IdentityRepository,
	reputation ReputationGateway,
	chain ChainGateway,
	issuer *token.Issuer,
) *IdentityUsecase {
	return &IdentityUsecase{
		config:     config,
		identity:   identity,
		reputation: reputation,
		chain:      chain,
		issuer:     issuer,
	}
}

// Register scores the subject's provider profile, derives the tier and quota,
// persists the identity and issues its first entitlement token. A scoring
// failure does not block registration; the identity falls back to score zero
// at the lowest tier and can regenerate later.
func (uc *IdentityUsecase) Register(ctx context.Context, req faucet.RegisterRequest) (faucet.RegisterResponse, error) {

	if req.Subject == "" || req.Username == "" {
		return faucet.RegisterResponse{}, domain.InvalidRequestError{Reason: "subject and username are required"}
	}

	score := 0
	if req.AccessToken != "" {
		signals, _, err := uc.reputation.Signals(ctx, req.AccessToken)
		if err != nil {
			slog.Warn("reputation scoring failed, falling back to lowest tier",
				slog.String("subject", req.Subject),
				slog.String("error", err.Error()),
			)
		} else {
			score, _ = reputation.Score(signals, time.Now())
		}
	}

	tier, quotaWei := reputation.Resolve(score)

	identity, err := uc.identity.Create(ctx, domain.Identity{
		Subject:       req.Subject,
		Username:      req.Username,
		AvatarURL:     req.AvatarURL,
		Score:         score,
		Tier:          tier,
		DailyLimitWei: quotaWei,
	})
	if err != nil {
		return faucet.RegisterResponse{}, err
	}

	tok, err := uc.issue(identity)
	if err != nil {
		return faucet.RegisterResponse{}, err
	}

	if err := uc.identity.SetToken(ctx, identity.Subject, tok); err != nil {
		return faucet.RegisterResponse{}, err
	}

	return faucet.RegisterResponse{
		Token:      tok,
		Score:      identity.Score,
		Tier:       identity.Tier,
		DailyLimit: faucet.FormatWei(identity.DailyLimitWei),
	}, nil
}

// Regenerate bumps the token generation and issues a fresh token from the
// stored identity snapshot. Every previously issued token stops verifying
// against the stored generation from this point on.
func (uc *IdentityUsecase) Regenerate(ctx context.Context, subject string) (faucet.RegenerateResponse, error) {

	identity, err := uc.identity.Get(ctx, subject)
	if err != nil {
		return faucet.RegenerateResponse{}, err
	}

	identity.TokenGeneration++
	tok, err := uc.issue(identity)
	if err != nil {
		return faucet.RegenerateResponse{}, err
	}

	generation, err := uc.identity.RotateToken(ctx, subject, tok)
	if err != nil {
		return faucet.RegenerateResponse{}, err
	}

	// A concurrent rotation may have advanced further; reissue against the
	// generation that actually landed.
	if generation != identity.TokenGeneration {
		identity.TokenGeneration = generation
		tok, err = uc.issue(identity)
		if err != nil {
			return faucet.RegenerateResponse{}, err
		}
		if err := uc.identity.SetToken(ctx, subject, tok); err != nil {
			return faucet.RegenerateResponse{}, err
		}
	}

	return faucet.RegenerateResponse{Token: tok}, nil
}

// Mint registers the subject's agent URI on the identity registry. Minting is
// idempotent; a subject that already holds an agent token gets it back without
// touching the chain.
func (uc *IdentityUsecase) Mint(ctx context.Context, req faucet.MintRequest) (faucet.MintResponse, error) {

	identity, err := uc.identity.Get(ctx, req.Subject)
	if err != nil {
		return faucet.MintResponse{}, err
	}

	if identity.AgentTokenID != nil {
		return faucet.MintResponse{
			AgentTokenID: *identity.AgentTokenID,
			Message:      "already registered",
		}, nil
	}

	agentURI := req.AgentURI
	if agentURI == "" {
		agentURI = fmt.Sprintf("%s/%s", uc.config.AgentURIBase, identity.Username)
	}

	transferCtx, cancel := context.WithTimeout(ctx, uc.config.TransferTimeout)
	agentTokenID, err := uc.chain.RegisterAgent(transferCtx, agentURI)
	cancel()
	if err != nil {
		return faucet.MintResponse{}, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}

	if err := uc.identity.SetAgentTokenID(ctx, req.Subject, agentTokenID); err != nil {
		return faucet.MintResponse{}, err
	}

	// Re-sign the stored token so its snapshot carries the agent id. The
	// generation stays put; outstanding tokens remain valid.
	identity.AgentTokenID = &agentTokenID
	tok, err := uc.issue(identity)
	if err != nil {
		return faucet.MintResponse{}, err
	}
	if err := uc.identity.SetToken(ctx, req.Subject, tok); err != nil {
		return faucet.MintResponse{}, err
	}

	return faucet.MintResponse{
		AgentTokenID: agentTokenID,
		Message:      "agent identity registered",
	}, nil
}

// AgentFile builds the public JSON-LD registration document that minted agent
// URIs resolve to. origin is the scheme and host the request arrived on, used
// as the provider URL.
func (uc *IdentityUsecase) AgentFile(ctx context.Context, username, origin string) (faucet.AgentFile, error) {

	identity, err := uc.identity.GetByUsername(ctx, username)
	if err != nil {
		return faucet.AgentFile{}, err
	}

	// An unminted identity still serves a document, with a null identifier.
	var identifier *string
	if identity.AgentTokenID != nil {
		id := fmt.Sprintf("erc8004:%s:%d", uc.config.ChainName, *identity.AgentTokenID)
		identifier = &id
	}

	return faucet.AgentFile{
		Context:     "https://schema.org",
		Type:        "SoftwareAgent",
		Name:        fmt.Sprintf("AgentFaucet: %s", identity.Username),
		Description: fmt.Sprintf("AI agent identity for %s on AgentFaucet", identity.Username),
		Identifier:  identifier,
		Provider: faucet.AgentProvider{
			Type: "Organization",
			Name: "AgentFaucet",
			URL:  origin,
		},
		AdditionalProperty: []faucet.AgentProperty{
			{Type: "PropertyValue", Name: "username", Value: identity.Username},
			{Type: "PropertyValue", Name: "reputationScore", Value: identity.Score},
			{Type: "PropertyValue", Name: "tier", Value: identity.Tier},
			{Type: "PropertyValue", Name: "chain", Value: uc.config.ChainName},
		},
	}, nil
}

func (uc *IdentityUsecase) issue(identity domain.Identity) (string, error) {
	return uc.issuer.Issue(token.Claims{
		Subject:       identity.Subject,
		Username:      identity.Username,
		Score:         identity.Score,
		Tier:          identity.Tier,
		DailyLimitWei: strconv.FormatInt(identity.DailyLimitWei, 10),
		AgentTokenID:  identity.AgentTokenID,
		Generation:    identity.TokenGeneration,
		Provider:      uc.config.Provider,
	})
}
