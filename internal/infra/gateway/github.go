package gateway

import (
	"context"

	"github.com/pkg/errors"

	"github.com/agentfaucet/faucetd/client"
	"github.com/agentfaucet/faucetd/reputation"
)

// ReputationGateway fetches the subject's provider profile and maps it into
// scorer signals.
type ReputationGateway struct {
	github *client.GitHub
}

func NewReputationGateway(github *client.GitHub) *ReputationGateway {
	return &ReputationGateway{github: github}
}

func (g *ReputationGateway) Signals(ctx context.Context, accessToken string) (reputation.Signals, client.Profile, error) {

	profile, err := g.github.Profile(ctx, accessToken)
	if err != nil {
		return reputation.Signals{}, client.Profile{}, errors.Wrap(err, "failed to fetch profile")
	}

	repos, err := g.github.Repos(ctx, accessToken)
	if err != nil {
		return reputation.Signals{}, client.Profile{}, errors.Wrap(err, "failed to fetch repositories")
	}

	signals := reputation.Signals{
		AccountCreatedAt: profile.CreatedAt,
		PublicRepos:      profile.PublicRepos,
		Followers:        profile.Followers,
		Repos:            make([]reputation.Repo, 0, len(repos)),
	}
	for _, repo := range repos {
		signals.Repos = append(signals.Repos, reputation.Repo{
			Language: repo.Language,
			Topics:   repo.Topics,
			PushedAt: repo.PushedAt,
		})
	}

	return signals, profile, nil
}
