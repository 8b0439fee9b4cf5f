package reputation

import (
	"strings"
	"time"
)

// Signals are the validated upstream profile inputs. Missing optional fields
// default to zero; the scorer never trusts provider payload shape directly.
type Signals struct {
	AccountCreatedAt time.Time
	PublicRepos      int
	Followers        int
	Repos            []Repo
}

// Repo carries the per-repository fields the scorer inspects.
type Repo struct {
	Language string
	Topics   []string
	PushedAt time.Time
}

// Breakdown is the per-signal point split, capped before summation so no
// single signal dominates the score.
type Breakdown struct {
	AccountAge     int `json:"accountAge"`
	RepoCount      int `json:"repoCount"`
	Followers      int `json:"followers"`
	Web3Repos      int `json:"web3Repos"`
	RecentActivity int `json:"recentActivity"`
}

// web3Keywords is the topic allow-list for domain repositories. A repository
// also counts if its primary language is solidity.
var web3Keywords = []string{
	"solidity",
	"web3",
	"ethereum",
	"blockchain",
	"smart-contract",
	"defi",
	"nft",
	"bnb",
	"bsc",
	"hardhat",
	"foundry",
	"truffle",
	"wagmi",
	"viem",
	"ethers",
}

const (
	hoursPerYear  = 365.25 * 24
	recentWindow  = 90 * 24 * time.Hour
	maxAgePoints  = 25
	maxRepoPoints = 15
	maxFollower   = 10
	maxWeb3       = 20
	maxActivity   = 15
)

// Score computes the bounded reputation score for the given signals,
// evaluated at time now. Deterministic, no side effects.
func Score(s Signals, now time.Time) (int, Breakdown) {

	var b Breakdown

	if !s.AccountCreatedAt.IsZero() && s.AccountCreatedAt.Before(now) {
		ageYears := now.Sub(s.AccountCreatedAt).Hours() / hoursPerYear
		b.AccountAge = capped(int(ageYears*5), maxAgePoints)
	}

	b.RepoCount = capped(s.PublicRepos/2, maxRepoPoints)
	b.Followers = capped(s.Followers/5, maxFollower)

	web3Count := 0
	recentCount := 0
	cutoff := now.Add(-recentWindow)
	for _, repo := range s.Repos {
		if isWeb3Repo(repo) {
			web3Count++
		}
		if repo.PushedAt.After(cutoff) {
			recentCount++
		}
	}
	b.Web3Repos = capped(web3Count*4, maxWeb3)
	b.RecentActivity = capped(recentCount*3, maxActivity)

	score := b.AccountAge + b.RepoCount + b.Followers + b.Web3Repos + b.RecentActivity
	if score > 100 {
		score = 100
	}

	return score, b
}

func isWeb3Repo(repo Repo) bool {
	if strings.EqualFold(repo.Language, "solidity") {
		return true
	}
	for _, topic := range repo.Topics {
		lower := strings.ToLower(topic)
		for _, kw := range web3Keywords {
			if lower == kw {
				return true
			}
		}
	}
	return false
}

func capped(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
