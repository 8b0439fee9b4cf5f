package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/zeebo/xxh3"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "agentfaucet/1.0"
)

// Profile is the subset of the provider's user payload the scorer consumes.
// Optional fields default to their zero value when the provider omits them.
type Profile struct {
	Login       string    `json:"login"`
	ID          int64     `json:"id"`
	AvatarURL   string    `json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at"`
	PublicRepos int       `json:"public_repos"`
	Followers   int       `json:"followers"`
}

type Repo struct {
	Language string    `json:"language"`
	Topics   []string  `json:"topics"`
	PushedAt time.Time `json:"pushed_at"`
}

// GitHub reads public profile signals with the subject's OAuth access token.
// Responses are cached briefly so registration retries don't re-fetch.
type GitHub struct {
	client  *http.Client
	cache   *cache.Cache
	apiBase string
}

func NewGitHub(apiBase string) *GitHub {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &GitHub{
		client:  &httpClient,
		cache:   cache.New(5*time.Minute, 10*time.Minute),
		apiBase: apiBase,
	}
	httpClient.Transport = c
	return c
}

func (c *GitHub) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	return http.DefaultTransport.RoundTrip(req)
}

func (c *GitHub) Profile(ctx context.Context, accessToken string) (Profile, error) {

	cacheKey := fmt.Sprintf("profile:%x", xxh3.HashString(accessToken))
	if x, found := c.cache.Get(cacheKey); found {
		return x.(Profile), nil
	}

	var profile Profile
	err := c.get(ctx, "/user", accessToken, &profile)
	if err != nil {
		return Profile{}, err
	}

	c.cache.Set(cacheKey, profile, cache.DefaultExpiration)
	return profile, nil
}

// Repos returns up to 100 of the subject's repositories, most recently
// pushed first.
func (c *GitHub) Repos(ctx context.Context, accessToken string) ([]Repo, error) {

	cacheKey := fmt.Sprintf("repos:%x", xxh3.HashString(accessToken))
	if x, found := c.cache.Get(cacheKey); found {
		return x.([]Repo), nil
	}

	var repos []Repo
	err := c.get(ctx, "/user/repos?per_page=100&sort=pushed", accessToken, &repos)
	if err != nil {
		return nil, err
	}

	c.cache.Set(cacheKey, repos, cache.DefaultExpiration)
	return repos, nil
}

func (c *GitHub) get(ctx context.Context, path string, accessToken string, response any) error {

	req, err := http.NewRequestWithContext(ctx, "GET", c.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	return nil
}
