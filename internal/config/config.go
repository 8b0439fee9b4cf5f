package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-yaml/yaml"

	"github.com/agentfaucet/faucetd/internal/domain"
)

type Config struct {
	Faucet Faucet `yaml:"faucet"`
	Chain  Chain  `yaml:"chain"`
	Server Server `yaml:"server"`
}

type Faucet struct {
	Issuer             string `yaml:"issuer"`
	TokenSecret        string `yaml:"tokenSecret"`
	Provider           string `yaml:"provider"`
	DefaultClaim       string `yaml:"defaultClaim"` // human units, e.g. "0.005"
	AgentURIBase       string `yaml:"agentUriBase"`
	TransferTimeoutSec int    `yaml:"transferTimeoutSec"`
	ReserveTimeoutMin  int    `yaml:"reserveTimeoutMin"`
}

type Chain struct {
	Name            string `yaml:"name"`
	RPCEndpoint     string `yaml:"rpcEndpoint"`
	ChainID         int64  `yaml:"chainID"`
	PoolAddress     string `yaml:"poolAddress"`
	RegistryAddress string `yaml:"registryAddress"`
	RelayerKey      string `yaml:"relayerKey"`
}

type Server struct {
	ListenAddr    string `yaml:"listenAddr"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	GithubAPIBase string `yaml:"githubApiBase"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Faucet.TokenSecret == "" {
		return Config{}, fmt.Errorf("faucet.tokenSecret is required")
	}
	if config.Faucet.Issuer == "" {
		config.Faucet.Issuer = "agentfaucet"
	}
	if config.Faucet.Provider == "" {
		config.Faucet.Provider = "github"
	}
	if config.Faucet.DefaultClaim == "" {
		config.Faucet.DefaultClaim = "0.005"
	}
	if config.Faucet.TransferTimeoutSec == 0 {
		config.Faucet.TransferTimeoutSec = 60
	}
	if config.Faucet.ReserveTimeoutMin == 0 {
		config.Faucet.ReserveTimeoutMin = 15
	}
	if config.Chain.Name == "" {
		config.Chain.Name = "bsc-testnet"
	}
	if config.Server.ListenAddr == "" {
		config.Server.ListenAddr = ":8000"
	}
	if config.Server.GithubAPIBase == "" {
		config.Server.GithubAPIBase = "https://api.github.com"
	}

	return config, nil
}

// Domain narrows the file config into the immutable runtime config the
// services and usecases consume.
func (c Config) Domain(defaultClaimWei int64) domain.Config {
	return domain.Config{
		Issuer:          c.Faucet.Issuer,
		TokenSecret:     c.Faucet.TokenSecret,
		Provider:        c.Faucet.Provider,
		DefaultClaimWei: defaultClaimWei,
		AgentURIBase:    c.Faucet.AgentURIBase,
		ChainName:       c.Chain.Name,
		PoolAddress:     c.Chain.PoolAddress,
		RegistryAddress: c.Chain.RegistryAddress,
		RelayerKey:      c.Chain.RelayerKey,
		RPCEndpoint:     c.Chain.RPCEndpoint,
		ChainID:         c.Chain.ChainID,
		TransferTimeout: time.Duration(c.Faucet.TransferTimeoutSec) * time.Second,
		ReserveTimeout:  time.Duration(c.Faucet.ReserveTimeoutMin) * time.Minute,
		ReconcileEvery:  time.Minute,
		StatsCacheTTL:   30 * time.Second,
		IdempotencyTTL:  24 * time.Hour,
	}
}
