package domain

import "time"

// Config is the immutable runtime configuration handed to services and
// usecases at construction.
type Config struct {
	Issuer          string
	TokenSecret     string
	Provider        string
	DefaultClaimWei int64
	AgentURIBase    string
	ChainName       string

	PoolAddress     string
	RegistryAddress string
	RelayerKey      string
	RPCEndpoint     string
	ChainID         int64
	TransferTimeout time.Duration
	ReserveTimeout  time.Duration
	ReconcileEvery  time.Duration
	StatsCacheTTL   time.Duration
	IdempotencyTTL  time.Duration
}
