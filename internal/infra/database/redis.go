package database

import (
	"github.com/redis/go-redis/v9"
)

// NewRedis opens the pub/sub client carrying dispensation events between
// server instances and their realtime subscribers. Nothing is persisted in
// redis; a restart only drops in-flight events.
func NewRedis(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
