package database

import (
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// NewMemcached opens the client backing the public stats cache, shared
// across server instances so the aggregate queries run once per TTL.
func NewMemcached(server string) *memcache.Client {
	mc := memcache.New(server)
	mc.Timeout = 500 * time.Millisecond
	return mc
}
