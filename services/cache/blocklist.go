package cache

import (
	"errors"
	"strings"
	"time"

	"sjsage522/marketcrawler/logger"
)

const blockKeyPrefix = "marketcrawler:block:"

// HostBlocklist remembers hosts that rate-limited us so later fetches skip
// them until the block expires. It is shared across processes when backed by memcache.
type HostBlocklist struct {
	cache    CacheService
	duration time.Duration
	log      *logger.Logger
}

// NewHostBlocklist creates a blocklist on top of a cache
func NewHostBlocklist(c CacheService, duration time.Duration) *HostBlocklist {
	return &HostBlocklist{cache: c, duration: duration, log: logger.ForCache()}
}

// Block marks host as blocked for the configured duration
func (b *HostBlocklist) Block(host, reason string) {
	if b == nil || b.duration <= 0 {
		return
	}
	if err := b.cache.Set(blockKey(host), []byte(reason), b.duration); err != nil {
		b.log.Warn().Err(err).Str("host", host).Msg("Failed to record host block")
		return
	}
	b.log.Info().Str("host", host).Dur("duration", b.duration).Str("reason", reason).Msg("Host blocked")
}

// IsBlocked reports whether host is currently blocked. Cache failures count as not blocked.
func (b *HostBlocklist) IsBlocked(host string) bool {
	if b == nil {
		return false
	}
	_, err := b.cache.Get(blockKey(host))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			b.log.Debug().Err(err).Str("host", host).Msg("Block lookup failed")
		}
		return false
	}
	return true
}

// memcache keys may not contain spaces or control characters
func blockKey(host string) string {
	return blockKeyPrefix + strings.ToLower(strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return '_'
		}
		return r
	}, host))
}
