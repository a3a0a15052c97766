package repository

import (
	"context"
	"sync/atomic"
	"time"

	"dogsitter/internal/domain"

	"github.com/rs/zerolog"
)

// RecoveryInterval is how long the failover cache stays on the fallback
// before trying the primary again.
const RecoveryInterval = time.Minute

// FailoverCache uses the primary cache until it fails, then serves from the
// fallback and retries the primary once per RecoveryInterval.
type FailoverCache struct {
	primary   domain.CacheRepository
	fallback  domain.CacheRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverCache(primary, fallback domain.CacheRepository, logger *zerolog.Logger) *FailoverCache {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverCache{primary: primary, fallback: fallback, logger: logger, now: time.Now}
}

// usePrimary reports whether the next call should go to the primary.
func (r *FailoverCache) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	last := time.Unix(0, r.lastCheck.Load())
	return r.now().Sub(last) > RecoveryInterval
}

func (r *FailoverCache) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("primary cache failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
}

func (r *FailoverCache) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("primary cache recovered")
	}
}

// IsDown reports whether calls are currently served by the fallback.
func (r *FailoverCache) IsDown() bool {
	return r.isDown.Load()
}

func (r *FailoverCache) GetJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	if r.usePrimary() {
		found, err := r.primary.GetJSON(ctx, key, dst)
		if err == nil {
			r.markUp()
			return found, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetJSON(ctx, key, dst)
}

func (r *FailoverCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.usePrimary() {
		err := r.primary.SetJSON(ctx, key, value, ttl)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetJSON(ctx, key, value, ttl)
}

// Delete removes keys from both caches so a recovered primary or a stale
// fallback never serve an invalidated value.
func (r *FailoverCache) Delete(ctx context.Context, keys ...string) error {
	fallbackErr := r.fallback.Delete(ctx, keys...)
	if r.usePrimary() {
		if err := r.primary.Delete(ctx, keys...); err != nil {
			r.markDown(err)
		} else {
			r.markUp()
		}
	}
	return fallbackErr
}

func (r *FailoverCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
