package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-bank/internal/domain"
	"github.com/prn-tf/meridian-bank/internal/repository"
)

// CachedUserLoader caches user lookups for the authentication middleware.
// The TTL bounds how long a deactivated or modified user can still pass
// authentication, so it must stay short. Invalidate drops the entry early
// when the caller knows the user changed.
type CachedUserLoader struct {
	users  UserLoader
	cache  repository.Cache
	ttl    time.Duration
	keys   repository.CacheKey
	logger zerolog.Logger
}

// NewCachedUserLoader wraps a user loader with a read-through cache.
func NewCachedUserLoader(users UserLoader, cache repository.Cache, ttl time.Duration, logger zerolog.Logger) *CachedUserLoader {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedUserLoader{
		users:  users,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "user_cache").Logger(),
	}
}

// GetByID loads a user, serving from the cache when possible. Only found
// users are cached; misses and errors always hit the store again.
func (l *CachedUserLoader) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	key := l.keys.UserByID(id)

	if raw, err := l.cache.Get(ctx, key); err == nil {
		var user domain.User
		if err := json.Unmarshal(raw, &user); err == nil {
			return &user, nil
		}
		// Corrupt entry; drop it and fall through to the store.
		_ = l.cache.Delete(ctx, key)
	} else if !errors.Is(err, repository.ErrCacheMiss) {
		l.logger.Warn().Err(err).Int64("user_id", id).Msg("cache read failed")
	}

	user, err := l.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(user); err == nil {
		if err := l.cache.Set(ctx, key, raw, l.ttl); err != nil {
			l.logger.Warn().Err(err).Int64("user_id", id).Msg("cache write failed")
		}
	}

	return user, nil
}

// Invalidate drops the cached entry for a user.
func (l *CachedUserLoader) Invalidate(ctx context.Context, id int64) {
	if err := l.cache.Delete(ctx, l.keys.UserByID(id)); err != nil {
		l.logger.Warn().Err(err).Int64("user_id", id).Msg("cache invalidation failed")
	}
}

var _ UserLoader = (*CachedUserLoader)(nil)
