// Package lock provides distributed and local locking abstractions keyed by
// account identifier. Balance checks and the following balance write must
// happen under the account's lock, otherwise two concurrent transfers can
// both pass the limit check before either posts.
// For single-node deployments, memory-based locks are used.
// For distributed deployments, Redis-based locks can be used.
package lock

import (
	"context"
	"sort"
	"time"
)

// Locker defines the interface for distributed/local locking.
// This abstraction allows switching between in-memory locks (single-node)
// and Redis-based locks (distributed) without changing business logic.
type Locker interface {
	// Acquire attempts to acquire a lock.
	// Returns true if the lock was acquired, false if it's held by another process.
	// The lock will automatically expire after the specified TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry attempts to acquire a lock with retries.
	// Will retry up to maxRetries times with retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release releases a lock.
	// Returns true if the lock was released, false if it wasn't held.
	Release(ctx context.Context, key string) (bool, error)

	// Extend extends the TTL of a held lock.
	// Returns true if the lock was extended, false if it's not held.
	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsHeld checks if the lock is currently held.
	IsHeld(ctx context.Context, key string) (bool, error)
}

// Keys provides lock key generation for common scenarios.
var Keys = lockKeys{}

type lockKeys struct{}

// Account returns the lock key serializing balance mutation on one account.
func (lockKeys) Account(iban string) string {
	return "lock:account:" + iban
}

// AcquireAccounts acquires the locks for the given account identifiers in
// sorted order, so that two transfers touching the same pair of accounts can
// never deadlock. Duplicate identifiers are locked once. On failure every
// already-acquired lock is released. The returned release function unlocks
// in reverse order.
func AcquireAccounts(ctx context.Context, locker Locker, ttl time.Duration, maxRetries int, retryDelay time.Duration, ibans ...string) (release func(), err error) {
	keys := make([]string, 0, len(ibans))
	seen := make(map[string]struct{}, len(ibans))
	for _, iban := range ibans {
		if iban == "" {
			continue
		}
		key := Keys.Account(iban)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	held := make([]string, 0, len(keys))
	releaseHeld := func() {
		for i := len(held) - 1; i >= 0; i-- {
			// Release must not be cancelled together with the caller.
			locker.Release(context.WithoutCancel(ctx), held[i])
		}
	}

	for _, key := range keys {
		acquired, err := locker.AcquireWithRetry(ctx, key, ttl, maxRetries, retryDelay)
		if err != nil {
			releaseHeld()
			return nil, err
		}
		if !acquired {
			releaseHeld()
			return nil, ErrNotAcquired
		}
		held = append(held, key)
	}

	return releaseHeld, nil
}
