// Package repository defines data access interfaces for drlab.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Cache Interface (Redis)
// =============================================================================

// Cache defines the interface for caching operations.
// Primarily implemented using Redis for distributed caching.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL.
	// If ttl is 0, the value doesn't expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX sets a value only if the key doesn't exist.
	// Returns true if the value was set, false if the key already exists.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Expire sets or updates the TTL for a key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Increment atomically increments an integer value.
	Increment(ctx context.Context, key string, delta int64) (int64, error)
}

// =============================================================================
// Distributed Lock Interface (Redis)
// =============================================================================

// DistributedLock defines the interface for distributed locking.
// Used to coordinate operations across multiple server instances.
type DistributedLock interface {
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

// =============================================================================
// Common Lock Keys
// =============================================================================

// LockKey generates a lock key for common scenarios.
type LockKey struct{}

// GroupMembership returns a lock key for membership changes on a group.
// Serializes capacity checks against concurrent adds.
func (LockKey) GroupMembership(groupID uuid.UUID) string {
	return "lock:group:members:" + groupID.String()
}

// UserKeys returns a lock key for a user's key material operations.
// Prevents concurrent setup or rotation on the same account.
func (LockKey) UserKeys(userID uuid.UUID) string {
	return "lock:user:keys:" + userID.String()
}

// DiscardSweep returns a lock key for the retention sweep.
func (LockKey) DiscardSweep() string {
	return "lock:sweep:discard"
}

// InvitationSweep returns a lock key for the invitation expiry sweep.
func (LockKey) InvitationSweep() string {
	return "lock:sweep:invitation"
}

// =============================================================================
// Common Cache Keys
// =============================================================================

// CacheKey generates cache keys for common scenarios.
type CacheKey struct{}

// Token returns a cache key for auth token lookups.
func (CacheKey) Token(key string) string {
	return "cache:token:" + key
}

// UserByID returns a cache key for user metadata.
func (CacheKey) UserByID(id uuid.UUID) string {
	return "cache:user:id:" + id.String()
}

// Group returns a cache key for group metadata.
func (CacheKey) Group(id uuid.UUID) string {
	return "cache:group:" + id.String()
}

// Presence returns a cache key for a user's presence heartbeat.
func (CacheKey) Presence(userID uuid.UUID) string {
	return "cache:presence:" + userID.String()
}

// ClientStats returns a cache key for a client's aggregate counters.
func (CacheKey) ClientStats(clientID uuid.UUID) string {
	return "cache:client:stats:" + clientID.String()
}
