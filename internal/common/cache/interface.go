package cache

import (
	"context"
	"time"
)

// LockOps defines distributed lock operations.
// Every lock carries an owner value so a holder can only release or extend
// the lease it acquired itself.
type LockOps interface {
	// TryLock attempts to acquire a lock. Returns true if it was acquired.
	TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)

	// Unlock releases the lock when still held by owner.
	Unlock(ctx context.Context, key, owner string) error

	// ExtendLock pushes the expiry of a lock held by owner.
	// Returns false when the lock is gone or owned by someone else.
	ExtendLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
}
