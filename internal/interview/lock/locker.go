// Package lock provides per-key single-flight guards for provisioning work.
package lock

import "context"

// Locker grants at most one holder per key. TryAcquire never blocks.
type Locker interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
