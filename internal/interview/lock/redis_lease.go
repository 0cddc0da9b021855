package lock

import (
	"context"
	"fmt"
	"time"

	"assesy/internal/common/cache"
	pkgerrors "assesy/pkg/errors"

	"github.com/google/uuid"
)

const (
	defaultLeaseTTL = 10 * time.Minute
	leaseKeyPrefix  = "assesy:lock:"
)

// LeaseConfig configures a RedisLease.
type LeaseConfig struct {
	// TTL bounds how long a crashed holder can block a key.
	TTL    time.Duration `yaml:"ttl"`
	Prefix string        `yaml:"prefix"`
}

// RedisLease is a Locker on top of Redis SET NX PX leases. Each instance owns
// its leases under a random owner id, so it can only release its own keys.
type RedisLease struct {
	ops    cache.LockOps
	owner  string
	ttl    time.Duration
	prefix string
}

func NewRedisLease(ops cache.LockOps, cfg LeaseConfig) (*RedisLease, error) {
	if ops == nil {
		return nil, fmt.Errorf("lock ops is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultLeaseTTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = leaseKeyPrefix
	}
	return &RedisLease{ops: ops, owner: uuid.NewString(), ttl: cfg.TTL, prefix: cfg.Prefix}, nil
}

func (l *RedisLease) TryAcquire(ctx context.Context, key string) (bool, error) {
	ok, err := l.ops.TryLock(ctx, l.prefix+key, l.owner, l.ttl)
	if err != nil {
		return false, pkgerrors.Wrapf(err, pkgerrors.LockFailed, "acquire lease %s failed", key)
	}
	return ok, nil
}

func (l *RedisLease) Release(ctx context.Context, key string) error {
	if err := l.ops.Unlock(ctx, l.prefix+key, l.owner); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.CacheError, "release lease %s failed", key)
	}
	return nil
}

// Extend pushes the expiry of a lease this instance holds.
func (l *RedisLease) Extend(ctx context.Context, key string) (bool, error) {
	ok, err := l.ops.ExtendLock(ctx, l.prefix+key, l.owner, l.ttl)
	if err != nil {
		return false, pkgerrors.Wrapf(err, pkgerrors.CacheError, "extend lease %s failed", key)
	}
	return ok, nil
}

var _ Locker = (*RedisLease)(nil)
