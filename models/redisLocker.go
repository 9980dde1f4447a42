package models

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/partner_ledger/config"
	"github.com/sirupsen/logrus"
)

var errRedisLockNotReady = errors.New("redis lock not initialized")

// RedisLocker implements ledger.Locker on redislock. It narrows contention between
// API replicas; the row lock taken by LockRecord stays authoritative.
type RedisLocker struct {
	Client *redislock.Client
	TTL    time.Duration
	Retry  redislock.RetryStrategy
}

func NewRedisLocker(client *redislock.Client) *RedisLocker {
	return &RedisLocker{
		Client: client,
		TTL:    30 * time.Second,
		Retry:  redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 40),
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l == nil || l.Client == nil {
		return nil, errRedisLockNotReady
	}
	lock, err := l.Client.Obtain(ctx, key, l.TTL, &redislock.Options{RetryStrategy: l.Retry})
	if err != nil {
		return nil, err
	}
	return func() {
		// release on a fresh context; the request context may already be cancelled
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			config.GetLogger().WithFields(logrus.Fields{
				"field": "RedisLocker",
				"key":   key,
			}).Warn("redis lock release failed: " + err.Error())
		}
	}, nil
}
