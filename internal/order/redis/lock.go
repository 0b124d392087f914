package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"log"

	"github.com/go-redis/redis/v8"
)

type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// getVerifyLockDuration returns how long a settlement lock is held
// while a payment confirmation is being processed.
func (r *Redis) getVerifyLockDuration() time.Duration {
	defaultDuration := 30 * time.Second

	lockTTLStr := os.Getenv("VERIFY_LOCK_TTL_SECONDS")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLSec, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid VERIFY_LOCK_TTL_SECONDS value '" + lockTTLStr + "', using default 30 seconds")
		return defaultDuration
	}

	return time.Duration(lockTTLSec) * time.Second
}

// LockIntent takes a short-lived lock on a payment intent while its
// confirmation is verified. A duplicate callback arriving while the
// first is in flight fails to take the lock and is bounced back to the
// caller; the database status guard stays the authoritative check.
func (r *Redis) LockIntent(intentRef string) (bool, error) {
	key := "intent_lock:" + intentRef
	ok, err := r.Client.SetNX(context.Background(), key, "1", r.getVerifyLockDuration()).Result()
	return ok, err
}

// UnlockIntent releases the settlement lock.
func (r *Redis) UnlockIntent(intentRef string) error {
	key := "intent_lock:" + intentRef
	_, err := r.Client.Del(context.Background(), key).Result()
	if err == redis.Nil {
		return nil
	}
	return err
}

// CacheDownloadURL stores a signed artifact URL for an order so repeat
// download requests inside the signing window reuse the same link. The
// cache expires before the URL itself does.
func (r *Redis) CacheDownloadURL(orderID, url string, ttl time.Duration) error {
	key := fmt.Sprintf("download_url:%s", orderID)
	return r.Client.Set(context.Background(), key, url, ttl).Err()
}

// GetDownloadURL returns the cached signed URL for an order together
// with how long the entry remains cached, or empty when none is
// cached.
func (r *Redis) GetDownloadURL(orderID string) (string, time.Duration, error) {
	key := fmt.Sprintf("download_url:%s", orderID)
	val, err := r.Client.Get(context.Background(), key).Result()
	if err == redis.Nil {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, err
	}
	ttl, err := r.Client.TTL(context.Background(), key).Result()
	if err != nil {
		return "", 0, err
	}
	if ttl < 0 {
		ttl = 0
	}
	return val, ttl, nil
}
