package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds the caller's token,
// so an expired lock re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

func vehicleLockKey(vehicleID string) string {
	return fmt.Sprintf("lock:vehicle:%s", vehicleID)
}

// AcquireVehicleLock attempts to acquire a lock for the given vehicle.
// It returns the token needed to release the lock, or ok=false if the lock is
// already held.
func (s *LockStore) AcquireVehicleLock(ctx context.Context, vehicleID string, ttl time.Duration) (token string, ok bool, err error) {
	token = uuid.NewString()

	ok, err = s.client.SetNX(ctx, vehicleLockKey(vehicleID), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

// ReleaseVehicleLock releases the lock for the given vehicle if token still owns it.
func (s *LockStore) ReleaseVehicleLock(ctx context.Context, vehicleID, token string) error {
	return releaseScript.Run(ctx, s.client, []string{vehicleLockKey(vehicleID)}, token).Err()
}

// IsVehicleLocked reports whether any caller currently holds the vehicle lock.
func (s *LockStore) IsVehicleLocked(ctx context.Context, vehicleID string) (bool, error) {
	n, err := s.client.Exists(ctx, vehicleLockKey(vehicleID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
