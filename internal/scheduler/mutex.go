package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockKey = "attribution:lock"
	lockTTL = 10 * time.Minute
)

// ErrLockHeld is returned by Mutex.TryRun when another batch holds the
// attribution lock.  Callers skip their run and retry later; the admin
// surface translates it into a 409.
var ErrLockHeld = errors.New("attribution lock held")

// Mutex serializes attribution and rekey runs through a redis SETNX
// lock, whether they are triggered by the scheduler or by the admin
// endpoints.  Renumbering must never overlap a selection-and-write
// sequence, so every entry point into either batch goes through the
// same Mutex instance.  Without a redis client, exclusivity rests on
// running a single instance and runs proceed directly.
type Mutex struct {
	rdb *redis.Client
}

// NewMutex returns a Mutex backed by the given redis client.  The
// client may be nil.
func NewMutex(rdb *redis.Client) *Mutex { return &Mutex{rdb: rdb} }

// TryRun runs fn under the lock.  When the lock is held elsewhere it
// returns ErrLockHeld without running fn.  A redis failure is logged
// and fn runs anyway: a broken lock service must not stop attribution.
func (m *Mutex) TryRun(ctx context.Context, fn func()) error {
	if m == nil || m.rdb == nil {
		fn()
		return nil
	}
	ok, err := m.rdb.SetNX(ctx, lockKey, "1", lockTTL).Result()
	if err != nil {
		log.Printf("scheduler: acquire lock: %v, running without it", err)
		fn()
		return nil
	}
	if !ok {
		return ErrLockHeld
	}
	defer func() {
		if err := m.rdb.Del(ctx, lockKey).Err(); err != nil {
			log.Printf("scheduler: release lock: %v", err)
		}
	}()
	fn()
	return nil
}
