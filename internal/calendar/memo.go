package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quadrille/attribution/internal/model"
)

// Memo caches premium-day classifications in redis.  The boolean is
// always re-derivable from IsPremiumDay, so cache failures degrade to
// pure computation instead of failing the caller.  A nil Memo or a
// Memo without a redis client behaves like the pure function.
type Memo struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMemo returns a Memo backed by the given redis client.  The client
// may be nil, in which case every lookup computes the value directly.
func NewMemo(rdb *redis.Client) *Memo {
	return &Memo{rdb: rdb, ttl: 30 * 24 * time.Hour}
}

// IsPremiumDay returns the premium flag for (date, slot), consulting
// the cache first.  Classifier errors are never cached.
func (m *Memo) IsPremiumDay(ctx context.Context, date time.Time, slot model.Slot) (bool, error) {
	if m == nil || m.rdb == nil {
		return IsPremiumDay(date, slot)
	}
	key := fmt.Sprintf("premium:%s:%d", date.Format("2006-01-02"), slot)
	if v, err := m.rdb.Get(ctx, key).Result(); err == nil {
		return v == "1", nil
	}
	premium, err := IsPremiumDay(date, slot)
	if err != nil {
		return false, err
	}
	v := "0"
	if premium {
		v = "1"
	}
	_ = m.rdb.Set(ctx, key, v, m.ttl).Err()
	return premium, nil
}
