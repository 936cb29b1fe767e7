package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fastprodman/wagerledger/internal/model"
)

const keyPrefix = "wagerledger:balance:"

// Generations outlive any in-flight read by far; an expired generation
// reads as 0 again.
const genTTL = 24 * time.Hour

// BalanceKey builds the key for one account: wagerledger:balance:{tenant}:{user}.
func BalanceKey(tenant, user uint64) string {
	return keyPrefix + strconv.FormatUint(tenant, 10) + ":" + strconv.FormatUint(user, 10)
}

// GenKey holds the invalidation counter of one account.
func GenKey(tenant, user uint64) string {
	return BalanceKey(tenant, user) + ":gen"
}

// KEYS: balance, generation. ARGV: expected generation, balance, ttl in ms (0 = none).
var fillScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
local ok
if tonumber(ARGV[3]) > 0 then
	ok = redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3], 'NX')
else
	ok = redis.call('SET', KEYS[1], ARGV[2], 'NX')
end
if ok then
	return 1
end
return 0
`)

// Redis is a Balances backed by Redis strings with a TTL.
type Redis struct {
	rdb redis.Cmdable
	ttl time.Duration
}

var _ Balances = (*Redis)(nil)

func NewRedis(rdb redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	err = rdb.Ping(ctx).Err()
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}

func (c *Redis) Get(ctx context.Context, tenant, user uint64) (Entry, error) {
	vals, err := c.rdb.MGet(ctx, BalanceKey(tenant, user), GenKey(tenant, user)).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("redis mget: %w", err)
	}

	if len(vals) != 2 {
		return Entry{}, fmt.Errorf("redis mget: %d values for 2 keys", len(vals))
	}

	var e Entry

	if raw, ok := vals[1].(string); ok {
		e.Gen, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("decode generation %q: %w", raw, err)
		}
	}

	raw, ok := vals[0].(string)
	if !ok {
		return e, nil
	}

	e.Balance, err = strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("decode cached balance %q: %w", raw, err)
	}

	e.Hit = true

	return e, nil
}

func (c *Redis) Fill(ctx context.Context, tenant, user, gen, balance uint64) error {
	err := fillScript.Run(ctx, c.rdb,
		[]string{BalanceKey(tenant, user), GenKey(tenant, user)},
		strconv.FormatUint(gen, 10), strconv.FormatUint(balance, 10), c.ttl.Milliseconds(),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis fill: %w", err)
	}

	return nil
}

func (c *Redis) Invalidate(ctx context.Context, updates []model.AccountUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, u := range updates {
			gen := GenKey(u.Tenant, u.User)
			p.Incr(ctx, gen)
			p.Expire(ctx, gen, genTTL)
			p.Del(ctx, BalanceKey(u.Tenant, u.User))
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}

	return nil
}
