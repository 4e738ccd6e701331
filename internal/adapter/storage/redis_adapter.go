package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/domain"
)

const (
	itemKeyPrefix        = "item:"
	itemNamesKey         = "items:names"
	itemIDsKey           = "items:ids"
	itemSeqKey           = "items:seq"
	idempotencyKeyPrefix = "idempotency:"
)

// KEYS: names, seq, ids. ARGV: name, price_cents, quantity, now, item key prefix.
var createItemScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
	return 0
end

local id = redis.call('INCR', KEYS[2])
redis.call('HSET', ARGV[5] .. id,
	'id', id, 'name', ARGV[1], 'price_cents', ARGV[2], 'quantity', ARGV[3],
	'version', 0, 'created_at', ARGV[4], 'updated_at', ARGV[4])
redis.call('HSET', KEYS[1], ARGV[1], id)
redis.call('ZADD', KEYS[3], id, id)
return id
`)

// KEYS: item, names. ARGV: id, name, price_cents, quantity, now.
var replaceItemScript = redis.NewScript(`
local old = redis.call('HGET', KEYS[1], 'name')
if not old then
	return -1
end

local owner = redis.call('HGET', KEYS[2], ARGV[2])
if owner and owner ~= ARGV[1] then
	return -2
end

redis.call('HDEL', KEYS[2], old)
redis.call('HSET', KEYS[2], ARGV[2], ARGV[1])
redis.call('HSET', KEYS[1], 'name', ARGV[2], 'price_cents', ARGV[3], 'quantity', ARGV[4], 'updated_at', ARGV[5])
redis.call('HINCRBY', KEYS[1], 'version', 1)
return 1
`)

// KEYS: item, names, ids. ARGV: id.
var deleteItemScript = redis.NewScript(`
local name = redis.call('HGET', KEYS[1], 'name')
if not name then
	return 0
end

redis.call('DEL', KEYS[1])
redis.call('HDEL', KEYS[2], name)
redis.call('ZREM', KEYS[3], ARGV[1])
return 1
`)

// KEYS: item. ARGV: expected, new, now.
var compareAndSetQuantityScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'quantity')
if not current then
	return 0
end

if tonumber(current) ~= tonumber(ARGV[1]) then
	return 0
end

redis.call('HSET', KEYS[1], 'quantity', ARGV[2], 'updated_at', ARGV[3])
redis.call('HINCRBY', KEYS[1], 'version', 1)
return 1
`)

type redisItem struct {
	ID         int64  `redis:"id"`
	Name       string `redis:"name"`
	PriceCents int64  `redis:"price_cents"`
	Quantity   int    `redis:"quantity"`
	Version    int    `redis:"version"`
	CreatedAt  int64  `redis:"created_at"`
	UpdatedAt  int64  `redis:"updated_at"`
}

func (r redisItem) toDomain() domain.Item {
	return domain.Item{
		ID:         r.ID,
		Name:       r.Name,
		PriceCents: r.PriceCents,
		Quantity:   r.Quantity,
		Version:    r.Version,
		CreatedAt:  time.Unix(0, r.CreatedAt).UTC(),
		UpdatedAt:  time.Unix(0, r.UpdatedAt).UTC(),
	}
}

// RedisAdapter stores each item as a hash. Every mutation runs as a Lua script
// so name uniqueness and compare-and-set are atomic on the server.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func itemKey(id int64) string {
	return itemKeyPrefix + strconv.FormatInt(id, 10)
}

func (r *RedisAdapter) Get(ctx context.Context, id int64) (*domain.Item, error) {
	cmd := r.client.HGetAll(ctx, itemKey(id))
	if err := cmd.Err(); err != nil {
		return nil, unavailable("get item", err)
	}
	if len(cmd.Val()) == 0 {
		return nil, domain.ErrNotFound
	}

	var ri redisItem
	if err := cmd.Scan(&ri); err != nil {
		return nil, unavailable("decode item", err)
	}
	item := ri.toDomain()
	return &item, nil
}

func (r *RedisAdapter) Exists(ctx context.Context, id int64) (bool, error) {
	n, err := r.client.Exists(ctx, itemKey(id)).Result()
	if err != nil {
		return false, unavailable("item exists", err)
	}
	return n == 1, nil
}

func (r *RedisAdapter) List(ctx context.Context) ([]domain.Item, error) {
	ids, err := r.client.ZRange(ctx, itemIDsKey, 0, -1).Result()
	if err != nil {
		return nil, unavailable("list item ids", err)
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, itemKeyPrefix+id)
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, unavailable("list items", err)
		}
	}

	items := make([]domain.Item, 0, len(ids))
	for _, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			continue
		}
		var ri redisItem
		if err := cmd.Scan(&ri); err != nil {
			return nil, unavailable("decode item", err)
		}
		items = append(items, ri.toDomain())
	}
	return items, nil
}

func (r *RedisAdapter) Create(ctx context.Context, item domain.Item) (*domain.Item, error) {
	now := time.Now().UnixNano()
	id, err := createItemScript.Run(ctx, r.client,
		[]string{itemNamesKey, itemSeqKey, itemIDsKey},
		item.Name, item.PriceCents, item.Quantity, now, itemKeyPrefix,
	).Int64()
	if err != nil {
		return nil, unavailable("create item", err)
	}
	if id == 0 {
		return nil, domain.ErrDuplicateName
	}
	return r.Get(ctx, id)
}

func (r *RedisAdapter) Replace(ctx context.Context, id int64, item domain.Item) (*domain.Item, error) {
	res, err := replaceItemScript.Run(ctx, r.client,
		[]string{itemKey(id), itemNamesKey},
		id, item.Name, item.PriceCents, item.Quantity, time.Now().UnixNano(),
	).Int()
	if err != nil {
		return nil, unavailable("replace item", err)
	}

	switch res {
	case -1:
		return nil, domain.ErrNotFound
	case -2:
		return nil, domain.ErrDuplicateName
	}
	return r.Get(ctx, id)
}

func (r *RedisAdapter) Delete(ctx context.Context, id int64) error {
	res, err := deleteItemScript.Run(ctx, r.client,
		[]string{itemKey(id), itemNamesKey, itemIDsKey}, id,
	).Int()
	if err != nil {
		return unavailable("delete item", err)
	}
	if res == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RedisAdapter) CompareAndSetQuantity(ctx context.Context, id int64, expected, newQuantity int) (bool, error) {
	res, err := compareAndSetQuantityScript.Run(ctx, r.client,
		[]string{itemKey(id)}, expected, newQuantity, time.Now().UnixNano(),
	).Int()
	if err != nil {
		return false, unavailable("compare and set quantity", err)
	}
	return res == 1, nil
}

type RedisIdempotency struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotency(client *redis.Client, ttl time.Duration) *RedisIdempotency {
	return &RedisIdempotency{client: client, ttl: ttl}
}

func (r *RedisIdempotency) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, r.ttl).Result()
	if err != nil {
		return false, unavailable("acquire idempotency key", err)
	}
	return ok, nil
}

func (r *RedisIdempotency) Release(ctx context.Context, key string) error {
	err := r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable("release idempotency key", err)
	}
	return nil
}
