package backend

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript faz INCR e, só no primeiro incremento da janela, PEXPIRE.
// Rodar como script garante que dois processos concorrentes não percam
// incrementos nem apliquem o TTL duas vezes.
var incrScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// Redis implementa Store sobre go-redis.
type Redis struct {
	rdb redis.UniversalClient
}

func NewRedis(rdb redis.UniversalClient) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, wrap("setnx", key, err)
	}
	return ok, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap("get", key, err)
	}
	return b, true, nil
}

func (r *Redis) Replace(ctx context.Context, key string, value []byte) (bool, error) {
	err := r.rdb.SetArgs(ctx, key, value, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, wrap("replace", key, err)
	}
	return true, nil
}

func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, wrap("delete", key, err)
	}
	return n > 0, nil
}

func (r *Redis) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ms := ttl.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	n, err := incrScript.Run(ctx, r.rdb, []string{key}, ms).Int64()
	if err != nil {
		return 0, wrap("incr", key, err)
	}
	return n, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return wrap("ping", "", r.rdb.Ping(ctx).Err())
}
