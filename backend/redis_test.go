package backend

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb), mr
}

func TestRedis_SetNXSetsTTLAndRefusesExistingKey(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	ok, err := r.SetNX(ctx, "entry:a", []byte("v1"), 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10*time.Second, mr.TTL("entry:a"))

	ok, err = r.SetNX(ctx, "entry:a", []byte("v2"), 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	v, found, err := r.Get(ctx, "entry:a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v1", string(v))
}

func TestRedis_GetMissingAndExpired(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	_, found, err := r.Get(ctx, "entry:none")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = r.SetNX(ctx, "entry:b", []byte("x"), time.Second)
	require.NoError(t, err)
	mr.FastForward(time.Second)

	_, found, err = r.Get(ctx, "entry:b")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_ReplaceKeepsTTLAndSkipsMissing(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	_, err := r.SetNX(ctx, "entry:c", []byte("old"), 30*time.Second)
	require.NoError(t, err)

	ok, err := r.Replace(ctx, "entry:c", []byte("new"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, mr.TTL("entry:c"))

	v, _, err := r.Get(ctx, "entry:c")
	require.NoError(t, err)
	assert.Equal(t, "new", string(v))

	ok, err = r.Replace(ctx, "entry:missing", []byte("x"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("entry:missing"))
}

func TestRedis_DeleteIsIdempotent(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()

	_, err := r.SetNX(ctx, "entry:d", []byte("x"), time.Minute)
	require.NoError(t, err)

	ok, err := r.Delete(ctx, "entry:d")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Delete(ctx, "entry:d")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_IncrSetsTTLOnlyOnFirstIncrement(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	n, err := r.Incr(ctx, "ratelimit:k", 60*time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 60*time.Second, mr.TTL("ratelimit:k"))

	mr.FastForward(20 * time.Second)

	n, err = r.Incr(ctx, "ratelimit:k", 60*time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	// o segundo incremento não renova o TTL
	assert.Equal(t, 40*time.Second, mr.TTL("ratelimit:k"))

	mr.FastForward(40 * time.Second)
	n, err = r.Incr(ctx, "ratelimit:k", 60*time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRedis_IncrConcurrentNoLostIncrements(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := r.Incr(ctx, "ratelimit:c", time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := r.Incr(ctx, "ratelimit:c", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, workers+1, n)
}

func TestRedis_ErrorsAreUnavailable(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	addr := mr.Addr()
	mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	r := NewRedis(rdb)

	_, _, err := r.Get(context.Background(), "entry:x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	var oe *OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "get", oe.Op)
	assert.Equal(t, "entry:x", oe.Key)
}
