package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/aside/backend"
)

func newTestBackend(t *testing.T) (*miniredis.Miniredis, *Backend) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	b, err := New(Config{Client: client, CloseClient: true, QueryTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return mr, b
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestScalarRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, b := newTestBackend(t)

	require.NoError(t, b.WriteBulk(ctx, map[string][]byte{"user:42": []byte(`{"name":"Ann"}`)}, time.Minute))

	got, err := b.ReadBulk(ctx, []string{"user:42", "user:43"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"user:42": []byte(`{"name":"Ann"}`)}, got)

	raw, err := mr.Get("user:42")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Ann"}`, raw)
	assert.Equal(t, time.Minute, mr.TTL("user:42"))
}

func TestScalarWithoutTTL(t *testing.T) {
	ctx := context.Background()
	mr, b := newTestBackend(t)

	require.NoError(t, b.WriteBulk(ctx, map[string][]byte{"k": []byte("1")}, 0))
	assert.Equal(t, time.Duration(0), mr.TTL("k"))
}

func TestScalarExpiry(t *testing.T) {
	ctx := context.Background()
	mr, b := newTestBackend(t)

	require.NoError(t, b.WriteBulk(ctx, map[string][]byte{"k": []byte("1")}, 2*time.Second))
	mr.FastForward(3 * time.Second)

	got, err := b.ReadBulk(ctx, []string{"k"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScalarTTLRefreshedOnEveryWrite(t *testing.T) {
	ctx := context.Background()
	mr, b := newTestBackend(t)

	require.NoError(t, b.WriteBulk(ctx, map[string][]byte{"k": []byte("1")}, 10*time.Second))
	mr.FastForward(8 * time.Second)
	require.NoError(t, b.WriteBulk(ctx, map[string][]byte{"k": []byte("2")}, 10*time.Second))
	mr.FastForward(8 * time.Second)

	got, err := b.ReadBulk(ctx, []string{"k"})
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got["k"])
}

func TestHashTTLAppliedOnlyAtCreation(t *testing.T) {
	ctx := context.Background()
	mr, b := newTestBackend(t)

	require.NoError(t, b.WriteHashFields(ctx, "h", map[string][]byte{"a": []byte("1")}, 10*time.Second))
	mr.FastForward(8 * time.Second)
	require.NoError(t, b.WriteHashFields(ctx, "h", map[string][]byte{"b": []byte("2")}, 10*time.Second))
	assert.Equal(t, 2*time.Second, mr.TTL("h"))

	mr.FastForward(3 * time.Second)
	got, err := b.ReadHashFields(ctx, "h", backend.All())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHashFields(t *testing.T) {
	ctx := context.Background()
	_, b := newTestBackend(t)

	require.NoError(t, b.WriteHashFields(ctx, "order:9", map[string][]byte{
		"total":  []byte("42"),
		"status": []byte(`"paid"`),
	}, 0))

	got, err := b.ReadHashFields(ctx, "order:9", backend.Only("total", "nope"))
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"total": []byte("42")}, got)

	require.NoError(t, b.DeleteHashFields(ctx, "order:9", []string{"total"}))
	got, err = b.ReadHashFields(ctx, "order:9", backend.All())
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"status": []byte(`"paid"`)}, got)

	got, err = b.ReadHashFields(ctx, "absent", backend.All())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteBulk(t *testing.T) {
	ctx := context.Background()
	mr, b := newTestBackend(t)

	require.NoError(t, b.WriteBulk(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, 0))
	require.NoError(t, b.WriteHashFields(ctx, "h", map[string][]byte{"f": []byte("1")}, 0))
	require.NoError(t, b.DeleteBulk(ctx, []string{"a", "h"}))

	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("h"))
	assert.True(t, mr.Exists("b"))
}

func TestTypeMismatch(t *testing.T) {
	ctx := context.Background()
	_, b := newTestBackend(t)

	require.NoError(t, b.WriteBulk(ctx, map[string][]byte{"s": []byte("1")}, 0))
	require.NoError(t, b.WriteHashFields(ctx, "h", map[string][]byte{"f": []byte("1")}, 0))

	var tm *backend.TypeMismatchError

	_, err := b.ReadHashFields(ctx, "s", backend.All())
	assert.True(t, errors.As(err, &tm), "HGETALL on scalar: %v", err)

	_, err = b.ReadHashFields(ctx, "s", backend.Only("f"))
	assert.True(t, errors.As(err, &tm), "HMGET on scalar: %v", err)

	err = b.WriteHashFields(ctx, "s", map[string][]byte{"f": []byte("1")}, 0)
	assert.True(t, errors.As(err, &tm), "HSET on scalar: %v", err)

	_, err = b.ReadBulk(ctx, []string{"h"})
	assert.True(t, errors.As(err, &tm), "MGET on hash: %v", err)

	err = b.WriteBulk(ctx, map[string][]byte{"h": []byte("1")}, 0)
	assert.True(t, errors.As(err, &tm), "MSET on hash: %v", err)
}

func TestIncrementWithCeiling(t *testing.T) {
	ctx := context.Background()
	mr, b := newTestBackend(t)

	ok, err := b.IncrementWithCeiling(ctx, "n", 6, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.IncrementWithCeiling(ctx, "n", 6, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := mr.Get("n")
	require.NoError(t, err)
	assert.Equal(t, "6", v)
}

func TestIncrementRejectsInexactOperands(t *testing.T) {
	ctx := context.Background()
	mr, b := newTestBackend(t)

	_, err := b.IncrementWithCeiling(ctx, "n", 1, 1<<60)
	assert.ErrorIs(t, err, ErrIncrementRange)
	_, err = b.IncrementWithCeiling(ctx, "n", -(1 << 54), 10)
	assert.ErrorIs(t, err, ErrIncrementRange)
	assert.False(t, mr.Exists("n"))

	ok, err := b.IncrementWithCeiling(ctx, "n", maxExactInt, maxExactInt)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = b.IncrementWithCeiling(ctx, "n", 1, maxExactInt)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := mr.Get("n")
	require.NoError(t, err)
	assert.Equal(t, "9007199254740991", v)
}

func TestIncrementWithCeilingConcurrent(t *testing.T) {
	ctx := context.Background()
	mr, b := newTestBackend(t)

	results := make([]bool, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := b.IncrementWithCeiling(ctx, "n", 6, 10)
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	assert.ElementsMatch(t, []bool{true, false}, results)
	v, err := mr.Get("n")
	require.NoError(t, err)
	assert.Equal(t, "6", v)
}

func TestBackendErrorsSurface(t *testing.T) {
	ctx := context.Background()
	mr, b := newTestBackend(t)
	mr.Close()

	_, err := b.ReadBulk(ctx, []string{"k"})
	assert.Error(t, err)
	err = b.WriteBulk(ctx, map[string][]byte{"k": []byte("1")}, 0)
	assert.Error(t, err)
}
