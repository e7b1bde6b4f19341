// Package redis implements the shared-store backend on top of go-redis.
//
// Scalars are plain string keys, hashes use the native hash type. TTL rules:
//   - WriteBulk re-applies the TTL on every write (MSET + PEXPIRE in one MULTI).
//   - WriteHashFields applies the TTL only when the hash is created; later
//     field writes never refresh it.
//
// IncrementWithCeiling runs as a single Lua script so concurrent callers can
// never both pass the ceiling check. Its operands are limited to ±(2^53-1).
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/aside/backend"
)

var (
	ErrNilClient = errors.New("redis backend: nil client")
	// ErrIncrementRange is returned for a delta or ceiling outside ±(2^53-1).
	ErrIncrementRange = errors.New("redis backend: increment operand outside ±(2^53-1)")
)

// Lua numbers are doubles. With the ceiling below 2^53, ceiling+1 is still
// exact and the comparison cannot round the wrong way.
const maxExactInt = 1<<53 - 1

// incrementScript: KEYS[1]=counter, ARGV[1]=delta, ARGV[2]=ceiling.
// Returns 1 when applied, 0 when the ceiling would be exceeded.
var incrementScript = goredis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current == nil then
  return redis.error_reply('ERR counter is not an integer')
end
local delta = tonumber(ARGV[1])
if current + delta <= tonumber(ARGV[2]) then
  redis.call('INCRBY', KEYS[1], ARGV[1])
  return 1
end
return 0
`)

type Backend struct {
	rdb         goredis.UniversalClient
	closeClient bool
	timeout     time.Duration
}

var _ backend.Backend = (*Backend)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this backend exclusively owns the client
	// QueryTimeout bounds each backend call. 0 => rely on the caller's context.
	QueryTimeout time.Duration
}

func New(cfg Config) (*Backend, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Backend{rdb: cfg.Client, closeClient: cfg.CloseClient, timeout: cfg.QueryTimeout}, nil
}

func (b *Backend) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, b.timeout)
}

func (b *Backend) ReadBulk(ctx context.Context, keys []string) (map[string][]byte, error) {
	ctx, cancel := b.queryCtx(ctx)
	defer cancel()

	vals, err := b.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(keys))
	var absent []string
	for i, v := range vals {
		switch vv := v.(type) {
		case nil:
			absent = append(absent, keys[i])
		case string:
			out[keys[i]] = []byte(vv)
		case []byte:
			out[keys[i]] = vv
		default:
			return nil, fmt.Errorf("redis backend: unexpected MGET reply %T for %s", v, keys[i])
		}
	}
	// MGET reports non-string keys as nil; tell a miss apart from a hash
	if len(absent) > 0 {
		if err := b.guardScalar(ctx, absent); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (b *Backend) ReadHashFields(ctx context.Context, key string, fields backend.FieldSet) (map[string][]byte, error) {
	ctx, cancel := b.queryCtx(ctx)
	defer cancel()

	if fields.IsAll() {
		m, err := b.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, hashErr(key, err)
		}
		out := make(map[string][]byte, len(m))
		for f, v := range m {
			out[f] = []byte(v)
		}
		return out, nil
	}

	names := fields.Names()
	vals, err := b.rdb.HMGet(ctx, key, names...).Result()
	if err != nil {
		return nil, hashErr(key, err)
	}
	out := make(map[string][]byte, len(names))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[names[i]] = []byte(s)
		}
	}
	return out, nil
}

func (b *Backend) WriteBulk(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	ctx, cancel := b.queryCtx(ctx)
	defer cancel()

	keys := make([]string, 0, len(items))
	pairs := make([]any, 0, 2*len(items))
	for k, v := range items {
		keys = append(keys, k)
		pairs = append(pairs, k, v)
	}
	// SET would silently replace a hash; refuse instead
	if err := b.guardScalar(ctx, keys); err != nil {
		return err
	}
	_, err := b.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.MSet(ctx, pairs...)
		if ttl > 0 {
			for _, k := range keys {
				p.PExpire(ctx, k, ttl)
			}
		}
		return nil
	})
	return err
}

func (b *Backend) WriteHashFields(ctx context.Context, key string, fields map[string][]byte, ttl time.Duration) error {
	ctx, cancel := b.queryCtx(ctx)
	defer cancel()

	n, err := b.rdb.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	created := n == 0

	args := make([]any, 0, 2*len(fields))
	for f, v := range fields {
		args = append(args, f, v)
	}
	_, err = b.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSet(ctx, key, args...)
		if created && ttl > 0 {
			p.PExpire(ctx, key, ttl)
		}
		return nil
	})
	return hashErr(key, err)
}

func (b *Backend) DeleteBulk(ctx context.Context, keys []string) error {
	ctx, cancel := b.queryCtx(ctx)
	defer cancel()
	return b.rdb.Del(ctx, keys...).Err()
}

func (b *Backend) DeleteHashFields(ctx context.Context, key string, fields []string) error {
	ctx, cancel := b.queryCtx(ctx)
	defer cancel()
	return hashErr(key, b.rdb.HDel(ctx, key, fields...).Err())
}

func (b *Backend) IncrementWithCeiling(ctx context.Context, key string, delta, ceiling int64) (bool, error) {
	ctx, cancel := b.queryCtx(ctx)
	defer cancel()

	if !exact(delta) || !exact(ceiling) {
		return false, ErrIncrementRange
	}
	res, err := incrementScript.Run(ctx, b.rdb, []string{key}, delta, ceiling).Int()
	if err != nil {
		if isWrongType(err) {
			return false, backend.Mismatch(key, backend.KindScalar, backend.KindHash)
		}
		return false, err
	}
	return res == 1, nil
}

// Close releases the underlying client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (b *Backend) Close(context.Context) error {
	if b.closeClient {
		if err := b.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

// guardScalar fails with *backend.TypeMismatchError if any key holds a hash.
func (b *Backend) guardScalar(ctx context.Context, keys []string) error {
	cmds := make([]*goredis.StatusCmd, len(keys))
	_, err := b.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.Type(ctx, k)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i, c := range cmds {
		if c.Val() == "hash" {
			return backend.Mismatch(keys[i], backend.KindScalar, backend.KindHash)
		}
	}
	return nil
}

// hashErr maps WRONGTYPE replies from hash commands to a type mismatch.
func hashErr(key string, err error) error {
	if err != nil && isWrongType(err) {
		return backend.Mismatch(key, backend.KindHash, backend.KindScalar)
	}
	return err
}

func exact(n int64) bool { return n >= -maxExactInt && n <= maxExactInt }

func isWrongType(err error) bool {
	return strings.Contains(err.Error(), "WRONGTYPE")
}
