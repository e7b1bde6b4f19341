// Package bigcache implements an in-process backend on allegro/bigcache.
//
// bigcache keeps opaque blobs with one global LifeWindow, so each slot is
// stored msgpack-encoded together with its own deadline and checked lazily on
// access: an expired slot reads as a miss and is deleted. LifeWindow still
// applies on top as an upper bound on any entry's lifetime, TTL or not.
//
// Expiry follows the rule of package local: a slot's deadline is fixed by
// its first write with a TTL. Hash field writes re-encode the whole slot.
package bigcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"
	"github.com/jonboulle/clockwork"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/unkn0wn-root/aside/backend"
	"github.com/unkn0wn-root/aside/backend/internal/slot"
)

var ErrLifeWindow = errors.New("bigcache backend: LifeWindow must be positive")

type Config struct {
	LifeWindow         time.Duration // required; upper bound for every entry
	CleanWindow        time.Duration
	Shards             int // power of two
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
	// Clock drives per-slot deadlines. nil => real clock.
	Clock clockwork.Clock
}

type Backend struct {
	// serializes read-modify-write on encoded slots
	mu    sync.Mutex
	c     *bc.BigCache
	clock clockwork.Clock
}

var _ backend.Backend = (*Backend)(nil)

// record is the stored form of a slot.
type record struct {
	Kind     backend.Kind      `msgpack:"k"`
	Payload  []byte            `msgpack:"p,omitempty"`
	Fields   map[string][]byte `msgpack:"f,omitempty"`
	Deadline int64             `msgpack:"d,omitempty"` // unix nanos, 0 => none
}

func New(cfg Config) (*Backend, error) {
	if cfg.LifeWindow <= 0 {
		return nil, ErrLifeWindow
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	conf.Verbose = false
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Backend{c: c, clock: clock}, nil
}

func (b *Backend) ReadBulk(_ context.Context, keys []string) (map[string][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		s, err := b.load(k)
		if err != nil {
			return nil, err
		}
		if s == nil {
			continue
		}
		if err := s.Expect(k, backend.KindScalar); err != nil {
			return nil, err
		}
		out[k] = s.Payload
	}
	return out, nil
}

func (b *Backend) ReadHashFields(_ context.Context, key string, fields backend.FieldSet) (map[string][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.load(key)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return map[string][]byte{}, nil
	}
	if err := s.Expect(key, backend.KindHash); err != nil {
		return nil, err
	}
	return s.Read(fields), nil
}

func (b *Backend) WriteBulk(_ context.Context, items map[string][]byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	slots := make(map[string]*slot.Slot, len(items))
	for k := range items {
		s, err := b.load(k)
		if err != nil {
			return err
		}
		if s != nil {
			if err := s.Expect(k, backend.KindScalar); err != nil {
				return err
			}
			slots[k] = s
		}
	}
	for k, v := range items {
		s := slots[k]
		if s == nil {
			s = slot.NewScalar(v)
		} else {
			s.Payload = slot.Clone(v)
		}
		b.arm(s, ttl)
		if err := b.save(k, s); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) WriteHashFields(_ context.Context, key string, fields map[string][]byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.load(key)
	if err != nil {
		return err
	}
	if s == nil {
		s = slot.NewHash()
	} else if err := s.Expect(key, backend.KindHash); err != nil {
		return err
	}
	s.Merge(fields)
	b.arm(s, ttl)
	return b.save(key, s)
}

func (b *Backend) DeleteBulk(_ context.Context, keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		if err := b.remove(k); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) DeleteHashFields(_ context.Context, key string, fields []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.load(key)
	if err != nil || s == nil {
		return err
	}
	if err := s.Expect(key, backend.KindHash); err != nil {
		return err
	}
	if s.Drop(fields) {
		return b.remove(key)
	}
	return b.save(key, s)
}

func (b *Backend) IncrementWithCeiling(_ context.Context, key string, delta, ceiling int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.load(key)
	if err != nil {
		return false, err
	}
	next, ok, err := slot.Increment(s, key, delta, ceiling)
	if err != nil || !ok {
		return false, err
	}
	if s == nil {
		s = slot.NewScalar(next)
	} else {
		s.Payload = next
	}
	return true, b.save(key, s)
}

func (b *Backend) Close(context.Context) error {
	return b.c.Close()
}

// load returns the live slot at key, or nil. Caller holds b.mu.
func (b *Backend) load(key string) (*slot.Slot, error) {
	raw, err := b.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var r record
	if err := msgpack.Unmarshal(raw, &r); err != nil {
		// self-heal: drop entries we cannot read
		_ = b.remove(key)
		return nil, nil
	}
	s := &slot.Slot{Kind: r.Kind, Payload: r.Payload, Fields: r.Fields}
	if r.Kind == backend.KindHash && s.Fields == nil {
		s.Fields = make(map[string][]byte)
	}
	if r.Deadline != 0 {
		s.Deadline = time.Unix(0, r.Deadline)
	}
	if s.Expired(b.clock.Now()) {
		return nil, b.remove(key)
	}
	return s, nil
}

// Caller holds b.mu.
func (b *Backend) save(key string, s *slot.Slot) error {
	r := record{Kind: s.Kind, Payload: s.Payload, Fields: s.Fields}
	if !s.Deadline.IsZero() {
		r.Deadline = s.Deadline.UnixNano()
	}
	raw, err := msgpack.Marshal(&r)
	if err != nil {
		return fmt.Errorf("bigcache backend: encode %q: %w", key, err)
	}
	return b.c.Set(key, raw)
}

func (b *Backend) remove(key string) error {
	if err := b.c.Delete(key); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
		return err
	}
	return nil
}

// arm fixes the deadline at the first write with a TTL.
func (b *Backend) arm(s *slot.Slot, ttl time.Duration) {
	if ttl > 0 && s.Deadline.IsZero() {
		s.Deadline = b.clock.Now().Add(ttl)
	}
}
