// Package ristretto implements a bounded in-process backend on dgraph-io/ristretto.
//
// Slots are admitted with a cost equal to their byte size and re-set with
// their new cost whenever a write changes them; under pressure ristretto may
// drop or evict them, which callers observe as misses. Expiry follows the
// same one-shot rule as package local: a slot's deadline is fixed by its
// first write with a TTL and later writes never move it.
package ristretto

import (
	"context"
	"errors"
	"sync"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/aside/backend"
	"github.com/unkn0wn-root/aside/backend/internal/slot"
)

type Config struct {
	NumCounters int64
	MaxCost     int64 // bytes
	BufferItems int64
	Metrics     bool
}

type Backend struct {
	// serializes read-modify-write on slots; ristretto only guards its own map
	mu sync.Mutex
	c  *rc.Cache
}

var _ backend.Backend = (*Backend)(nil)

func New(cfg Config) (*Backend, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto backend: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{c: c}, nil
}

func (b *Backend) ReadBulk(_ context.Context, keys []string) (map[string][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		s := b.get(k)
		if s == nil {
			continue
		}
		if err := s.Expect(k, backend.KindScalar); err != nil {
			return nil, err
		}
		out[k] = slot.Clone(s.Payload)
	}
	return out, nil
}

func (b *Backend) ReadHashFields(_ context.Context, key string, fields backend.FieldSet) (map[string][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.get(key)
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
		if s := b.get(k); s != nil {
			if err := s.Expect(k, backend.KindScalar); err != nil {
				return err
			}
			slots[k] = s
		}
	}
	now := time.Now()
	for k, v := range items {
		s := slots[k]
		if s == nil {
			s = slot.NewScalar(v)
		} else {
			s.Payload = slot.Clone(v)
		}
		arm(s, now, ttl)
		b.put(k, s, now)
	}
	b.c.Wait()
	return nil
}

func (b *Backend) WriteHashFields(_ context.Context, key string, fields map[string][]byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.get(key)
	if s == nil {
		s = slot.NewHash()
	} else if err := s.Expect(key, backend.KindHash); err != nil {
		return err
	}
	s.Merge(fields)
	now := time.Now()
	arm(s, now, ttl)
	b.put(key, s, now)
	b.c.Wait()
	return nil
}

func (b *Backend) DeleteBulk(_ context.Context, keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		b.c.Del(k)
	}
	b.c.Wait()
	return nil
}

func (b *Backend) DeleteHashFields(_ context.Context, key string, fields []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.get(key)
	if s == nil {
		return nil
	}
	if err := s.Expect(key, backend.KindHash); err != nil {
		return err
	}
	if s.Drop(fields) {
		b.c.Del(key)
	} else {
		b.put(key, s, time.Now())
	}
	b.c.Wait()
	return nil
}

func (b *Backend) IncrementWithCeiling(_ context.Context, key string, delta, ceiling int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.get(key)
	next, ok, err := slot.Increment(s, key, delta, ceiling)
	if err != nil || !ok {
		return false, err
	}
	if s == nil {
		s = slot.NewScalar(next)
	} else {
		s.Payload = next
	}
	b.put(key, s, time.Now())
	b.c.Wait()
	return true, nil
}

func (b *Backend) Close(context.Context) error {
	b.c.Wait()
	b.c.Close()
	return nil
}

// Metrics exposes ristretto's counters (nil unless Config.Metrics is set).
func (b *Backend) Metrics() *rc.Metrics { return b.c.Metrics }

// Caller holds b.mu.
func (b *Backend) get(key string) *slot.Slot {
	v, ok := b.c.Get(key)
	if !ok {
		return nil
	}
	s, _ := v.(*slot.Slot)
	if s == nil || s.Expired(time.Now()) {
		// self-heal: drop unexpected or expired entries
		b.c.Del(key)
		return nil
	}
	return s
}

// put (re)sets s with its current cost and the time left to its deadline.
// A rejected Set is a silent miss later. Caller holds b.mu.
func (b *Backend) put(key string, s *slot.Slot, now time.Time) {
	var ttl time.Duration
	if !s.Deadline.IsZero() {
		ttl = s.Deadline.Sub(now)
		if ttl <= 0 {
			b.c.Del(key)
			return
		}
	}
	b.c.SetWithTTL(key, s, s.Cost(), ttl)
}

// arm fixes the deadline at the first write with a TTL.
func arm(s *slot.Slot, now time.Time, ttl time.Duration) {
	if ttl > 0 && s.Deadline.IsZero() {
		s.Deadline = now.Add(ttl)
	}
}
