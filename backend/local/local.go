// Package local implements an in-process backend.
//
// Expiry follows a one-shot rule: a key's eviction is armed exactly once, at
// its first write with a positive TTL. Later writes to the same key never
// re-arm or extend it. Deleting a key cancels its eviction.
//
// Evictions are scheduled on a clockwork.Clock so tests can advance virtual
// time. Reads also compare the deadline with the clock, so an expired key is
// never served even if its eviction callback has not run yet.
package local

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/unkn0wn-root/aside/backend"
	"github.com/unkn0wn-root/aside/backend/internal/slot"
)

type Config struct {
	// Clock drives expiry. nil => real clock.
	Clock clockwork.Clock
}

type entry struct {
	*slot.Slot
	timer clockwork.Timer // armed eviction; nil until the first write with a TTL
}

// Backend is an in-process map of tagged slots.
type Backend struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	entries map[string]*entry
}

var _ backend.Backend = (*Backend)(nil)

func New(cfg Config) *Backend {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Backend{clock: clock, entries: make(map[string]*entry)}
}

func (b *Backend) ReadBulk(_ context.Context, keys []string) (map[string][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		e := b.lookup(k)
		if e == nil {
			continue
		}
		if err := e.Expect(k, backend.KindScalar); err != nil {
			return nil, err
		}
		out[k] = slot.Clone(e.Payload)
	}
	return out, nil
}

func (b *Backend) ReadHashFields(_ context.Context, key string, fields backend.FieldSet) (map[string][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(key)
	if e == nil {
		return map[string][]byte{}, nil
	}
	if err := e.Expect(key, backend.KindHash); err != nil {
		return nil, err
	}
	return e.Read(fields), nil
}

func (b *Backend) WriteBulk(_ context.Context, items map[string][]byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// validate every key first so a mismatch leaves the map untouched
	for k := range items {
		if e := b.lookup(k); e != nil {
			if err := e.Expect(k, backend.KindScalar); err != nil {
				return err
			}
		}
	}
	for k, v := range items {
		e := b.entries[k]
		if e == nil {
			e = &entry{Slot: slot.NewScalar(v)}
			b.entries[k] = e
		} else {
			e.Payload = slot.Clone(v)
		}
		b.arm(k, e, ttl)
	}
	return nil
}

func (b *Backend) WriteHashFields(_ context.Context, key string, fields map[string][]byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(key)
	if e == nil {
		e = &entry{Slot: slot.NewHash()}
		b.entries[key] = e
	} else if err := e.Expect(key, backend.KindHash); err != nil {
		return err
	}
	e.Merge(fields)
	b.arm(key, e, ttl)
	return nil
}

func (b *Backend) DeleteBulk(_ context.Context, keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		b.remove(k)
	}
	return nil
}

func (b *Backend) DeleteHashFields(_ context.Context, key string, fields []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(key)
	if e == nil {
		return nil
	}
	if err := e.Expect(key, backend.KindHash); err != nil {
		return err
	}
	if e.Drop(fields) {
		b.remove(key)
	}
	return nil
}

func (b *Backend) IncrementWithCeiling(_ context.Context, key string, delta, ceiling int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(key)
	var cur *slot.Slot
	if e != nil {
		cur = e.Slot
	}
	next, ok, err := slot.Increment(cur, key, delta, ceiling)
	if err != nil || !ok {
		return false, err
	}
	if e == nil {
		b.entries[key] = &entry{Slot: slot.NewScalar(next)}
	} else {
		e.Payload = next
	}
	return true, nil
}

// Len returns the number of live keys.
func (b *Backend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clock.Now()
	n := 0
	for _, e := range b.entries {
		if !e.Expired(now) {
			n++
		}
	}
	return n
}

// Close cancels pending evictions and drops every key.
func (b *Backend) Close(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.entries {
		b.remove(k)
	}
	return nil
}

// lookup returns the live entry for key, evicting it if its deadline passed.
// Caller holds b.mu.
func (b *Backend) lookup(key string) *entry {
	e, ok := b.entries[key]
	if !ok {
		return nil
	}
	if e.Expired(b.clock.Now()) {
		b.remove(key)
		return nil
	}
	return e
}

// arm schedules the one-shot eviction for e unless one already exists.
// Caller holds b.mu.
func (b *Backend) arm(key string, e *entry, ttl time.Duration) {
	if ttl <= 0 || e.timer != nil {
		return
	}
	e.Deadline = b.clock.Now().Add(ttl)
	e.timer = b.clock.AfterFunc(ttl, func() { b.expire(key, e) })
}

func (b *Backend) expire(key string, e *entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// the key may have been deleted and recreated since e was armed
	if b.entries[key] == e {
		delete(b.entries, key)
	}
}

// Caller holds b.mu.
func (b *Backend) remove(key string) {
	e, ok := b.entries[key]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(b.entries, key)
}
