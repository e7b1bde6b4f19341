package aside

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/aside/backend"
	"github.com/unkn0wn-root/aside/backend/local"
)

var errDown = errors.New("backend down")

// spyBackend counts calls and optionally fails them before they reach the
// wrapped backend.
type spyBackend struct {
	inner backend.Backend

	mu    sync.Mutex
	calls int
	fail  error
}

var _ backend.Backend = (*spyBackend)(nil)

func newSpy() *spyBackend { return &spyBackend{inner: local.New(local.Config{})} }

func (s *spyBackend) enter() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.fail
}

func (s *spyBackend) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *spyBackend) failWith(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

func (s *spyBackend) ReadBulk(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	return s.inner.ReadBulk(ctx, keys)
}

func (s *spyBackend) ReadHashFields(ctx context.Context, key string, fields backend.FieldSet) (map[string][]byte, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	return s.inner.ReadHashFields(ctx, key, fields)
}

func (s *spyBackend) WriteBulk(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if err := s.enter(); err != nil {
		return err
	}
	return s.inner.WriteBulk(ctx, items, ttl)
}

func (s *spyBackend) WriteHashFields(ctx context.Context, key string, fields map[string][]byte, ttl time.Duration) error {
	if err := s.enter(); err != nil {
		return err
	}
	return s.inner.WriteHashFields(ctx, key, fields, ttl)
}

func (s *spyBackend) DeleteBulk(ctx context.Context, keys []string) error {
	if err := s.enter(); err != nil {
		return err
	}
	return s.inner.DeleteBulk(ctx, keys)
}

func (s *spyBackend) DeleteHashFields(ctx context.Context, key string, fields []string) error {
	if err := s.enter(); err != nil {
		return err
	}
	return s.inner.DeleteHashFields(ctx, key, fields)
}

func (s *spyBackend) IncrementWithCeiling(ctx context.Context, key string, delta, ceiling int64) (bool, error) {
	if err := s.enter(); err != nil {
		return false, err
	}
	return s.inner.IncrementWithCeiling(ctx, key, delta, ceiling)
}

func (s *spyBackend) Close(ctx context.Context) error { return s.inner.Close(ctx) }

type logEntry struct {
	level string
	msg   string
	f     Fields
}

type recLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recLogger) add(level, msg string, f Fields) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, f: f})
	l.mu.Unlock()
}

func (l *recLogger) Debug(msg string, f Fields) { l.add("debug", msg, f) }
func (l *recLogger) Info(msg string, f Fields)  { l.add("info", msg, f) }
func (l *recLogger) Warn(msg string, f Fields)  { l.add("warn", msg, f) }
func (l *recLogger) Error(msg string, f Fields) { l.add("error", msg, f) }

func (l *recLogger) all() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]logEntry(nil), l.entries...)
}

type recHooks struct {
	mu       sync.Mutex
	hits     int
	misses   int
	failures int
	computes []string
}

func (h *recHooks) Lookup(_ string, hits, misses int) {
	h.mu.Lock()
	h.hits += hits
	h.misses += misses
	h.mu.Unlock()
}

func (h *recHooks) BackendFailure(_ string, _ Action, _ int, _ error) {
	h.mu.Lock()
	h.failures++
	h.mu.Unlock()
}

func (h *recHooks) Compute(_ string, strategy string, _ int) {
	h.mu.Lock()
	h.computes = append(h.computes, strategy)
	h.mu.Unlock()
}

type user struct {
	Name string `json:"name"`
}

func newTestController[V any](t *testing.T, be backend.Backend, log Logger, hooks Hooks) *Controller[V] {
	t.Helper()
	c, err := New[V](Options[V]{Backend: be, Logger: log, Hooks: hooks})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}
