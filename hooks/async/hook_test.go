package asynchook

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unkn0wn-root/aside"
)

type countingHooks struct {
	aside.NopHooks

	mu      sync.Mutex
	lookups int
	release chan struct{}
}

func (c *countingHooks) Lookup(string, int, int) {
	if c.release != nil {
		<-c.release
	}
	c.mu.Lock()
	c.lookups++
	c.mu.Unlock()
}

func TestDeliversBeforeClose(t *testing.T) {
	inner := &countingHooks{}
	h := New(inner, 2, 16)
	for i := 0; i < 10; i++ {
		h.Lookup("ns", 1, 0)
	}
	h.Close()

	assert.Equal(t, 10, inner.lookups)
	assert.Zero(t, h.Dropped())
}

func TestDropsWhenFullOrClosed(t *testing.T) {
	inner := &countingHooks{release: make(chan struct{})}
	h := New(inner, 1, 1)

	// one event blocks the worker, one fills the queue, the rest drop
	for i := 0; i < 5; i++ {
		h.Lookup("ns", 1, 0)
	}
	close(inner.release)
	h.Close()
	h.Lookup("ns", 1, 0)

	assert.GreaterOrEqual(t, h.Dropped(), uint64(4))
	assert.LessOrEqual(t, inner.lookups, 2)
	assert.Equal(t, uint64(6), h.Dropped()+uint64(inner.lookups))
}
