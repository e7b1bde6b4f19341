package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unkn0wn-root/aside"
)

func newTestHooks(opts Options) (*Hooks, *bytes.Buffer) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(l, opts), &buf
}

func TestBackendFailure(t *testing.T) {
	h, buf := newTestHooks(Options{})
	h.BackendFailure("user", aside.ActionWrite, 3, errors.New("down"))

	out := buf.String()
	assert.Contains(t, out, "aside.backend_failure")
	assert.Contains(t, out, "ns=user")
	assert.Contains(t, out, "action=write")
	assert.Contains(t, out, "count=3")
	assert.Contains(t, out, "err=down")
}

func TestSampling(t *testing.T) {
	h, buf := newTestHooks(Options{LookupEvery: 3})
	for i := 0; i < 9; i++ {
		h.Lookup("user", 1, 0)
	}
	assert.Equal(t, 3, strings.Count(buf.String(), "aside.lookup"))
}

func TestRedact(t *testing.T) {
	h, buf := newTestHooks(Options{Redact: HashRedact})
	h.Compute("tenant-42", "keyed_map", 2)

	assert.NotContains(t, buf.String(), "tenant-42")
	assert.Contains(t, buf.String(), "ns="+HashRedact("tenant-42"))
}

func TestNilLogger(t *testing.T) {
	h := New(nil, Options{})
	assert.NotPanics(t, func() {
		h.Lookup("ns", 1, 1)
		h.BackendFailure("ns", aside.ActionRead, 1, errors.New("x"))
		h.Compute("ns", "single_value", 1)
	})
}
