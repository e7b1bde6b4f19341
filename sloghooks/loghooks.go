// Package sloghooks reports aside hook events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/aside"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	LookupEvery  uint64
	ComputeEvery uint64
	// Optional namespace redactor. Defaults to no redaction; use
	// HashRedact to log a SHA-256 prefix instead.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	lookupCtr  atomic.Uint64
	computeCtr atomic.Uint64
}

var _ aside.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

// HashRedact replaces a namespace with the hex of its SHA-256 prefix.
func HashRedact(ns string) string {
	sum := sha256.Sum256([]byte(ns))
	return hex.EncodeToString(sum[:8])
}

func (h *Hooks) redact(ns string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(ns)
	}
	return ns
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Lookup(ns string, hits, misses int) {
	if h.l == nil || !sample(h.opts.LookupEvery, &h.lookupCtr) {
		return
	}
	h.l.Debug("aside.lookup",
		"ns", h.redact(ns),
		"hits", hits,
		"misses", misses)
}

func (h *Hooks) BackendFailure(ns string, action aside.Action, count int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("aside.backend_failure",
		"ns", h.redact(ns),
		"action", action.String(),
		"count", count,
		"err", err)
}

func (h *Hooks) Compute(ns, strategy string, count int) {
	if h.l == nil || !sample(h.opts.ComputeEvery, &h.computeCtr) {
		return
	}
	h.l.Info("aside.compute",
		"ns", h.redact(ns),
		"strategy", strategy,
		"count", count)
}
