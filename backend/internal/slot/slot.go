// Package slot holds the tagged value slot shared by the in-process backends.
package slot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/aside/backend"
)

// Slot is either Scalar (Payload set) or Hash (Fields set), never both.
type Slot struct {
	Kind     backend.Kind
	Payload  []byte
	Fields   map[string][]byte
	Deadline time.Time // zero => no expiry
}

func NewScalar(b []byte) *Slot {
	return &Slot{Kind: backend.KindScalar, Payload: Clone(b)}
}

func NewHash() *Slot {
	return &Slot{Kind: backend.KindHash, Fields: make(map[string][]byte)}
}

// Expect returns a *backend.TypeMismatchError if s is not of kind want.
func (s *Slot) Expect(key string, want backend.Kind) error {
	if s.Kind != want {
		return backend.Mismatch(key, want, s.Kind)
	}
	return nil
}

func (s *Slot) Expired(now time.Time) bool {
	return !s.Deadline.IsZero() && !now.Before(s.Deadline)
}

// Read copies the selected fields out of a hash slot.
func (s *Slot) Read(sel backend.FieldSet) map[string][]byte {
	if sel.IsAll() {
		out := make(map[string][]byte, len(s.Fields))
		for f, b := range s.Fields {
			out[f] = Clone(b)
		}
		return out
	}
	out := make(map[string][]byte, len(sel.Names()))
	for _, f := range sel.Names() {
		if b, ok := s.Fields[f]; ok {
			out[f] = Clone(b)
		}
	}
	return out
}

func (s *Slot) Merge(fields map[string][]byte) {
	for f, b := range fields {
		s.Fields[f] = Clone(b)
	}
}

// Drop removes fields and reports whether the hash is now empty.
func (s *Slot) Drop(fields []string) bool {
	for _, f := range fields {
		delete(s.Fields, f)
	}
	return len(s.Fields) == 0
}

// Cost approximates the slot's memory footprint in bytes (minimum 1).
func (s *Slot) Cost() int64 {
	n := int64(len(s.Payload))
	for f, b := range s.Fields {
		n += int64(len(f) + len(b))
	}
	if n < 1 {
		return 1
	}
	return n
}

// Increment computes the bounded increment against s (nil => counter at 0).
// It returns the payload to store when ok is true.
func Increment(s *Slot, key string, delta, ceiling int64) (next []byte, ok bool, err error) {
	var cur int64
	if s != nil {
		if err := s.Expect(key, backend.KindScalar); err != nil {
			return nil, false, err
		}
		cur, err = strconv.ParseInt(strings.TrimSpace(string(s.Payload)), 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("slot: counter %q is not an integer: %w", key, err)
		}
	}
	sum := cur + delta
	if (delta > 0 && sum < cur) || (delta < 0 && sum > cur) {
		// wrapped around int64; never applied
		return nil, false, nil
	}
	if sum > ceiling {
		return nil, false, nil
	}
	return []byte(strconv.FormatInt(sum, 10)), true, nil
}

func Clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
