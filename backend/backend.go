// Package backend defines the storage abstraction used by aside.
//
// A backend stores opaque byte payloads under physical keys. Every key holds a
// slot tagged either Scalar (one payload) or Hash (field -> payload). The tag
// is fixed when the slot is created; touching a slot under the other tag is a
// *TypeMismatchError on every implementation.
//
// Implementations MUST be byte-for-byte transparent: reads return exactly the
// bytes previously written for a key or field. Encoding is the caller's
// concern (see package codec).
//
// Errors other than *TypeMismatchError are treated by aside as cache
// unavailability: the controller logs them and fails open.
package backend

import (
	"context"
	"time"
)

// Backend is the storage contract. Implementations must be safe for
// concurrent use.
type Backend interface {
	// ReadBulk returns the scalar payloads found for keys. Misses have no entry.
	ReadBulk(ctx context.Context, keys []string) (map[string][]byte, error)

	// ReadHashFields returns the requested fields of the hash at key, or every
	// stored field when fields is All(). Missing fields have no entry.
	ReadHashFields(ctx context.Context, key string, fields FieldSet) (map[string][]byte, error)

	// WriteBulk stores scalar payloads. ttl <= 0 sets no expiry.
	WriteBulk(ctx context.Context, items map[string][]byte, ttl time.Duration) error

	// WriteHashFields merges fields into the hash at key, creating it if needed.
	// When the TTL is applied is implementation specific (see each backend).
	WriteHashFields(ctx context.Context, key string, fields map[string][]byte, ttl time.Duration) error

	// DeleteBulk removes keys regardless of their tag.
	DeleteBulk(ctx context.Context, keys []string) error

	// DeleteHashFields removes fields from the hash at key. A hash left
	// without fields ceases to exist.
	DeleteHashFields(ctx context.Context, key string, fields []string) error

	// IncrementWithCeiling atomically adds delta to the integer stored at key
	// (missing => 0) only if the result would not exceed ceiling. It reports
	// whether the increment was applied.
	IncrementWithCeiling(ctx context.Context, key string, delta, ceiling int64) (bool, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// Kind tags a value slot.
type Kind uint8

const (
	KindScalar Kind = iota + 1
	KindHash
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindHash:
		return "hash"
	default:
		return "unknown"
	}
}

// FieldSet selects hash fields: either an explicit list of names or every
// field currently stored. The zero value is an empty explicit selection.
type FieldSet struct {
	all   bool
	names []string
}

// All selects every stored field.
func All() FieldSet { return FieldSet{all: true} }

// Only selects the named fields.
func Only(names ...string) FieldSet { return FieldSet{names: names} }

// IsAll reports whether the set selects every stored field.
func (f FieldSet) IsAll() bool { return f.all }

// Names returns the explicit names (nil for All()).
func (f FieldSet) Names() []string { return f.names }

// Empty reports whether the selection can never match anything.
func (f FieldSet) Empty() bool { return !f.all && len(f.names) == 0 }
