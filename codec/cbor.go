package codec

import (
	"github.com/fxamacker/cbor/v2"
)

type CBOROptions struct {
	// Deterministic selects RFC 8949 Core Deterministic encoding, so every
	// process produces identical bytes for the same value.
	Deterministic bool
	// MaxNestedLevels bounds decoding depth. 0 keeps the library default.
	MaxNestedLevels int
}

// CBOR serializes values with fxamacker/cbor. Construct with NewCBOR or
// MustCBOR; the zero value has no modes and fails every call.
//
// Times are stored as RFC3339Nano text. Payloads with duplicate map keys are
// refused, which the controller reports as an undecodable entry (a miss).
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

func NewCBOR[V any](opts CBOROptions) (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if opts.Deterministic {
		eo = cbor.CoreDetEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}

	do := cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels: opts.MaxNestedLevels,
	}
	dm, err := do.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// MustCBOR is NewCBOR for package-level vars; it panics on invalid options.
func MustCBOR[V any](opts CBOROptions) CBOR[V] {
	c, err := NewCBOR[V](opts)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[V]) Encode(v V) ([]byte, error) {
	if c.enc == nil {
		return nil, errUnconfigured("cbor")
	}
	return c.enc.Marshal(v)
}

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	if c.dec == nil {
		return v, errUnconfigured("cbor")
	}
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
