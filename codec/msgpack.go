package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack serializes values with vmihailenco/msgpack/v5. The zero value is
// ready to use and reads field names from `msgpack` tags only.
type Msgpack[V any] struct {
	// FallbackTag names a struct tag consulted when a field has no msgpack
	// tag; "json" lets one set of tags serve both codecs.
	FallbackTag string
	// SortMapKeys makes map encoding deterministic.
	SortMapKeys bool
}

var _ Codec[struct{}] = Msgpack[struct{}]{}

func (m Msgpack[V]) Encode(v V) ([]byte, error) {
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)

	var buf bytes.Buffer
	enc.Reset(&buf)
	enc.UseCompactInts(true)
	enc.SetSortMapKeys(m.SortMapKeys)
	if m.FallbackTag != "" {
		enc.SetCustomStructTag(m.FallbackTag)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m Msgpack[V]) Decode(b []byte) (V, error) {
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)

	var v V
	dec.Reset(bytes.NewReader(b))
	if m.FallbackTag != "" {
		dec.SetCustomStructTag(m.FallbackTag)
	}
	err := dec.Decode(&v)
	return v, err
}
