// Package codec serializes cached values to the bytes a backend stores.
//
// JSON is the default and produces the wire format shared with other
// processes reading the same store: scalar values are JSON text and every
// hash field is JSON text. The other codecs trade that interoperability for
// size or speed and must be used by every reader and writer of a namespace.
package codec

import "fmt"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

func errUnconfigured(name string) error {
	return fmt.Errorf("codec: %s codec used without its constructor", name)
}
