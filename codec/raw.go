package codec

// Bytes stores []byte values as-is. The backends copy on the way in and out,
// so callers may keep mutating their slices.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

// String stores string values as raw UTF-8 (not JSON-quoted).
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
