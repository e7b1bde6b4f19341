package codec

import "google.golang.org/protobuf/proto"

// Protobuf serializes proto messages. Construct with NewProtobuf.
type Protobuf[T proto.Message] struct {
	new func() T // e.g. func() *pb.User { return &pb.User{} }
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	if c.new == nil {
		var zero T
		return zero, errUnconfigured("protobuf")
	}
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
