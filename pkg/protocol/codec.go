package protocol

// Message is one decoded wire message exchanged with a peer.
type Message struct {
	Type    FrameType
	Payload []byte
}

// Heartbeat returns a ready-to-send heartbeat message.
func Heartbeat() Message {
	return Message{Type: FrameHeartbeat}
}

// Goodbye returns a ready-to-send orderly-close message.
func Goodbye() Message {
	return Message{Type: FrameGoodbye}
}

// Codec frames and (de)serializes messages for a single channel.
// One codec instance is created per connection by a Factory; instances
// are never shared between channels, so implementations may keep
// per-connection state without locking.
type Codec interface {
	// Encode serializes a message into its wire representation.
	Encode(m Message) ([]byte, error)

	// Decode parses one complete wire message.
	Decode(data []byte) (Message, error)
}

// Factory creates a codec bound to one channel.
type Factory interface {
	NewCodec() Codec
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func() Codec

// NewCodec calls f.
func (f FactoryFunc) NewCodec() Codec {
	return f()
}

// BinaryCodec is the default codec: the 4-byte frame header followed by
// the raw payload. It is stateless.
type BinaryCodec struct{}

// NewBinaryFactory returns a factory producing BinaryCodec instances.
func NewBinaryFactory() Factory {
	return FactoryFunc(func() Codec { return &BinaryCodec{} })
}

// Encode implements Codec.
func (c *BinaryCodec) Encode(m Message) ([]byte, error) {
	if !m.Type.Valid() {
		return nil, ErrInvalidFrameType
	}
	if len(m.Payload) > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	return NewFrame(m.Type, m.Payload).Encode(), nil
}

// Decode implements Codec.
func (c *BinaryCodec) Decode(data []byte) (Message, error) {
	f, err := DecodeFrame(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: f.Type, Payload: f.Payload}, nil
}
