package dto

// Frame is one encoded message ready for the wire.
type Frame struct {
	Seq     uint64
	Type    string
	Payload []byte
}

// Subscription is an observer registered with the publisher. Frames is
// closed when the subscription ends.
type Subscription struct {
	ID     string
	Mode   string
	Frames <-chan Frame
}
