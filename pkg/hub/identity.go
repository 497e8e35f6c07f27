package hub

import "sync/atomic"

// IDAllocator hands out process-unique client identities. Identities are
// never reused for the lifetime of the allocator; handing out the same
// value twice is a contract violation the hub treats as a programming
// error (see IdentityCollisionError).
//
// The allocator is an injected dependency rather than package state so
// tests can substitute a fixed sequence.
type IDAllocator interface {
	NextID() uint64
}

// counterAllocator is the default allocator: a monotonically increasing
// atomic counter starting at 1.
type counterAllocator struct {
	next atomic.Uint64
}

// NewIDAllocator returns the default atomic-counter allocator.
func NewIDAllocator() IDAllocator {
	return &counterAllocator{}
}

func (a *counterAllocator) NextID() uint64 {
	return a.next.Add(1)
}
