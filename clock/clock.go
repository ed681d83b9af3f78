// Package clock provides the monotonic counter the rest of the module
// uses in place of the TSC (rdtsc/rdtscp) that the original kernel code
// reads directly. A Go process has no portable access to the TSC without
// cgo, but the only properties LogicalLog actually depends on are: the
// counter is strictly increasing per caller and approximately ordered
// across callers. A process-wide atomic counter gives both.
package clock

import "sync/atomic"

// Clock hands out timestamps for MfsOperations and fsync/sync barriers.
type Clock interface {
	// Now returns a value greater than every value previously returned
	// to this caller's CPU/shard. Serialized returns a value that is
	// also guaranteed greater than every value returned so far on any
	// shard, mirroring rdtsc_serialized's stronger ordering guarantee.
	Now() uint64
	Serialized() uint64
}

// Counter is the default Clock: a single process-wide atomic counter.
// Because it is shared, Now and Serialized coincide, but both are kept
// so call sites read the same way they would against a real TSC.
type Counter struct {
	next uint64
}

func New() *Counter {
	return &Counter{}
}

func (c *Counter) Now() uint64 {
	return atomic.AddUint64(&c.next, 1)
}

func (c *Counter) Serialized() uint64 {
	return atomic.AddUint64(&c.next, 1)
}
