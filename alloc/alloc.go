// Package alloc implements the free-block allocator (C1 in SPEC_FULL.md):
// O(1) allocation and O(1) free over a dual vector+freelist
// representation of free bits, ported from sv6's free_bit_vector /
// free_bit_freelist (_examples/original_source/kernel/scalefs.cc), with
// the exported-API shape of go-nfsd's alloc/alloctxn packages
// (_examples/mit-pdos-go-nfsd/alloc/alloc.go,
// _examples/mit-pdos-go-nfsd/alloctxn/alloctxn.go).
package alloc

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNoSpace is returned by Alloc when the freelist is empty, matching
// spec.md §4.1's "alloc returning the sentinel is not a panic".
var ErrNoSpace = errors.New("alloc: out of space")

// bit is one tracked number's allocation state. It belongs to exactly
// one of two structures at a time: the vector (always) and, when free,
// the freelist (doubly linked via prev/next).
type bit struct {
	mu     sync.Mutex
	no     uint64
	isFree bool

	prev, next *bit // freelist links; valid only while linked
}

// Allocator tracks which numbers in [0,size) are allocated. In this
// module only the façade's data-block allocator uses it; inode numbers
// come from InodeLayer.Alloc instead. Name is purely a label for
// logging/stats.
type Allocator struct {
	Name string

	bits []*bit // vector representation, indexed by number

	listMu     sync.Mutex
	head, tail *bit // freelist: O(1) push/pop at either end
	freeCount  uint64
}

// New builds an allocator over [0,size), with the numbers in initFree
// (sorted or not) marked free and linked into the freelist in order.
// Grounded on mfs_interface::initialize_free_bit_vector, which builds
// the vector from a bitmap and appends every free bit to the tail of
// the freelist in bit order.
func New(name string, size uint64, initFree []uint64) *Allocator {
	a := &Allocator{
		Name: name,
		bits: make([]*bit, size),
	}
	for n := uint64(0); n < size; n++ {
		a.bits[n] = &bit{no: n, isFree: false}
	}
	for _, n := range initFree {
		b := a.bits[n]
		b.isFree = true
		a.pushTail(b)
	}
	return a
}

func (a *Allocator) pushTail(b *bit) {
	a.listMu.Lock()
	defer a.listMu.Unlock()
	a.pushTailLocked(b)
}

func (a *Allocator) pushTailLocked(b *bit) {
	b.prev = a.tail
	b.next = nil
	if a.tail != nil {
		a.tail.next = b
	} else {
		a.head = b
	}
	a.tail = b
	a.freeCount++
}

// pushHeadLocked adds b to the freelist head; used by Free, which is
// documented (spec.md §4.1) to push at the head rather than the tail.
func (a *Allocator) pushHeadLocked(b *bit) {
	b.next = a.head
	b.prev = nil
	if a.head != nil {
		a.head.prev = b
	} else {
		a.tail = b
	}
	a.head = b
	a.freeCount++
}

func (a *Allocator) popHeadLocked() *bit {
	b := a.head
	if b == nil {
		return nil
	}
	a.head = b.next
	if a.head != nil {
		a.head.prev = nil
	} else {
		a.tail = nil
	}
	b.prev, b.next = nil, nil
	a.freeCount--
	return b
}

// Alloc returns a free number and marks it allocated, or ErrNoSpace.
//
// Lock order: freelist lock, then the popped bit's own lock — never the
// reverse, to avoid the ABBA deadlock spec.md §4.1/§5 calls out between
// concurrent Alloc and Free on the same bit. Both locks are held
// together across the unlink-and-flip step, per Invariant F1: F1 only
// permits the opposite transient ("is_free = false but still linked",
// between list-removal and write-lock release), never "is_free = true
// but already unlinked".
func (a *Allocator) Alloc() (uint64, error) {
	a.listMu.Lock()
	b := a.head
	if b == nil {
		a.listMu.Unlock()
		return 0, ErrNoSpace
	}

	b.mu.Lock()
	a.popHeadLocked()
	if !b.isFree {
		b.mu.Unlock()
		a.listMu.Unlock()
		panic("alloc: freelist held an already-allocated bit")
	}
	b.isFree = false
	b.mu.Unlock()
	a.listMu.Unlock()

	return b.no, nil
}

// Free marks no as free again. Panics on double-free, per spec.md §4.1/§7.
//
// Lock order: the bit's own lock first, released before taking the
// freelist lock, as spec.md §4.1 requires for Free (the inverse of
// Alloc's order, which is safe precisely because the two never overlap
// in which lock they hold when acquiring the other).
func (a *Allocator) Free(no uint64) {
	b := a.bits[no]

	b.mu.Lock()
	if b.isFree {
		b.mu.Unlock()
		panic(fmt.Sprintf("alloc: double free of number %d", no))
	}
	b.isFree = true
	b.mu.Unlock()

	a.listMu.Lock()
	a.pushHeadLocked(b)
	a.listMu.Unlock()
}

// Stats is an approximate snapshot: free count and total size, matching
// print_free_blocks's "approximate (like a snapshot)" guarantee from
// scalefs.cc. Each bit is read under its own lock, but no lock covers
// the whole walk, so concurrent Alloc/Free calls may land mid-count.
type Stats struct {
	Free  uint64
	Total uint64
}

func (a *Allocator) Stats() Stats {
	var free uint64
	for _, b := range a.bits {
		b.mu.Lock()
		if b.isFree {
			free++
		}
		b.mu.Unlock()
	}
	return Stats{Free: free, Total: uint64(len(a.bits))}
}
