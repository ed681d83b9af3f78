package inum

import (
	"errors"
	"sync"

	"github.com/mit-pdos/scalefs/journal"
)

// ErrNoInodes is returned by FakeInodeLayer.Alloc once its fixed table
// is exhausted.
var ErrNoInodes = errors.New("inum: out of inodes")

type fakeInode struct {
	mu       sync.Mutex
	valid    bool
	nodeType NodeType
	nlink    int
	size     uint32
	dir      map[string]fakeDirEntry // only meaningful when nodeType == Dir
	cached   bool                    // buffer-cache state present, per evict_bufcache
}

type fakeDirEntry struct {
	child Inum
	isDir bool
}

// FakeInodeLayer is a minimal in-memory stand-in for InodeLayer,
// sufficient to drive and test package mfs without a real on-disk
// inode/directory format - that format is an out-of-scope peripheral
// subsystem per spec.md's Non-goals, so this package supplies a
// faithful but non-persistent collaborator instead.
type FakeInodeLayer struct {
	mu     sync.Mutex
	inodes []*fakeInode // index 0 is NullInum, unused
}

func NewFakeInodeLayer(capacity int) *FakeInodeLayer {
	return &FakeInodeLayer{inodes: make([]*fakeInode, capacity)}
}

func (l *FakeInodeLayer) get(i Inum) *fakeInode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inodes[i]
}

func (l *FakeInodeLayer) Alloc(kind NodeType) (Inum, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for idx := 1; idx < len(l.inodes); idx++ {
		if l.inodes[idx] == nil {
			in := &fakeInode{valid: true, nodeType: kind, cached: true}
			if kind == Dir {
				in.dir = make(map[string]fakeDirEntry)
			}
			l.inodes[idx] = in
			return Inum(idx), nil
		}
	}
	return NullInum, ErrNoInodes
}

func (l *FakeInodeLayer) Get(i Inum) (bool, error) {
	in := l.get(i)
	if in == nil {
		return false, nil
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.valid, nil
}

func (l *FakeInodeLayer) Lock(i Inum, writable bool) {
	in := l.get(i)
	in.mu.Lock()
}

func (l *FakeInodeLayer) Unlock(i Inum) {
	in := l.get(i)
	in.mu.Unlock()
}

// Update, Truncate and SetType all assume the caller already holds
// i's lock via Lock, matching ilock/itrunc/iupdate in scalefs.cc where
// ilock always brackets these from the outside rather than each taking
// it itself. Update takes tr purely so callers thread the active
// transaction through every mutation consistently with the real
// on-disk layer, which would use tr to stage its own dirty blocks; the
// fake has no disk representation to dirty.
func (l *FakeInodeLayer) Update(i Inum, tr *journal.Transaction) error {
	if in := l.get(i); in == nil || !in.valid {
		return errors.New("inum: update of invalid inode")
	}
	return nil
}

func (l *FakeInodeLayer) Truncate(i Inum, size uint32, tr *journal.Transaction) error {
	in := l.get(i)
	if in == nil || !in.valid {
		return errors.New("inum: truncate of invalid inode")
	}
	in.size = size
	return nil
}

func (l *FakeInodeLayer) SetType(i Inum, t NodeType) {
	in := l.get(i)
	in.nodeType = t
	if t == Dir && in.dir == nil {
		in.dir = make(map[string]fakeDirEntry)
	}
}

// Type reads back i's nodeType, matching scalefs.cc's ip->type reads
// outside free_inode/inode_init (e.g. evict_pagecache's type check on
// the inode backing a mapped mnode).
func (l *FakeInodeLayer) Type(i Inum) NodeType {
	in := l.get(i)
	if in == nil {
		return Free
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.nodeType
}

func (l *FakeInodeLayer) NLink(i Inum) int {
	in := l.get(i)
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.nlink
}

// DirLookup, DirLink and DirUnlink assume the caller already holds
// parent's lock via Lock, the same contract as Update/Truncate/SetType
// above - dirlookup/dirlink/dirunlink in scalefs.cc are always called
// between an ilock/iunlock pair bracketing the parent directory, never
// taking that lock themselves. child's own lock is unrelated to
// parent's and is taken here directly, same as scalefs.cc's nlink
// bookkeeping on the child inode.
func (l *FakeInodeLayer) DirLookup(parent Inum, name string) (child Inum, isDir bool, found bool) {
	in := l.get(parent)
	e, ok := in.dir[name]
	if !ok {
		return NullInum, false, false
	}
	return e.child, e.isDir, true
}

func (l *FakeInodeLayer) DirLink(parent Inum, name string, child Inum, isDir bool) error {
	in := l.get(parent)
	if _, exists := in.dir[name]; exists {
		return errors.New("inum: directory entry already exists")
	}
	in.dir[name] = fakeDirEntry{child: child, isDir: isDir}
	if childInode := l.get(child); childInode != nil {
		childInode.mu.Lock()
		childInode.nlink++
		childInode.mu.Unlock()
	}
	return nil
}

func (l *FakeInodeLayer) DirUnlink(parent Inum, name string, child Inum, isDir bool) error {
	in := l.get(parent)
	e, ok := in.dir[name]
	if !ok || e.child != child {
		return errors.New("inum: directory entry not found")
	}
	delete(in.dir, name)

	if childInode := l.get(child); childInode != nil {
		childInode.mu.Lock()
		childInode.nlink--
		childInode.mu.Unlock()
	}
	return nil
}

func (l *FakeInodeLayer) DirFlush(i Inum, tr *journal.Transaction) {
	// No disk representation to flush; present for interface parity
	// with the real on-disk directory layer.
}

// DropBufferCache clears i's cached flag, matching evict_bufcache's
// drop_bufcache(ip) call on every mapped inode.
func (l *FakeInodeLayer) DropBufferCache(i Inum) {
	in := l.get(i)
	if in == nil {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.cached = false
}

// IsBufferCached reports whether i's buffer-cache state is still
// present, for tests asserting EvictBufferCache's effect.
func (l *FakeInodeLayer) IsBufferCached(i Inum) bool {
	in := l.get(i)
	if in == nil {
		return false
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.cached
}

var _ InodeLayer = (*FakeInodeLayer)(nil)

// FakeMnodeLayer is a minimal in-memory stand-in for MnodeLayer: a
// monotonically increasing mnum counter plus a type table.
type FakeMnodeLayer struct {
	mu      sync.Mutex
	next    Mnum
	types   map[Mnum]NodeType
	evicted map[Mnum]bool // mnums whose page cache has been dropped
}

func NewFakeMnodeLayer() *FakeMnodeLayer {
	return &FakeMnodeLayer{next: 1, types: make(map[Mnum]NodeType), evicted: make(map[Mnum]bool)}
}

func (l *FakeMnodeLayer) Alloc(kind NodeType) Mnum {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.next
	l.next++
	l.types[m] = kind
	return m
}

func (l *FakeMnodeLayer) Type(m Mnum) NodeType {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.types[m]
}

func (l *FakeMnodeLayer) Free(m Mnum) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.types, m)
	delete(l.evicted, m)
}

// DropPageCache marks m's page cache dropped, matching
// evict_pagecache's drop_pagecache() call on a mapped file mnode.
// Callers are expected to have already filtered to file mnodes, the
// same way evict_pagecache checks m->type() before calling it.
func (l *FakeMnodeLayer) DropPageCache(m Mnum) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evicted[m] = true
}

// IsPageCached reports whether m's page cache is still present (every
// mnum starts out cached until DropPageCache runs), for tests
// asserting EvictPageCache's effect.
func (l *FakeMnodeLayer) IsPageCached(m Mnum) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.evicted[m]
}

var _ MnodeLayer = (*FakeMnodeLayer)(nil)
