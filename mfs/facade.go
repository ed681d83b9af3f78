// Package mfs implements the façade (C5 in SPEC_FULL.md) that ties
// together the block allocator, physical journal, logical log and
// dependency resolver into the filesystem-facing operations sv6's
// mfs_interface exposes: creating files/directories on first touch,
// linking/unlinking/renaming directory entries, and deleting inodes
// once their link count and open-file count both reach zero. Grounded
// throughout on
// _examples/original_source/kernel/scalefs.cc's mfs_interface methods.
//
// SPEC_FULL.md §9's "Global mutable state" decision is implemented
// here: every method hangs off *Facade, constructed
// explicitly by the caller and threaded through every call site -
// there is no package-level rootfs_interface-style global.
package mfs

import (
	"sync"

	"github.com/mit-pdos/scalefs/alloc"
	"github.com/mit-pdos/scalefs/bdev"
	"github.com/mit-pdos/scalefs/clock"
	"github.com/mit-pdos/scalefs/inum"
	"github.com/mit-pdos/scalefs/journal"
	"github.com/mit-pdos/scalefs/oplog"
	"github.com/mit-pdos/scalefs/stats"
)

// RootMnum is the mnum permanently assigned to the filesystem root
// directory, matching load_root's hardcoded root inum of 1.
const RootMnum inum.Mnum = 1

// Facade is the C5 MfsInterface. It owns the mnum<->inum mapping
// (Invariant M1) and drives C1 (Alloc), C2 (Journal), C3 (Log) and C4
// (dep.Resolve) to apply logged operations to the InodeLayer/MnodeLayer
// collaborators.
type Facade struct {
	Disk    bdev.Disk
	sb      bdev.Superblock
	Clock   clock.Clock
	Alloc   *alloc.Allocator
	Journal *journal.Journal
	Log     *oplog.Log

	inodes inum.InodeLayer
	mnodes inum.MnodeLayer

	mapMu      sync.Mutex
	mnumToInum map[inum.Mnum]inum.Inum
	inumToMnum map[inum.Inum]inum.Mnum
	blockOf    map[inum.Inum]uint64 // on-disk block backing each inode's own metadata

	Stats struct {
		Synced  stats.Op
		Fsynced stats.Op
	}
}

// New constructs a Facade over disk/sb, reading the on-disk allocation
// bitmap to seed the block allocator's free set - BlockAllocator's
// initialize(sb) contract (spec.md §4.1). On a freshly zero-filled
// disk every bitmap bit reads as free, reproducing a fully-free
// allocator; on a disk carrying real state, call InitializeFreeBitVector
// again after Journal.Recover() has finished writing back whatever
// committed transactions (including their bitmap deltas) survived a
// crash, since those writes land after New has already read.
func New(disk bdev.Disk, sb bdev.Superblock, clk clock.Clock, inodes inum.InodeLayer, mnodes inum.MnodeLayer, numCPU int) *Facade {
	free := bdev.LoadFreeList(disk, sb)
	f := &Facade{
		Disk:       disk,
		sb:         sb,
		Clock:      clk,
		Alloc:      alloc.New("data", sb.Size, free),
		Journal:    journal.New(disk, sb),
		Log:        oplog.New(numCPU),
		inodes:     inodes,
		mnodes:     mnodes,
		mnumToInum: make(map[inum.Mnum]inum.Inum, sb.NInodes),
		inumToMnum: make(map[inum.Inum]inum.Mnum, sb.NInodes),
		blockOf:    make(map[inum.Inum]uint64),
	}
	return f
}

// InitializeFreeBitVector replaces the allocator's free set, matching
// mfs_interface::initialize_free_bit_vector's role of rebuilding the
// in-memory free-bit-vector from the on-disk bitmap at boot, after
// Journal.Recover has applied whatever committed transactions
// survived the crash. Callers normally pass
// bdev.LoadFreeList(f.Disk, f.sb) here, re-reading the bitmap New
// already read once before recovery had a chance to change it.
func (f *Facade) InitializeFreeBitVector(free []uint64) {
	f.Alloc = alloc.New("data", f.sb.Size, free)
}

// Bootstrap allocates the root directory's on-disk inode the first
// time the filesystem is used, mirroring load_root's "allocate if
// inum 1 has never been mapped" path. It is idempotent: calling it
// again once the root is mapped is a no-op, matching load_root's
// "load existing" path.
func (f *Facade) Bootstrap() (inum.Inum, error) {
	if in, ok := f.inodeLookup(RootMnum); ok {
		return in, nil
	}

	in, err := f.inodes.Alloc(inum.Dir)
	if err != nil {
		return inum.NullInum, err
	}
	f.mnodes.Alloc(inum.Dir) // reserve mnode slot 1 conceptually; RootMnum is fixed
	f.createMapping(RootMnum, in)
	return in, nil
}

// PreloadOplog pre-sizes every CPU's oplog shard to n entries, matching
// mfs_interface::preload_oplog's role of avoiding append-time
// reallocation once a workload reaches steady state.
func (f *Facade) PreloadOplog(n int) {
	f.Log.PreloadOplog(n)
}

func (f *Facade) inodeLookup(m inum.Mnum) (inum.Inum, bool) {
	f.mapMu.Lock()
	defer f.mapMu.Unlock()
	in, ok := f.mnumToInum[m]
	return in, ok
}

func (f *Facade) createMapping(m inum.Mnum, i inum.Inum) {
	f.mapMu.Lock()
	defer f.mapMu.Unlock()
	f.mnumToInum[m] = i
	f.inumToMnum[i] = m
}

func (f *Facade) removeMnumMapping(m inum.Mnum) {
	f.mapMu.Lock()
	defer f.mapMu.Unlock()
	if in, ok := f.mnumToInum[m]; ok {
		delete(f.inumToMnum, in)
	}
	delete(f.mnumToInum, m)
}

// dropInumCache removes only the reverse inum->mnum cache entry for i,
// matching unlink_old_inode's inum_to_mnode->remove(target->inum): the
// forward mnum->inum mapping for whichever mnode this inode happens to
// back is left intact, since delete_old_inode removes that
// separately, keyed by mnum, once it is actually called.
func (f *Facade) dropInumCache(i inum.Inum) {
	f.mapMu.Lock()
	defer f.mapMu.Unlock()
	delete(f.inumToMnum, i)
}

// encodeInodeBlock is a placeholder on-disk representation for an
// inode's own metadata block; its content is never interpreted by
// this package, only journaled and written back, since the real
// on-disk inode layout is InodeLayer's concern and InodeLayer here is
// a non-persistent fake (spec.md's Non-goals treat the on-disk
// inode/directory format as an external, out-of-scope subsystem).
func encodeInodeBlock(t inum.NodeType) bdev.Block {
	b := make(bdev.Block, bdev.BlockSize)
	b[0] = byte(t)
	return b
}
