package mfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/scalefs/bdev"
	"github.com/mit-pdos/scalefs/clock"
	"github.com/mit-pdos/scalefs/inum"
	"github.com/mit-pdos/scalefs/journal"
	"github.com/mit-pdos/scalefs/oplog"
)

func newTestFacade(t *testing.T) *Facade {
	sb := bdev.NewSuperblock(512, 64)
	disk := bdev.NewMemDisk(sb.Size)
	f := New(disk, sb, clock.New(), inum.NewFakeInodeLayer(64), inum.NewFakeMnodeLayer(), 4)
	_, err := f.Bootstrap()
	require.NoError(t, err)
	return f
}

// TestCreateFileIfNewIdempotent is the "create-if-new idempotence"
// law from spec.md §8: calling CreateFileIfNew twice for the same
// mnum only allocates an inode once.
func TestCreateFileIfNewIdempotent(t *testing.T) {
	f := newTestFacade(t)
	tr := journal.NewTransaction(1)

	in1, err := f.CreateFileIfNew(10, RootMnum, inum.File, "a", tr, true)
	require.NoError(t, err)

	in2, err := f.CreateFileIfNew(10, RootMnum, inum.File, "a", tr, true)
	require.NoError(t, err)
	assert.Equal(t, in1, in2)
}

// TestSyncAppliesCreateAndLink covers scenario 1 from spec.md §8: log
// a create, Sync, and see both the new inode and its directory entry
// in the parent land.
func TestSyncAppliesCreateAndLink(t *testing.T) {
	f := newTestFacade(t)

	const fileMnum inum.Mnum = 10
	f.LogCreate(0, fileMnum, RootMnum, inum.File, "f")
	require.NoError(t, f.Sync())

	rootInum, ok := f.inodeLookup(RootMnum)
	require.True(t, ok)
	child, isDir, found := f.inodes.DirLookup(rootInum, "f")
	require.True(t, found)
	assert.False(t, isDir)

	fileInum, ok := f.inodeLookup(fileMnum)
	require.True(t, ok)
	assert.Equal(t, fileInum, child)
}

// TestRenameAtomicity is spec.md §8's rename-atomicity law: after
// Sync, the old name is gone and the new name resolves to the same
// child, never both or neither.
func TestRenameAtomicity(t *testing.T) {
	f := newTestFacade(t)
	const fileMnum inum.Mnum = 10

	f.LogCreate(0, fileMnum, RootMnum, inum.File, "old")
	require.NoError(t, f.Sync())

	f.LogRename(0, RootMnum, "old", RootMnum, "new", fileMnum, inum.File)
	require.NoError(t, f.Sync())

	rootInum, _ := f.inodeLookup(RootMnum)
	_, _, foundOld := f.inodes.DirLookup(rootInum, "old")
	assert.False(t, foundOld)
	_, _, foundNew := f.inodes.DirLookup(rootInum, "new")
	assert.True(t, foundNew)
}

// TestFsyncLeafAppliesOnlyDependentCreates is scenario 4 from
// spec.md §8: fsyncing a leaf file must pull in its ancestors'
// creates but leave an unrelated sibling's create logged for later.
func TestFsyncLeafAppliesOnlyDependentCreates(t *testing.T) {
	f := newTestFacade(t)
	const (
		d1 inum.Mnum = 10
		f1 inum.Mnum = 11
		g1 inum.Mnum = 12
	)

	f.LogCreate(0, d1, RootMnum, inum.Dir, "d1")
	f.LogCreate(0, f1, d1, inum.File, "f")
	f.LogCreate(0, g1, d1, inum.File, "g")

	require.NoError(t, f.Fsync(f1, false))

	// f and its ancestor d1 must already be on disk...
	rootInum, _ := f.inodeLookup(RootMnum)
	_, _, foundD1 := f.inodes.DirLookup(rootInum, "d1")
	assert.True(t, foundD1)
	_, ok := f.inodeLookup(f1)
	assert.True(t, ok)

	// ...but g must still be unapplied, sitting in the logical log.
	_, ok = f.inodeLookup(g1)
	assert.False(t, ok)

	remaining := f.Log.Snapshot()
	require.Len(t, remaining, 1)
	assert.Equal(t, g1, remaining[0].(*oplog.Create).Target)

	// A later full Sync picks up what fsync left behind.
	require.NoError(t, f.Sync())
	_, ok = f.inodeLookup(g1)
	assert.True(t, ok)
}

// TestMetadataOpBracketingDoesNotDisturbLoggedOps checks that
// MetadataOpStart/MetadataOpEnd/PreloadOplog - the bookkeeping calls a
// syscall handler would bracket around LogCreate et al. with - have no
// effect on what ends up logged.
func TestMetadataOpBracketingDoesNotDisturbLoggedOps(t *testing.T) {
	f := newTestFacade(t)
	f.PreloadOplog(16)

	f.MetadataOpStart(0, 100)
	f.LogCreate(0, 10, RootMnum, inum.File, "f")
	f.MetadataOpEnd(0, 101)

	assert.Len(t, f.Log.Snapshot(), 1)
}

// TestUnlinkThenDeleteFreesBlock covers the create/unlink/delete path
// together with the allocator: deleting an inode must return its
// backing block to the free pool only once the freeing transaction
// commits.
func TestUnlinkThenDeleteFreesBlock(t *testing.T) {
	f := newTestFacade(t)
	const fileMnum inum.Mnum = 10

	f.LogCreate(0, fileMnum, RootMnum, inum.File, "f")
	require.NoError(t, f.Sync())

	before := f.Alloc.Stats()

	f.LogUnlink(0, RootMnum, "f")
	f.LogDelete(0, fileMnum)
	require.NoError(t, f.Sync())

	after := f.Alloc.Stats()
	assert.Equal(t, before.Free+1, after.Free)

	_, ok := f.inodeLookup(fileMnum)
	assert.False(t, ok)
}
