package mfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/scalefs/inum"
)

// TestEvictBufferCacheDropsEveryMappedInode covers evict_bufcache:
// every mapped inode (files and directories alike) loses its cached
// buffer-cache state.
func TestEvictBufferCacheDropsEveryMappedInode(t *testing.T) {
	f := newTestFacade(t)
	const (
		dirMnum  inum.Mnum = 10
		fileMnum inum.Mnum = 11
	)
	f.LogCreate(0, dirMnum, RootMnum, inum.Dir, "d")
	f.LogCreate(0, fileMnum, dirMnum, inum.File, "f")
	require.NoError(t, f.Sync())

	inodes := f.inodes.(*inum.FakeInodeLayer)
	rootInum, _ := f.inodeLookup(RootMnum)
	dirInum, _ := f.inodeLookup(dirMnum)
	fileInum, _ := f.inodeLookup(fileMnum)

	require.True(t, inodes.IsBufferCached(rootInum))
	require.True(t, inodes.IsBufferCached(dirInum))
	require.True(t, inodes.IsBufferCached(fileInum))

	touched := f.EvictBufferCache()
	assert.Equal(t, 3, touched)

	assert.False(t, inodes.IsBufferCached(rootInum))
	assert.False(t, inodes.IsBufferCached(dirInum))
	assert.False(t, inodes.IsBufferCached(fileInum))
}

// TestEvictPageCacheSkipsDirectories covers evict_pagecache's
// mnode::types::file filter: a mapped directory's entry is left alone
// while a mapped file's cached pages are dropped.
func TestEvictPageCacheSkipsDirectories(t *testing.T) {
	f := newTestFacade(t)
	const (
		dirMnum  inum.Mnum = 10
		fileMnum inum.Mnum = 11
	)
	f.LogCreate(0, dirMnum, RootMnum, inum.Dir, "d")
	f.LogCreate(0, fileMnum, dirMnum, inum.File, "f")
	require.NoError(t, f.Sync())

	mnodes := f.mnodes.(*inum.FakeMnodeLayer)
	require.True(t, mnodes.IsPageCached(fileMnum))
	require.True(t, mnodes.IsPageCached(dirMnum))

	touched := f.EvictPageCache()
	assert.Equal(t, 1, touched)

	assert.False(t, mnodes.IsPageCached(fileMnum))
	assert.True(t, mnodes.IsPageCached(dirMnum)) // directories are skipped, matching evict_pagecache's file-type filter
}
