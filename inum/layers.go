package inum

import "github.com/mit-pdos/scalefs/journal"

// InodeLayer is the on-disk inode/directory collaborator spec.md §6
// calls out as external to C1-C5: allocating, locking, updating and
// truncating on-disk inodes, and maintaining directory entries keyed
// by Inum. Grounded on scalefs.cc's inode_lock/iupdate/itrunc/dirlink/
// dirlookup/dir_flush calls from mfs_interface, kept here as an
// interface so package mfs never depends on a concrete disk-inode
// implementation.
type InodeLayer interface {
	Alloc(kind NodeType) (Inum, error)
	Get(i Inum) (bool, error)
	Lock(i Inum, writable bool)
	Unlock(i Inum)
	Update(i Inum, tr *journal.Transaction) error
	Truncate(i Inum, size uint32, tr *journal.Transaction) error
	SetType(i Inum, t NodeType)
	Type(i Inum) NodeType
	NLink(i Inum) int
	DirLookup(parent Inum, name string) (child Inum, isDir bool, found bool)
	DirLink(parent Inum, name string, child Inum, isDir bool) error
	DirUnlink(parent Inum, name string, child Inum, isDir bool) error
	DirFlush(i Inum, tr *journal.Transaction)

	// DropBufferCache drops whatever cached buffer-cache state this
	// layer holds for i, matching evict_bufcache's per-inode
	// drop_bufcache call.
	DropBufferCache(i Inum)
}

// MnodeLayer is the in-memory node collaborator: it owns the universe
// of mnums, independent of whether or how each is mapped to an inum.
// Grounded on scalefs.cc's mnode_alloc.
type MnodeLayer interface {
	Alloc(kind NodeType) Mnum
	Type(m Mnum) NodeType
	Free(m Mnum)

	// DropPageCache drops whatever cached page-cache state this layer
	// holds for m, matching evict_pagecache's per-file
	// drop_pagecache call.
	DropPageCache(m Mnum)
}
