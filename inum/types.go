// Package inum defines the identifiers shared across the module (mnum,
// inum — spec.md §3) and the InodeLayer/MnodeLayer collaborator
// interfaces spec.md §6 calls out as external. It also provides a
// minimal concrete implementation of both, sufficient to drive and
// test package mfs without depending on a real filesystem — the spec
// treats these as out-of-scope peripheral subsystems, so this package
// is a faithful stand-in, not production inode/mnode code.
package inum

// Mnum is the in-memory node identifier (spec.md §3): process-wide
// unique, stable for the node's lifetime.
type Mnum uint64

// Inum is the on-disk inode identifier: 32-bit, stable for the
// lifetime of the on-disk inode. NullInum is the sentinel meaning "no
// inode mapped".
type Inum uint32

const NullInum Inum = 0

// NodeType distinguishes files from directories, mirroring
// mnode::types in scalefs.cc.
type NodeType int

const (
	File NodeType = iota
	Dir
)

// Free is the on-disk type recorded on an inode once delete_old_inode
// has released it (ip->type = 0 in free_inode) - distinct from File so
// a freed inode can't be mistaken for a live one before it is reused.
const Free NodeType = -1

func (t NodeType) String() string {
	switch t {
	case Dir:
		return "dir"
	case Free:
		return "free"
	default:
		return "file"
	}
}
