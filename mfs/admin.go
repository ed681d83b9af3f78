package mfs

import (
	"io"

	"github.com/mit-pdos/scalefs/inum"
	"github.com/mit-pdos/scalefs/stats"
	"github.com/rodaine/table"
)

// SyncDirtyFiles is the façade's counterpart of sync_dirty_files. This
// façade does not model a separate page cache (InodeLayer is
// non-persistent), so it flushes nothing and performs no I/O: it
// returns the number of currently mapped inums, files and directories
// alike - the hook exists so callers that do have a real
// page-cache-backed InodeLayer have a defined place to wire it.
func (f *Facade) SyncDirtyFiles() int {
	f.mapMu.Lock()
	defer f.mapMu.Unlock()
	return len(f.inumToMnum)
}

// EvictBufferCache walks inum_to_mnode and drops cached buffer-cache
// state for every mapped inode, matching evict_bufcache. Returns the
// number of inodes touched, for tests and observability.
func (f *Facade) EvictBufferCache() int {
	f.mapMu.Lock()
	inums := make([]inum.Inum, 0, len(f.inumToMnum))
	for in := range f.inumToMnum {
		inums = append(inums, in)
	}
	f.mapMu.Unlock()

	for _, in := range inums {
		f.inodes.DropBufferCache(in)
	}
	return len(inums)
}

// EvictPageCache walks inum_to_mnode and drops cached page-cache state
// for every mapped file mnode, matching evict_pagecache - directories
// are skipped, mirroring evict_pagecache's m->type() ==
// mnode::types::file filter. The filter reads the backing inode's own
// type rather than MnodeLayer.Type, since mnums here are minted
// externally (by whatever syscall layer would sit above this façade)
// and never round-trip through MnodeLayer.Alloc to register a type
// there. Returns the number of files touched.
func (f *Facade) EvictPageCache() int {
	f.mapMu.Lock()
	pairs := make(map[inum.Inum]inum.Mnum, len(f.inumToMnum))
	for in, m := range f.inumToMnum {
		pairs[in] = m
	}
	f.mapMu.Unlock()

	touched := 0
	for in, m := range pairs {
		if f.inodes.Type(in) != inum.File {
			continue
		}
		f.mnodes.DropPageCache(m)
		touched++
	}
	return touched
}

// PrintFreeBlocks writes a one-row table of the allocator's current
// free/total block counts to w, the Go equivalent of
// mfs_interface::print_free_blocks, built with the same
// github.com/rodaine/table package the rest of the module uses for
// tabular stats output.
func (f *Facade) PrintFreeBlocks(w io.Writer) {
	st := f.Alloc.Stats()
	tbl := table.New("allocator", "free", "total")
	tbl.AddRow(f.Alloc.Name, st.Free, st.Total)
	tbl.WithWriter(w)
	tbl.Print()
}

// StatsString renders Sync/Fsync call counts and latencies as a table,
// via the same stats.WriteTable the util/stats package in the teacher
// uses for its own procedure counters.
func (f *Facade) StatsString() string {
	return stats.FormatTable([]string{"sync", "fsync"}, []stats.Op{f.Stats.Synced, f.Stats.Fsynced})
}
