package mfs

import (
	"fmt"

	"github.com/mit-pdos/scalefs/inum"
	"github.com/mit-pdos/scalefs/journal"
)

// CreateFileIfNew creates an on-disk inode for mfile if mfile has no
// mapping yet, returning the inum it was (or already is) assigned.
// scalefs.cc's create_file_if_new returns 0 when mfile is already
// mapped, but every caller there already holds the real inum via its
// own inode_lookup before calling, so nothing depends on getting 0
// back; returning the existing inum here instead saves callers a
// second lookup. Ported from create_file_if_new.
func (f *Facade) CreateFileIfNew(mfile, parent inum.Mnum, typ inum.NodeType, name string, tr *journal.Transaction, linkInParent bool) (inum.Inum, error) {
	if in, ok := f.inodeLookup(mfile); ok {
		return in, nil
	}

	parentInum, ok := f.inodeLookup(parent)
	if !ok {
		panic(fmt.Sprintf("mfs: create_file_if_new: parent %d does not exist", parent))
	}

	in, err := f.inodes.Alloc(typ)
	if err != nil {
		return inum.NullInum, err
	}
	bno, err := f.Alloc.Alloc()
	if err != nil {
		return inum.NullInum, err
	}
	tr.MarkAllocated(bno)
	tr.AddBlock(bno, encodeInodeBlock(typ))
	f.blockOf[in] = bno

	f.createMapping(mfile, in)
	f.inodes.Lock(in, true)
	err = f.inodes.Update(in, tr)
	f.inodes.Unlock(in)
	if err != nil {
		return inum.NullInum, err
	}

	if linkInParent {
		f.inodes.Lock(parentInum, true)
		err := f.inodes.DirLink(parentInum, name, in, false)
		f.inodes.DirFlush(parentInum, tr)
		f.inodes.Unlock(parentInum)
		if err != nil {
			return inum.NullInum, err
		}
	}

	return in, nil
}

// CreateDirIfNew is create_file_if_new's directory counterpart,
// additionally linking ".." back to the parent. Ported from
// create_dir_if_new.
func (f *Facade) CreateDirIfNew(mdir, parent inum.Mnum, name string, tr *journal.Transaction, linkInParent bool) (inum.Inum, error) {
	if in, ok := f.inodeLookup(mdir); ok {
		return in, nil
	}

	parentInum, ok := f.inodeLookup(parent)
	if !ok {
		panic(fmt.Sprintf("mfs: create_dir_if_new: parent %d does not exist", parent))
	}

	in, err := f.inodes.Alloc(inum.Dir)
	if err != nil {
		return inum.NullInum, err
	}
	bno, err := f.Alloc.Alloc()
	if err != nil {
		return inum.NullInum, err
	}
	tr.MarkAllocated(bno)
	tr.AddBlock(bno, encodeInodeBlock(inum.Dir))
	f.blockOf[in] = bno

	f.createMapping(mdir, in)

	f.inodes.Lock(in, true)
	err = f.inodes.DirLink(in, "..", parentInum, false)
	f.inodes.DirFlush(in, tr)
	f.inodes.Unlock(in)
	if err != nil {
		return inum.NullInum, err
	}

	if linkInParent {
		f.inodes.Lock(parentInum, true)
		err := f.inodes.DirLink(parentInum, name, in, true)
		f.inodes.DirFlush(parentInum, tr)
		f.inodes.Unlock(parentInum)
		if err != nil {
			return inum.NullInum, err
		}
	}

	return in, nil
}

// CreateDirectoryEntry creates a directory entry for a name that
// exists in the in-memory namespace but not yet on disk, allocating
// the child's inode if necessary and unlinking/truncating whatever
// used to be at that name if it now refers to a different mnode.
// Ported from create_directory_entry.
func (f *Facade) CreateDirectoryEntry(mdir inum.Mnum, name string, dirent inum.Mnum, typ inum.NodeType, tr *journal.Transaction) error {
	parentInum, ok := f.inodeLookup(mdir)
	if !ok {
		panic(fmt.Sprintf("mfs: create_directory_entry: dir %d does not exist", mdir))
	}

	f.inodes.Lock(parentInum, true)
	existing, existingIsDir, found := f.inodes.DirLookup(parentInum, name)
	direntInum, direntMapped := f.inodeLookup(dirent)
	if found {
		if existing == direntInum && direntMapped {
			f.inodes.Unlock(parentInum)
			return nil
		}
		if err := f.inodes.DirUnlink(parentInum, name, existing, existingIsDir); err != nil {
			f.inodes.Unlock(parentInum)
			return err
		}
		if f.inodes.NLink(existing) == 0 {
			f.inodes.Lock(existing, true)
			err := f.inodes.Truncate(existing, 0, tr)
			f.inodes.Unlock(existing)
			if err != nil {
				f.inodes.Unlock(parentInum)
				return err
			}
			f.dropInumCache(existing)
		}
	}

	if direntMapped {
		err := f.inodes.DirLink(parentInum, name, direntInum, typ == inum.Dir)
		f.inodes.DirFlush(parentInum, tr)
		f.inodes.Unlock(parentInum)
		return err
	}

	f.inodes.Unlock(parentInum)

	var in inum.Inum
	var err error
	if typ == inum.File {
		in, err = f.CreateFileIfNew(dirent, mdir, typ, name, tr, false)
	} else {
		in, err = f.CreateDirIfNew(dirent, mdir, name, tr, false)
	}
	if err != nil {
		return err
	}

	f.inodes.Lock(parentInum, true)
	err = f.inodes.DirLink(parentInum, name, in, typ == inum.Dir)
	f.inodes.DirFlush(parentInum, tr)
	f.inodes.Unlock(parentInum)
	return err
}

// UnlinkOldInode removes name's directory entry from mdir on disk, if
// present, dropping the mapping once the target's link count reaches
// zero. It never deletes the inode itself - that is DeleteOldInode's
// job, run only once the mnode's refcount (not modeled here) also
// reaches zero. Ported from unlink_old_inode.
func (f *Facade) UnlinkOldInode(mdir inum.Mnum, name string, tr *journal.Transaction) error {
	parentInum, ok := f.inodeLookup(mdir)
	if !ok {
		panic(fmt.Sprintf("mfs: unlink_old_inode: dir %d does not exist", mdir))
	}

	f.inodes.Lock(parentInum, true)
	defer f.inodes.Unlock(parentInum)

	target, isDir, found := f.inodes.DirLookup(parentInum, name)
	if !found {
		return nil
	}
	if err := f.inodes.DirUnlink(parentInum, name, target, isDir); err != nil {
		return err
	}
	if f.inodes.NLink(target) == 0 {
		f.dropInumCache(target)
	}
	return nil
}

// DeleteOldInode frees the on-disk inode and its backing block.
// Ported from delete_old_inode/free_inode: truncate to zero, clear the
// inode's type (free_inode's ip->type = 0), then drop the mapping. The
// freed block only becomes available for reuse once the enclosing
// journal commit durably records the free (journal.Commit's onFreed
// hook, wired in sync.go). The final refcount decrement free_inode
// performs pairs with inode::init()'s extra increment, neither of
// which this non-refcounted fake models.
func (f *Facade) DeleteOldInode(mfile inum.Mnum, tr *journal.Transaction) error {
	in, ok := f.inodeLookup(mfile)
	if !ok {
		panic(fmt.Sprintf("mfs: delete_old_inode: mapping for mnode %d does not exist", mfile))
	}

	f.inodes.Lock(in, true)
	err := f.inodes.Truncate(in, 0, tr)
	if err == nil {
		f.inodes.SetType(in, inum.Free)
	}
	f.inodes.Unlock(in)
	if err != nil {
		return err
	}

	if bno, ok := f.blockOf[in]; ok {
		tr.MarkFreed(bno)
		delete(f.blockOf, in)
	}
	f.removeMnumMapping(mfile)
	return nil
}

func (f *Facade) updateDirInode(mdir inum.Mnum, tr *journal.Transaction) {
	if in, ok := f.inodeLookup(mdir); ok {
		f.inodes.DirFlush(in, tr)
	}
}
