package mfs

import (
	"fmt"

	"github.com/mit-pdos/scalefs/inum"
	"github.com/mit-pdos/scalefs/journal"
	"github.com/mit-pdos/scalefs/oplog"
)

// apply dispatches a logged Operation to its per-variant handler,
// mirroring mfs_create/mfs_link/mfs_unlink/mfs_delete/mfs_rename in
// scalefs.cc. Each handler stages its effect into tr; nothing here
// touches the journal directly - that happens once, after apply
// returns, in sync.go.
func (f *Facade) apply(op oplog.Operation, tr *journal.Transaction) error {
	switch o := op.(type) {
	case *oplog.Create:
		return f.applyCreate(o, tr)
	case *oplog.Link:
		return f.applyLink(o, tr)
	case *oplog.Unlink:
		return f.applyUnlink(o, tr)
	case *oplog.Delete:
		return f.applyDelete(o, tr)
	case *oplog.Rename:
		return f.applyRename(o, tr)
	default:
		return fmt.Errorf("mfs: unknown operation type %T", op)
	}
}

func (f *Facade) applyCreate(op *oplog.Create, tr *journal.Transaction) error {
	var err error
	if op.NodeType == inum.File {
		_, err = f.CreateFileIfNew(op.Target, op.Parent, op.NodeType, op.Name, tr, true)
	} else {
		_, err = f.CreateDirIfNew(op.Target, op.Parent, op.Name, tr, true)
	}
	return err
}

func (f *Facade) applyLink(op *oplog.Link, tr *journal.Transaction) error {
	if err := f.CreateDirectoryEntry(op.Parent, op.Name, op.Child, op.ChildType, tr); err != nil {
		return err
	}
	f.updateDirInode(op.Parent, tr)
	return nil
}

func (f *Facade) applyUnlink(op *oplog.Unlink, tr *journal.Transaction) error {
	if err := f.UnlinkOldInode(op.Parent, op.Name, tr); err != nil {
		return err
	}
	f.updateDirInode(op.Parent, tr)
	return nil
}

func (f *Facade) applyDelete(op *oplog.Delete, tr *journal.Transaction) error {
	return f.DeleteOldInode(op.Target, tr)
}

func (f *Facade) applyRename(op *oplog.Rename, tr *journal.Transaction) error {
	if err := f.CreateDirectoryEntry(op.NewParent, op.NewName, op.Child, op.ChildType, tr); err != nil {
		return err
	}
	f.updateDirInode(op.NewParent, tr)

	if err := f.UnlinkOldInode(op.OldParent, op.OldName, tr); err != nil {
		return err
	}
	f.updateDirInode(op.OldParent, tr)
	return nil
}
