package mfs

import (
	"time"

	"github.com/mit-pdos/scalefs/dep"
	"github.com/mit-pdos/scalefs/inum"
	"github.com/mit-pdos/scalefs/journal"
	"github.com/mit-pdos/scalefs/oplog"
)

// MetadataOpStart and MetadataOpEnd bracket, in memory, the syscall a
// caller is about to log on cpu - the Facade-level forwarders for
// metadata_op_start/metadata_op_end, which in scalefs.cc are called by
// the syscall layer immediately before and after it mutates mnode
// state and logs the resulting operation. That syscall layer is out of
// this façade's scope, so these exist purely as the call sites it
// would use.
func (f *Facade) MetadataOpStart(cpu int, tsc uint64) {
	f.Log.UpdateStartTSC(cpu, tsc)
}

func (f *Facade) MetadataOpEnd(cpu int, tsc uint64) {
	f.Log.UpdateEndTSC(cpu, tsc)
}

// LogCreate, LogLink, LogUnlink, LogDelete and LogRename stamp an
// operation with the façade's clock and append it to the calling
// CPU's oplog shard - the Go equivalent of a syscall handler calling
// metadata_op_start/add_to_metadata_log/metadata_op_end around a
// freshly constructed mfs_operation.
func (f *Facade) LogCreate(cpu int, target, parent inum.Mnum, typ inum.NodeType, name string) {
	f.Log.AddOperation(cpu, &oplog.Create{Timestamp: f.Clock.Now(), Target: target, Parent: parent, NodeType: typ, Name: name})
}

func (f *Facade) LogLink(cpu int, parent, child inum.Mnum, childType inum.NodeType, name string) {
	f.Log.AddOperation(cpu, &oplog.Link{Timestamp: f.Clock.Now(), Parent: parent, Child: child, ChildType: childType, Name: name})
}

func (f *Facade) LogUnlink(cpu int, parent inum.Mnum, name string) {
	f.Log.AddOperation(cpu, &oplog.Unlink{Timestamp: f.Clock.Now(), Parent: parent, Name: name})
}

func (f *Facade) LogDelete(cpu int, target inum.Mnum) {
	f.Log.AddOperation(cpu, &oplog.Delete{Timestamp: f.Clock.Now(), Target: target})
}

func (f *Facade) LogRename(cpu int, oldParent inum.Mnum, oldName string, newParent inum.Mnum, newName string, child inum.Mnum, childType inum.NodeType) {
	f.Log.AddOperation(cpu, &oplog.Rename{
		Timestamp: f.Clock.Now(), OldParent: oldParent, OldName: oldName,
		NewParent: newParent, NewName: newName, Child: child, ChildType: childType,
	})
}

// commitOne applies op into a fresh transaction and commits that
// transaction to the physical journal, one operation per journal
// commit - the same outcome as scalefs.cc's
// add_to_journal_locked-then-flush_journal_locked pipeline, since
// that pipeline also replays its queued transactions one at a time,
// each with its own Start/Data/Commit/clear cycle.
func (f *Facade) commitOne(op oplog.Operation) error {
	tr := journal.NewTransaction(op.TS())
	if err := f.apply(op, tr); err != nil {
		return err
	}
	guard := f.Journal.Lock()
	f.Journal.Commit(guard, tr, func(bno uint64) { f.Alloc.Free(bno) })
	guard.Release()
	return nil
}

// Sync applies and journals every operation currently in the logical
// log, draining it, matching
// process_metadata_log/process_metadata_log_and_flush.
func (f *Facade) Sync() error {
	defer f.Stats.Synced.Record(time.Now())

	ops := f.Log.Drain()
	for _, op := range ops {
		if err := f.commitOne(op); err != nil {
			return err
		}
	}
	return nil
}

// Fsync resolves and journals only the operations target's fsync
// depends on (package dep), leaving the rest of the logical log
// intact for a later Sync - spec.md §4.4's fsync minimality law.
// Ported from process_metadata_log(max_tsc, inum, isdir)/
// process_metadata_log_and_flush(max_tsc, inum, isdir).
//
// The resolve-then-remove step runs as a single oplog.Log.DrainMatching
// call rather than a separate Snapshot followed by a later drain, so a
// concurrent Sync cannot drain the same operations out from under this
// call between the two steps - see DrainMatching's doc comment and
// spec.md §9's operation_vec race Open Question.
func (f *Facade) Fsync(target inum.Mnum, isDir bool) error {
	defer f.Stats.Fsynced.Record(time.Now())

	dependent := f.Log.DrainMatching(func(snapshot []oplog.Operation) (selected, rest []oplog.Operation) {
		return dep.Resolve(snapshot, target, isDir)
	})
	for _, op := range dependent {
		if err := f.commitOne(op); err != nil {
			return err
		}
	}
	return nil
}
