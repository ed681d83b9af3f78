// Package oplog implements the per-CPU logical operation log (C3 in
// SPEC_FULL.md): every core appends timestamped MfsOperations to its
// own buffer lock-free with respect to other cores, and a global,
// merge-sorted view is assembled on demand by Snapshot/Drain. Grounded
// on scalefs.cc's oplog (metadata_log_tsc, wait_synchronize,
// add_to_oplog, preload_oplog) and on the per-CPU sharding pattern in
// _examples/mit-pdos-go-nfsd/lock.go (lockMap, one mutex per shard
// indexed by a hashed key) generalized here to one buffer per CPU.
package oplog

import (
	"sort"
	"sync"

	"github.com/mit-pdos/scalefs/inum"
)

// entry pairs an Operation with the cpu that recorded it, used only to
// break exact timestamp ties deterministically when merging.
type entry struct {
	op  Operation
	cpu int
}

// shard is one CPU's private buffer. Appends to a shard never take
// another shard's lock, matching spec.md §5's invariant that logging
// from distinct CPUs never contends.
type shard struct {
	mu      sync.Mutex
	entries []entry

	// startTSC/endTSC record, per CPU, the timestamp bracketing the
	// syscall currently being logged in memory - update_start_tsc/
	// update_end_tsc in scalefs.cc. Nothing in this package reads them
	// back; they exist so mfs.Facade.MetadataOpStart/End has somewhere
	// faithful to forward to, matching metadata_op_start/end's presence
	// in mfs_interface's own public surface.
	startTSC uint64
	endTSC   uint64
}

// Log is the per-CPU logical operation log described by spec.md §4.3.
// numCPU is fixed at construction (SPEC_FULL.md §4.3), replacing
// scalefs.cc's compile-time NCPU with an explicit parameter. Log has
// no notion of time of its own - every Operation arrives already
// timestamped by the caller, exactly as metadata_log never calls
// rdtsc itself in scalefs.cc; only mfs_interface and the syscall layer
// above it do.
type Log struct {
	shards []shard

	// barrierMu serializes WaitSynchronize callers against each other;
	// it does not block concurrent AddOperation calls, matching
	// wait_synchronize's role as a barrier for the drainer, not for
	// writers.
	barrierMu sync.Mutex
}

func New(numCPU int) *Log {
	if numCPU < 1 {
		numCPU = 1
	}
	return &Log{shards: make([]shard, numCPU)}
}

func (l *Log) shardFor(cpu int) *shard {
	return &l.shards[cpu%len(l.shards)]
}

// AddOperation appends op to the calling CPU's shard. The timestamp on
// op must already have been assigned (by the caller's clock.Now()
// before constructing the operation), mirroring
// mfs_interface::add_to_metadata_log_locked taking a pre-stamped
// mfs_operation.
func (l *Log) AddOperation(cpu int, op Operation) {
	s := l.shardFor(cpu)
	s.mu.Lock()
	s.entries = append(s.entries, entry{op: op, cpu: cpu})
	s.mu.Unlock()
}

// UpdateStartTSC records that the calling CPU has begun executing, in
// memory, the syscall that will produce the next AddOperation call.
// Ported from metadata_log::update_start_tsc.
func (l *Log) UpdateStartTSC(cpu int, tsc uint64) {
	s := l.shardFor(cpu)
	s.mu.Lock()
	s.startTSC = tsc
	s.mu.Unlock()
}

// UpdateEndTSC records that the calling CPU has finished executing that
// syscall in memory. Ported from metadata_log::update_end_tsc.
func (l *Log) UpdateEndTSC(cpu int, tsc uint64) {
	s := l.shardFor(cpu)
	s.mu.Lock()
	s.endTSC = tsc
	s.mu.Unlock()
}

// Snapshot returns every operation currently logged across all CPUs,
// merge-sorted by timestamp and then by cpu id to break exact ties
// deterministically (scalefs.cc sorts its merged oplog the same way:
// timestamp first, core id as tiebreak). The returned slice is a
// caller-owned copy; it does not alias the log's internal storage.
func (l *Log) Snapshot() []Operation {
	var all []entry
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		all = append(all, s.entries...)
		s.mu.Unlock()
	}
	return mergeSorted(all)
}

// WaitSynchronize is the barrier from spec.md §4.3: it returns a
// function that, once called, releases the barrier this call acquired.
// While the barrier is held, no other call protected by it (Drain,
// DrainDependent, DrainMatching) can run concurrently, serializing
// sync() against fsync() per spec.md §9's operation_vec race Open
// Question - but it does not block concurrent AddOperation, matching
// wait_synchronize's role as a barrier for drainers, not for writers.
//
// wait_synchronize(target_tsc) in scalefs.cc instead polls every CPU's
// end_tsc until it has passed target_tsc, since operation_vec there is
// lock-free; the mutex here gives drainers the same mutual exclusion
// more directly, so WaitSynchronize takes no target timestamp.
func (l *Log) WaitSynchronize() func() {
	l.barrierMu.Lock()
	return l.barrierMu.Unlock
}

// mergeSorted returns a merge-sorted copy of all: timestamp order,
// with cpu id as the tiebreak on exact timestamp collisions.
func mergeSorted(all []entry) []Operation {
	sort.Slice(all, func(i, j int) bool {
		if all[i].op.TS() != all[j].op.TS() {
			return all[i].op.TS() < all[j].op.TS()
		}
		return all[i].cpu < all[j].cpu
	})
	ops := make([]Operation, len(all))
	for i, e := range all {
		ops[i] = e.op
	}
	return ops
}

// Drain removes and returns every logged operation, merge-sorted the
// same way as Snapshot, and resets the log to empty. Used by
// mfs.Facade.Sync to process the whole log.
//
// Each shard's read and clear happen inside that shard's own single
// lock acquisition, so an AddOperation racing with Drain either lands
// entirely before (and is drained) or entirely after (and survives for
// the next Drain) - never silently lost between a separate read pass
// and a separate clear pass.
func (l *Log) Drain() []Operation {
	unlock := l.WaitSynchronize()
	defer unlock()

	var all []entry
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		all = append(all, s.entries...)
		s.entries = nil
		s.mu.Unlock()
	}
	return mergeSorted(all)
}

// removeMatching rebuilds every shard keeping only entries not selected
// by match, locking each shard for its own read-filter-write - the same
// single-critical-section-per-shard discipline as Drain, so concurrent
// AddOperation calls are neither lost nor raced on.
func (l *Log) removeMatching(match map[Operation]bool) {
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		kept := s.entries[:0]
		for _, e := range s.entries {
			if !match[e.op] {
				kept = append(kept, e)
			}
		}
		s.entries = kept
		s.mu.Unlock()
	}
}

// DrainDependent removes dependent from the log, leaving the rest
// intact. Exposed for tests and for callers holding dependent from a
// source other than this log's own Snapshot (see DrainMatching for the
// common case: resolving against this log's current contents and
// removing the result without reopening the window between the two).
func (l *Log) DrainDependent(dependent []Operation, target inum.Mnum, isDir bool) {
	unlock := l.WaitSynchronize()
	defer unlock()

	remove := make(map[Operation]bool, len(dependent))
	for _, op := range dependent {
		remove[op] = true
	}
	l.removeMatching(remove)
}

// DrainMatching snapshots the log and removes exactly the operations
// resolve selects from that snapshot, all under one WaitSynchronize
// barrier acquisition. This is what Fsync needs: computing
// dep.Resolve's answer against a Snapshot and then separately draining
// it would let a concurrent Sync drain (and later mfs.Facade re-apply)
// the same operations in between - the operation_vec race spec.md §9's
// Open Question calls out. resolve must not call back into Log.
func (l *Log) DrainMatching(resolve func(snapshot []Operation) (selected, rest []Operation)) []Operation {
	unlock := l.WaitSynchronize()
	defer unlock()

	snapshot := l.Snapshot()
	selected, _ := resolve(snapshot)

	remove := make(map[Operation]bool, len(selected))
	for _, op := range selected {
		remove[op] = true
	}
	l.removeMatching(remove)
	return selected
}

// PreloadOplog pre-sizes every shard's backing array to n entries,
// matching preload_oplog's purpose in scalefs.cc: avoid append-time
// reallocation on the hot path once steady state is reached.
func (l *Log) PreloadOplog(n int) {
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		if cap(s.entries) < n {
			grown := make([]entry, len(s.entries), n)
			copy(grown, s.entries)
			s.entries = grown
		}
		s.mu.Unlock()
	}
}
