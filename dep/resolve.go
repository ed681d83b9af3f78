// Package dep implements the dependency resolver (C4 in SPEC_FULL.md):
// given the logged operations and an fsync target, it determines the
// minimal subset of the log that must be committed for the fsync to be
// correct (spec.md §4.4's "fsync minimality" law). Ported from
// find_dependent_ops in
// _examples/original_source/kernel/scalefs.cc, which scans the merged
// oplog newest-to-oldest, growing a "needed" set of mnums as it finds
// operations that touch something already needed.
package dep

import (
	"github.com/mit-pdos/scalefs/inum"
	"github.com/mit-pdos/scalefs/oplog"
)

// Resolve splits ops (already merge-sorted oldest-to-newest, as
// returned by oplog.Log.Snapshot) into the subset target's fsync
// depends on and everything else, preserving relative order within
// each half. target/isDir identify the fsync'd mnum exactly as in
// mfs_interface::fsync's call into find_dependent_ops.
//
// The scan walks newest to oldest (find_dependent_ops walks the oplog
// vector in reverse) so that a dependency discovered late in the scan
// can still pull in the earlier operation that created the mnum it
// depends on - spec.md §8 scenario 4's requirement that fsync(f) also
// commits the Create of every ancestor directory of f, even though
// those Creates appear before f's own Create in the log.
func Resolve(ops []oplog.Operation, target inum.Mnum, isDir bool) (dependent, remaining []oplog.Operation) {
	needed := map[inum.Mnum]bool{target: true}
	include := make([]bool, len(ops))

	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		matched := op.CheckDependency(needed)
		if isDir && !matched {
			matched = op.CheckParentDependency(needed, target)
		}
		if !matched {
			continue
		}
		include[i] = true
		for _, m := range op.Mnums() {
			needed[m] = true
		}
	}

	for i, op := range ops {
		if include[i] {
			dependent = append(dependent, op)
		} else {
			remaining = append(remaining, op)
		}
	}
	return dependent, remaining
}
