package dep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/scalefs/inum"
	"github.com/mit-pdos/scalefs/oplog"
)

const (
	root inum.Mnum = 1
	d1   inum.Mnum = 2
	d2   inum.Mnum = 3
	f    inum.Mnum = 4
	g    inum.Mnum = 5
)

// TestFsyncLeafPullsInAncestors is spec.md §8 scenario 4: create
// /d1/d2/f and /d1/d2/g, then fsync(f). Only the three creates that f
// depends on (d1, d2, f itself) should be dependent; g's create must
// stay behind.
func TestFsyncLeafPullsInAncestors(t *testing.T) {
	ops := []oplog.Operation{
		&oplog.Create{Timestamp: 1, Target: d1, Parent: root, NodeType: inum.Dir, Name: "d1"},
		&oplog.Create{Timestamp: 2, Target: d2, Parent: d1, NodeType: inum.Dir, Name: "d2"},
		&oplog.Create{Timestamp: 3, Target: f, Parent: d2, NodeType: inum.File, Name: "f"},
		&oplog.Create{Timestamp: 4, Target: g, Parent: d2, NodeType: inum.File, Name: "g"},
	}

	dependent, remaining := Resolve(ops, f, false)

	require.Len(t, dependent, 3)
	assert.Equal(t, f, dependent[2].(*oplog.Create).Target)
	assert.Equal(t, d2, dependent[1].(*oplog.Create).Target)
	assert.Equal(t, d1, dependent[0].(*oplog.Create).Target)

	require.Len(t, remaining, 1)
	assert.Equal(t, g, remaining[0].(*oplog.Create).Target)
}

func TestFsyncUnrelatedMnumIsEmpty(t *testing.T) {
	ops := []oplog.Operation{
		&oplog.Create{Timestamp: 1, Target: d1, Parent: root, NodeType: inum.Dir, Name: "d1"},
	}
	dependent, remaining := Resolve(ops, f, false)
	assert.Empty(t, dependent)
	assert.Len(t, remaining, 1)
}

func TestUnlinkOnlyDependsThroughParent(t *testing.T) {
	ops := []oplog.Operation{
		&oplog.Create{Timestamp: 1, Target: d1, Parent: root, NodeType: inum.Dir, Name: "d1"},
		&oplog.Unlink{Timestamp: 2, Parent: d1, Name: "stale"},
	}
	dependent, _ := Resolve(ops, d1, true)
	require.Len(t, dependent, 2)
}
