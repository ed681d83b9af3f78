package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/scalefs/bdev"
)

func testSuperblock(total uint64) bdev.Superblock {
	return bdev.NewSuperblock(total, 64)
}

func TestCommitThenHomeLocation(t *testing.T) {
	sb := testSuperblock(256)
	disk := bdev.NewMemDisk(sb.Size)
	j := New(disk, sb)

	tr := NewTransaction(1)
	payload := make(bdev.Block, bdev.BlockSize)
	payload[0] = 0xAB
	tr.AddBlock(sb.DataStart, payload)

	g := j.Lock()
	j.Commit(g, tr, func(uint64) {})
	g.Release()

	assert.Equal(t, payload[0], disk.ReadBlock(sb.DataStart)[0])
	// I4: journal is zero-filled after a successful commit clears it.
	assert.True(t, isZero(disk.ReadBlock(sb.JournalStart)))
}

func TestDuplicateBlockLatestWins(t *testing.T) {
	tr := NewTransaction(1)
	a := make(bdev.Block, bdev.BlockSize)
	a[0] = 1
	b := make(bdev.Block, bdev.BlockSize)
	b[0] = 2
	tr.AddBlock(10, a)
	tr.AddBlock(10, b)

	blocks := tr.Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, byte(2), blocks[0].Data[0])
}

// TestCrashBetweenDataAndCommit is scenario 3 from spec.md §8: write
// Start + Data records for a transaction, but never write Commit; a
// fresh Journal over the same disk must discard it on recovery and the
// home location must be untouched.
func TestCrashBetweenDataAndCommit(t *testing.T) {
	sb := testSuperblock(256)
	disk := bdev.NewMemDisk(sb.Size)
	j := New(disk, sb)

	payload := make(bdev.Block, bdev.BlockSize)
	payload[0] = 0x42
	disk.WriteBlock(j.recordBlockNo(0), Header{Timestamp: 7, Type: RecordStart}.encode())
	disk.WriteBlock(j.recordBlockNo(0)+1, make(bdev.Block, bdev.BlockSize))
	disk.WriteBlock(j.recordBlockNo(1), Header{Timestamp: 7, BlockNo: uint32(sb.DataStart), Type: RecordData}.encode())
	disk.WriteBlock(j.recordBlockNo(1)+1, payload)
	// No commit record written: the rest of the journal region is
	// already zero (MemDisk zero-initializes), so recovery should stop
	// right there.

	recovered := j.Recover()
	assert.Empty(t, recovered)
	assert.Equal(t, byte(0), disk.ReadBlock(sb.DataStart)[0])
}

// TestIdempotentRecovery is the "Idempotent recovery" law from
// spec.md §8: replaying a committed transaction a second time over an
// already-applied disk must be a no-op.
func TestIdempotentRecovery(t *testing.T) {
	sb := testSuperblock(256)
	disk := bdev.NewMemDisk(sb.Size)
	j := New(disk, sb)

	payload := make(bdev.Block, bdev.BlockSize)
	payload[0] = 9
	disk.WriteBlock(j.recordBlockNo(0), Header{Timestamp: 3, Type: RecordStart}.encode())
	disk.WriteBlock(j.recordBlockNo(0)+1, make(bdev.Block, bdev.BlockSize))
	disk.WriteBlock(j.recordBlockNo(1), Header{Timestamp: 3, BlockNo: uint32(sb.DataStart), Type: RecordData}.encode())
	disk.WriteBlock(j.recordBlockNo(1)+1, payload)
	disk.WriteBlock(j.recordBlockNo(2), Header{Timestamp: 3, Type: RecordCommit}.encode())
	disk.WriteBlock(j.recordBlockNo(2)+1, make(bdev.Block, bdev.BlockSize))

	first := j.Recover()
	require.Len(t, first, 1)
	assert.Equal(t, byte(9), disk.ReadBlock(sb.DataStart)[0])

	// Journal is now zero; a second Recover (e.g. after another reboot
	// with no new activity) must find nothing and change nothing.
	second := j.Recover()
	assert.Empty(t, second)
	assert.Equal(t, byte(9), disk.ReadBlock(sb.DataStart)[0])
}
