package journal

import "github.com/mit-pdos/scalefs/bdev"

// dirtyBlock is one (block_no, payload) pair of a Transaction.
type dirtyBlock struct {
	BlockNo uint64
	Data    bdev.Block
}

// Transaction is the atomic unit spec.md §3 describes: an ordered set
// of dirty blocks, plus the bitmap deltas they imply, carrying the
// timestamp of the MfsOperation that produced it.
//
// Invariant T1 (no block appears twice; latest write wins) is enforced
// by AddBlock itself rather than left to callers to dedupe.
type Transaction struct {
	Timestamp uint64

	order []uint64          // insertion order of distinct block numbers
	byNo  map[uint64]*dirtyBlock

	AllocatedBlockList []uint64
	FreeBlockList      []uint64
}

func NewTransaction(timestamp uint64) *Transaction {
	return &Transaction{
		Timestamp: timestamp,
		byNo:      make(map[uint64]*dirtyBlock),
	}
}

// AddBlock records a dirty block. If blockNo was already dirtied by
// this transaction, the new payload replaces the old one (T1: "the
// latest write wins if a higher layer attempts to add duplicates").
func (tr *Transaction) AddBlock(blockNo uint64, data bdev.Block) {
	cp := make(bdev.Block, len(data))
	copy(cp, data)
	if existing, ok := tr.byNo[blockNo]; ok {
		existing.Data = cp
		return
	}
	tr.byNo[blockNo] = &dirtyBlock{BlockNo: blockNo, Data: cp}
	tr.order = append(tr.order, blockNo)
}

// Blocks returns the transaction's dirty blocks in the order they were
// first added, deduplicated per T1.
func (tr *Transaction) Blocks() []dirtyBlock {
	out := make([]dirtyBlock, len(tr.order))
	for i, no := range tr.order {
		out[i] = *tr.byNo[no]
	}
	return out
}

func (tr *Transaction) MarkAllocated(bno uint64) {
	tr.AllocatedBlockList = append(tr.AllocatedBlockList, bno)
}

func (tr *Transaction) MarkFreed(bno uint64) {
	tr.FreeBlockList = append(tr.FreeBlockList, bno)
}

func (tr *Transaction) NumDirty() int {
	return len(tr.order)
}
