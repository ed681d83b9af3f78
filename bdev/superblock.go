package bdev

// Superblock lays out the fixed regions of the backing disk: the
// physical journal, the block free-bitmap, and the data region the
// allocator hands out. Grounded on sv6's struct superblock (consumed by
// BlockAllocator.initialize(sb) and get_superblock() throughout
// scalefs.cc) and go-nfsd's FsSuper
// (_examples/mit-pdos-go-nfsd/fs.go), adapted to name the fields this
// spec actually needs instead of an inode-region layout, since inode
// storage itself belongs to the out-of-scope InodeLayer collaborator.
type Superblock struct {
	Size uint64 // total blocks on disk

	NInodes uint64 // NINODES in spec.md §6: initial capacity of both mapping tables

	JournalStart uint64 // first block of the physical journal region
	JournalSize  uint64 // PHYS_JOURNAL_SIZE in blocks

	BitmapStart  uint64 // first block of the free-bitmap
	BitmapBlocks uint64

	DataStart uint64 // first block available to the allocator
}

// NBitBlock is the number of bits (blocks) one bitmap block can track:
// BPB in spec.md §6.
const NBitBlock = BlockSize * 8

// inodesPerDataBlock picks NInodes as a fraction of the data region
// rather than a fixed compile-time NINODES, since the target disk size
// here is a runtime flag rather than sv6's fixed image size; one inode
// per 4 data blocks comfortably covers the module's own tests and demo
// workload without growing unbounded on a large -size.
const inodesPerDataBlock = 4

// NewSuperblock lays out a disk of the given size in blocks, reserving
// journalBlocks for the physical journal and rounding the bitmap region
// up to whole blocks.
func NewSuperblock(size, journalBlocks uint64) Superblock {
	bitmapBlocks := (size + NBitBlock - 1) / NBitBlock
	dataStart := journalBlocks + bitmapBlocks
	nInodes := uint64(1)
	if size > dataStart {
		nInodes = (size - dataStart) / inodesPerDataBlock
	}
	if nInodes < 1 {
		nInodes = 1
	}
	return Superblock{
		Size:         size,
		NInodes:      nInodes,
		JournalStart: 0,
		JournalSize:  journalBlocks,
		BitmapStart:  journalBlocks,
		BitmapBlocks: bitmapBlocks,
		DataStart:    dataStart,
	}
}
