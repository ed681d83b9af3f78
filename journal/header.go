package journal

import (
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/scalefs/bdev"
)

// RecordType is the record-type tag of a JournalBlockHeader (spec.md
// §3/§6). It is stored on disk as a 32-bit field, not a single byte.
type RecordType uint32

const (
	RecordStart RecordType = iota + 1
	RecordData
	RecordCommit
)

// Header is JournalBlockHeader from spec.md §3: the packed on-disk
// fields that precede every record's 4096-byte data block.
type Header struct {
	Timestamp uint64
	BlockNo   uint32 // valid only when Type == RecordData
	Type      RecordType
}

// encode packs h into a full block, zero beyond the packed fields, so
// the record's header occupies one whole disk block (see journal.go's
// comment on why we use block, not byte, granularity).
func (h Header) encode() bdev.Block {
	enc := marshal.NewEnc(bdev.BlockSize)
	enc.PutInt(h.Timestamp)
	enc.PutInt32(h.BlockNo)
	enc.PutInt32(uint32(h.Type))
	raw := enc.Finish()
	blk := make(bdev.Block, bdev.BlockSize)
	copy(blk, raw)
	return blk
}

// isZero reports whether blk decodes to the all-zero header that marks
// the end of the log (spec.md §4.2: "A zero header ... denotes
// end-of-log").
func isZero(blk bdev.Block) bool {
	for _, b := range blk[:16] {
		if b != 0 {
			return false
		}
	}
	return true
}

func decodeHeader(blk bdev.Block) Header {
	dec := marshal.NewDec(blk)
	ts := dec.GetInt()
	bno := dec.GetInt32()
	typ := dec.GetInt32()
	return Header{Timestamp: ts, BlockNo: bno, Type: RecordType(typ)}
}
