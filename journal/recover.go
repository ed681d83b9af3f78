package journal

import "github.com/mit-pdos/scalefs/bdev"

// Recover replays the journal exactly once at boot, before
// BlockAllocator.initialize (spec.md §4.2's precondition on C1). It
// reads records sequentially, accumulates Data records belonging to
// the current Start, and on a matching Commit applies the recovered
// transaction directly to disk, mirroring process_journal in
// scalefs.cc, including its "discard a transaction without a matching
// Commit" rule and its "stop at the first corrupt/mismatched record"
// rule (spec.md §7: "Corrupt journal record on recovery: truncate the
// log at the bad record; committed prefix is applied").
//
// Recovery both writes recovered blocks to their home location on disk
// and hands them back to the caller so any in-process cache can be
// invalidated/repopulated (SPEC_FULL.md §4.2's
// write_to_disk_update_bufcache supplement); Recover itself keeps no
// cache.
func (j *Journal) Recover() []dirtyBlock {
	var pending []dirtyBlock
	var recovered []dirtyBlock
	var current uint64
	haveStart := false

scan:
	for rec := uint64(0); rec < j.maxRecords(); rec++ {
		blockNo := j.recordBlockNo(rec)
		hdrBlk := j.disk.ReadBlock(blockNo)
		if isZero(hdrBlk) {
			break // end of log
		}
		h := decodeHeader(hdrBlk)
		dataBlk := j.disk.ReadBlock(blockNo + 1)

		switch h.Type {
		case RecordStart:
			current = h.Timestamp
			haveStart = true
			pending = nil

		case RecordData:
			if !haveStart || h.Timestamp != current {
				break scan
			}
			pending = append(pending, dirtyBlock{BlockNo: uint64(h.BlockNo), Data: dataBlk})

		case RecordCommit:
			if !haveStart || h.Timestamp != current {
				break scan
			}
			recovered = append(recovered, pending...)
			j.Stats.Recovered++
			pending = nil
			haveStart = false

		default:
			break scan
		}
	}

	// Apply the recovered (committed-only) blocks to their home
	// locations, deduplicating so the latest write to a given block
	// wins, matching T1's dedup rule applied across the whole replay.
	byNo := make(map[uint64]bdev.Block)
	var order []uint64
	for _, b := range recovered {
		if _, ok := byNo[b.BlockNo]; !ok {
			order = append(order, b.BlockNo)
		}
		byNo[b.BlockNo] = b.Data
	}
	applied := make([]dirtyBlock, 0, len(order))
	for _, no := range order {
		j.disk.WriteBlock(no, byNo[no])
		applied = append(applied, dirtyBlock{BlockNo: no, Data: byNo[no]})
	}
	j.disk.Barrier()

	// Zero-fill the journal and reset the offset, same as clear_journal.
	j.offset = j.maxRecords()
	j.clearLocked()

	return applied
}
