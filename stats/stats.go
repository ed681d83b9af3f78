// Package stats tracks operation counts and latencies for the façade
// and the journal, and renders them as a table. Adapted directly from
// _examples/mit-pdos-go-nfsd/util/stats/stats.go, which does the same
// thing for NFSv3 procedure counters; here the counters are ScaleFS's
// sync/fsync calls (the rows of mfs.Facade.StatsString) and journal
// commits instead.
package stats

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rodaine/table"
)

// Op accumulates a count and total duration for one kind of operation.
type Op struct {
	count uint32
	nanos uint64
}

func (op *Op) Record(start time.Time) {
	atomic.AddUint32(&op.count, 1)
	atomic.AddUint64(&op.nanos, uint64(time.Since(start).Nanoseconds()))
}

func (op *Op) Inc() {
	atomic.AddUint32(&op.count, 1)
}

func (op Op) Count() uint32 {
	return atomic.LoadUint32(&op.count)
}

func (op Op) MicrosPerOp() float64 {
	n := atomic.LoadUint32(&op.count)
	if n == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&op.nanos)) / float64(n) / 1e3
}

// WriteTable renders names/ops side by side, plus a total row.
func WriteTable(names []string, ops []Op, w io.Writer) {
	if len(names) != len(ops) {
		panic("stats: mismatched names and ops lists")
	}
	tbl := table.New("op", "count", "us/op")
	var total Op
	for i, name := range names {
		c := atomic.LoadUint32(&ops[i].count)
		n := atomic.LoadUint64(&ops[i].nanos)
		atomic.AddUint32(&total.count, c)
		atomic.AddUint64(&total.nanos, n)
		tbl.AddRow(name, c, fmt.Sprintf("%0.1f", ops[i].MicrosPerOp()))
	}
	tbl.AddRow("total", total.Count(), fmt.Sprintf("%0.1f", total.MicrosPerOp()))
	tbl.WithWriter(w)
	tbl.Print()
}

func FormatTable(names []string, ops []Op) string {
	buf := new(bytes.Buffer)
	WriteTable(names, ops, buf)
	return buf.String()
}
