package oplog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/scalefs/clock"
	"github.com/mit-pdos/scalefs/inum"
)

func TestSnapshotOrdersByTimestampThenCPU(t *testing.T) {
	l := New(4)

	l.AddOperation(0, &Delete{Timestamp: 5, Target: 1})
	l.AddOperation(1, &Delete{Timestamp: 3, Target: 2})
	l.AddOperation(2, &Delete{Timestamp: 3, Target: 3})
	l.AddOperation(0, &Delete{Timestamp: 1, Target: 4})

	ops := l.Snapshot()
	require.Len(t, ops, 4)
	var ts []uint64
	for _, op := range ops {
		ts = append(ts, op.TS())
	}
	assert.Equal(t, []uint64{1, 3, 3, 5}, ts)
	// the two timestamp-3 entries break the tie by cpu id (1 before 2).
	assert.Equal(t, inum.Mnum(2), ops[1].(*Delete).Target)
	assert.Equal(t, inum.Mnum(3), ops[2].(*Delete).Target)
}

func TestConcurrentAddOperationNoLostUpdates(t *testing.T) {
	l := New(8)
	c := clock.New()

	var wg sync.WaitGroup
	for cpu := 0; cpu < 8; cpu++ {
		wg.Add(1)
		go func(cpu int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				l.AddOperation(cpu, &Delete{Timestamp: c.Now(), Target: inum.Mnum(i)})
			}
		}(cpu)
	}
	wg.Wait()

	assert.Len(t, l.Snapshot(), 1600)
}

func TestDrainEmptiesLog(t *testing.T) {
	l := New(2)
	l.AddOperation(0, &Delete{Timestamp: 1, Target: 1})
	l.AddOperation(1, &Delete{Timestamp: 2, Target: 2})

	drained := l.Drain()
	assert.Len(t, drained, 2)
	assert.Empty(t, l.Snapshot())
}

func TestPreloadOplogGrowsCapacityWithoutLosingEntries(t *testing.T) {
	l := New(2)
	l.AddOperation(0, &Delete{Timestamp: 1, Target: 1})

	l.PreloadOplog(64)

	assert.Len(t, l.Snapshot(), 1)
	assert.GreaterOrEqual(t, cap(l.shards[0].entries), 64)
}

func TestUpdateStartEndTSCAreObservablePerShard(t *testing.T) {
	l := New(2)
	l.UpdateStartTSC(0, 10)
	l.UpdateEndTSC(0, 12)

	s := l.shardFor(0)
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, uint64(10), s.startTSC)
	assert.Equal(t, uint64(12), s.endTSC)
}

func TestConcurrentDrainAndAddOperationNoLostOrDuplicatedOps(t *testing.T) {
	l := New(4)
	c := clock.New()
	const perCPU = 500

	var wg sync.WaitGroup
	for cpu := 0; cpu < 4; cpu++ {
		wg.Add(1)
		go func(cpu int) {
			defer wg.Done()
			for i := 0; i < perCPU; i++ {
				l.AddOperation(cpu, &Delete{Timestamp: c.Now(), Target: inum.Mnum(i)})
			}
		}(cpu)
	}

	var mu sync.Mutex
	var drained []Operation
	var drainWg sync.WaitGroup
	stop := make(chan struct{})
	drainWg.Add(1)
	go func() {
		defer drainWg.Done()
		for {
			select {
			case <-stop:
				mu.Lock()
				drained = append(drained, l.Drain()...)
				mu.Unlock()
				return
			default:
				mu.Lock()
				drained = append(drained, l.Drain()...)
				mu.Unlock()
			}
		}
	}()

	wg.Wait()
	close(stop)
	drainWg.Wait()

	mu.Lock()
	drained = append(drained, l.Snapshot()...)
	mu.Unlock()

	assert.Len(t, drained, 4*perCPU)
}

func TestDrainDependentLeavesRestLogged(t *testing.T) {
	l := New(1)
	keep := &Delete{Timestamp: 1, Target: 1}
	drop := &Delete{Timestamp: 2, Target: 2}
	l.AddOperation(0, keep)
	l.AddOperation(0, drop)

	l.DrainDependent([]Operation{drop}, 2, false)

	remaining := l.Snapshot()
	require.Len(t, remaining, 1)
	assert.Same(t, keep, remaining[0])
}
