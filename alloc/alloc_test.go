package alloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func allFree(n uint64) []uint64 {
	free := make([]uint64, n)
	for i := range free {
		free[i] = uint64(i)
	}
	return free
}

func TestAllocFree(t *testing.T) {
	a := New("block", 16, allFree(16))
	assert.Equal(t, uint64(16), a.Stats().Free)

	n, err := a.Alloc()
	assert.NoError(t, err)
	assert.Equal(t, uint64(15), a.Stats().Free)

	a.Free(n)
	assert.Equal(t, uint64(16), a.Stats().Free)
}

func TestAllocExhaustion(t *testing.T) {
	a := New("block", 4, allFree(4))
	for i := 0; i < 4; i++ {
		_, err := a.Alloc()
		assert.NoError(t, err)
	}
	_, err := a.Alloc()
	assert.ErrorIs(t, err, ErrNoSpace)
}

func TestDoubleFreePanics(t *testing.T) {
	a := New("block", 4, allFree(4))
	n, err := a.Alloc()
	assert.NoError(t, err)
	a.Free(n)
	assert.Panics(t, func() { a.Free(n) })
}

// TestConcurrentAlloc mirrors scenario 2 in spec.md §8: N goroutines each
// allocate many blocks; every returned number must be distinct.
func TestConcurrentAlloc(t *testing.T) {
	const perWorker = 1000
	const workers = 16
	total := uint64(workers * perWorker)

	a := New("block", total, allFree(total))

	seen := make([][]uint64, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			nums := make([]uint64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				n, err := a.Alloc()
				assert.NoError(t, err)
				nums = append(nums, n)
			}
			seen[w] = nums
		}()
	}
	wg.Wait()

	set := make(map[uint64]bool, total)
	for _, nums := range seen {
		for _, n := range nums {
			assert.False(t, set[n], "block %d allocated twice", n)
			set[n] = true
		}
	}
	assert.Equal(t, int(total), len(set))
	assert.Equal(t, uint64(0), a.Stats().Free)
}
