package concurrent

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMapKeepsInputOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	out := Map(3, items, func(n int) int {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * n
	})
	assert.Equal(t, []int{25, 1, 16, 4, 9}, out)
}

func TestMapEmpty(t *testing.T) {
	out := Map(4, []string{}, func(s string) int { return len(s) })
	assert.Empty(t, out)
}

func TestWorkerPool(t *testing.T) {
	var running, peak int32
	wp := NewWorkerPool[int, int](2, 10)
	wp.Start(func(n int) int {
		cur := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return n + 1
	})
	for i := 0; i < 10; i++ {
		wp.AddJob(i, i)
	}
	wp.Close()
	wp.Wait()

	sum := 0
	for res := range wp.CollectResults() {
		assert.Equal(t, res.ID+1, res.Result)
		sum += res.Result
	}
	assert.Equal(t, 55, sum)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}
