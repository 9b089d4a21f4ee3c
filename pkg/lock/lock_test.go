package lock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNameForPathIsDeterministic(t *testing.T) {
	a := NameForPath("/data/graph")
	b := NameForPath("/data/graph")
	c := NameForPath("/data/other")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestAcquireReleaseRefCount(t *testing.T) {
	r := NewRegistry()
	name := NameForPath("/data/graph")

	assert.Equal(t, 0, r.RefCount(name))
	r.Acquire(name)
	assert.Equal(t, 1, r.RefCount(name))
	r.Release(name)
	assert.Equal(t, 0, r.RefCount(name))
}

func TestAcquireSerializesConcurrentHolders(t *testing.T) {
	r := NewRegistry()
	name := NameForPath("/data/graph")

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	r.Acquire(name)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Acquire(name)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			r.Release(name)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, order)
	mu.Unlock()

	r.Release(name)
	wg.Wait()

	mu.Lock()
	assert.Len(t, order, 3)
	mu.Unlock()
}

// TestReleaseAndMaybeCloseRunsOnlyAtZero exercises the close-on-zero-
// refcount lifecycle pkg/graphadapter's withLock relies on in shared-lock
// mode (spec §5): closeFn must run exactly when the last local holder
// releases, never while a second acquirer is still holding or waiting on
// the same name.
func TestReleaseAndMaybeCloseRunsOnlyAtZero(t *testing.T) {
	r := NewRegistry()
	name := NameForPath("/data/graph")

	var closes int32

	r.Acquire(name)

	second := make(chan struct{})
	releasedSecond := make(chan struct{})
	go func() {
		r.Acquire(name)
		close(second)
		<-releasedSecond
		r.ReleaseAndMaybeClose(name, func() { atomic.AddInt32(&closes, 1) })
	}()

	// First release brings refCount from 2 to 1: the second acquirer is
	// still holding, so closeFn must not run.
	r.ReleaseAndMaybeClose(name, func() { atomic.AddInt32(&closes, 1) })
	assert.Equal(t, int32(0), atomic.LoadInt32(&closes), "closeFn must not run while the second holder still holds the lock")

	close(releasedSecond)
	<-second // the second goroutine has acquired and is about to release

	// Give the second goroutine's release a moment to run.
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&closes) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&closes), "closeFn must run exactly once, when the last holder releases")
	assert.Equal(t, 0, r.RefCount(name))
}

func TestReleaseAndMaybeCloseUnknownNameIsNoop(t *testing.T) {
	r := NewRegistry()
	var ran bool
	r.ReleaseAndMaybeClose("never-acquired", func() { ran = true })
	assert.False(t, ran)
}
