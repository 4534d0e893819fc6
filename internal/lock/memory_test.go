package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/evident-labs/evidcore/internal/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory_SerializesPerKey(t *testing.T) {
	mgr := lock.NewInMemory()
	ctx := context.Background()

	var counter int64
	var maxObserved int64
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := mgr.Lock(ctx, "evidence-1")
			require.NoError(t, err)
			defer unlock()

			n := atomic.AddInt64(&counter, 1)
			if n > atomic.LoadInt64(&maxObserved) {
				atomic.StoreInt64(&maxObserved, n)
			}
			atomic.AddInt64(&counter, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), maxObserved)
}

func TestInMemory_DistinctKeysDoNotBlock(t *testing.T) {
	mgr := lock.NewInMemory()
	ctx := context.Background()

	unlockA, err := mgr.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := mgr.Lock(ctx, "b")
		require.NoError(t, err)
		unlockB()
		close(done)
	}()

	<-done
}
