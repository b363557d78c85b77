package keylock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireIsExclusivePerKey(t *testing.T) {
	set := NewSet()

	release, err := set.Acquire(context.Background(), "item-1")
	require.NoError(t, err)

	_, ok := set.TryAcquire("item-1")
	assert.False(t, ok, "second holder must not acquire a held key")

	otherRelease, ok := set.TryAcquire("item-2")
	require.True(t, ok, "different keys are independent")
	otherRelease()

	release()

	release2, ok := set.TryAcquire("item-1")
	require.True(t, ok, "released key is acquirable again")
	release2()
}

func TestAcquireRespectsContextDeadline(t *testing.T) {
	set := NewSet()

	release, err := set.Acquire(context.Background(), "item-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = set.Acquire(ctx, "item-1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAcquireSerializesConcurrentHolders(t *testing.T) {
	set := NewSet()

	const workers = 32
	var wg sync.WaitGroup
	var holders, maxHolders int
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := set.Acquire(context.Background(), "shared")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			holders++
			if holders > maxHolders {
				maxHolders = holders
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxHolders, "at most one holder at a time")
}

func TestIdleKeysAreDropped(t *testing.T) {
	set := NewSet()

	release, err := set.Acquire(context.Background(), "item-1")
	require.NoError(t, err)
	release()

	set.mu.Lock()
	defer set.mu.Unlock()
	assert.Empty(t, set.entries)
}
