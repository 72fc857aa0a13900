package writeback

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_MutualExclusionPerKey(t *testing.T) {
	km := newKeyedMutex()

	var inSection int
	var maxSeen int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("INV100")
			defer km.Unlock("INV100")

			mu.Lock()
			inSection++
			if inSection > maxSeen {
				maxSeen = inSection
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inSection--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen, "at most one holder per key at a time")
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()
	km.Lock("INV100")
	defer km.Unlock("INV100")

	done := make(chan struct{})
	go func() {
		km.Lock("INV200")
		km.Unlock("INV200")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key should not block")
	}
}

func TestKeyedMutex_EntryReclaimedWhenUncontended(t *testing.T) {
	km := newKeyedMutex()
	km.Lock("INV100")
	km.Unlock("INV100")

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.entries, "idle keys must not accumulate")
}

func TestKeyedMutex_UnlockUnheldPanics(t *testing.T) {
	km := newKeyedMutex()
	assert.Panics(t, func() { km.Unlock("INV100") })
}
