package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLocks_SerializesSameKey(t *testing.T) {
	locks := NewKeyLocks()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("https://a.com")
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, locks.Len(), "idle keys are released")
}

func TestKeyLocks_DifferentKeysIndependent(t *testing.T) {
	locks := NewKeyLocks()

	unlockA := locks.Lock("a")
	unlockB := locks.Lock("b") // must not block
	assert.Equal(t, 2, locks.Len())

	unlockA()
	unlockB()
	assert.Equal(t, 0, locks.Len())
}
