package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLockSerializesSameKey(t *testing.T) {
	locks := newKeyedLock()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(1)
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestKeyedLockDropsUnusedEntries(t *testing.T) {
	locks := newKeyedLock()

	unlock := locks.Lock(1)
	unlock()
	unlock2 := locks.Lock(2)
	unlock2()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.entries)
}

func TestKeyedLockIndependentKeys(t *testing.T) {
	locks := newKeyedLock()

	unlock1 := locks.Lock(1)
	done := make(chan struct{})
	go func() {
		unlock2 := locks.Lock(2)
		unlock2()
		close(done)
	}()
	<-done
	unlock1()
}
