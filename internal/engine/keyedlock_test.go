package engine

import (
	"sync"
	"testing"
)

func TestKeyedLockSerializesSameKey(t *testing.T) {
	t.Parallel()

	locks := newKeyedLocks()
	const workers = 32
	counter := 0
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			unlock := locks.Lock("k")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	if counter != workers {
		t.Fatalf("lost updates under contention: got %d, want %d", counter, workers)
	}
}

func TestKeyedLockDistinctKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	locks := newKeyedLocks()
	unlockA := locks.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("b")
		unlockB()
		close(done)
	}()
	<-done
}

func TestKeyedLockEntryRemovedAfterLastRelease(t *testing.T) {
	t.Parallel()

	locks := newKeyedLocks()
	unlock := locks.Lock("k")
	if locks.entries.Size() != 1 {
		t.Fatalf("expected 1 entry while held, got %d", locks.entries.Size())
	}
	unlock()
	if locks.entries.Size() != 0 {
		t.Fatalf("expected empty lock table after release, got %d entries", locks.entries.Size())
	}
}

func TestKeyedLockReusableAfterRelease(t *testing.T) {
	t.Parallel()

	locks := newKeyedLocks()
	for i := 0; i < 100; i++ {
		unlock := locks.Lock("k")
		unlock()
	}
	if locks.entries.Size() != 0 {
		t.Fatalf("lock table leaked %d entries", locks.entries.Size())
	}
}
