package repository

import (
	"testing"
	"time"
)

func TestKeyedMutexSameKeyExcludes(t *testing.T) {
	km := newKeyedMutex()

	unlock := km.Lock("PKG-1")

	acquired := make(chan struct{})
	go func() {
		innerUnlock := km.Lock("PKG-1")
		close(acquired)
		innerUnlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same key must block until release")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("released lock was not handed to the waiter")
	}
}

func TestKeyedMutexDifferentKeysRunInParallel(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.Lock("PKG-A")
	defer unlockA()

	acquired := make(chan struct{})
	go func() {
		unlockB := km.Lock("PKG-B")
		close(acquired)
		unlockB()
	}()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("an unrelated key must not block")
	}
}

func TestKeyedMutexDropsIdleEntries(t *testing.T) {
	km := newKeyedMutex()

	unlock := km.Lock("PKG-1")
	unlock()

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.locks) != 0 {
		t.Errorf("expected empty lock table after release, got %d entries", len(km.locks))
	}
}
