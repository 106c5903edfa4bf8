package booking

import (
	"context"
	"sync"
)

// keyedLocks is the in-process Locker used when no external
// coordination is configured. Each key maps to a one-slot semaphore;
// entries are reference-counted so the table does not grow with the
// key space.
type keyedLocks struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	sem  chan struct{}
	refs int
}

// NewKeyedLocker returns a process-local Locker.
func NewKeyedLocker() Locker {
	return &keyedLocks{slots: make(map[string]*lockSlot)}
}

func (locks *keyedLocks) Acquire(ctx context.Context, key string) (func(), error) {
	locks.mu.Lock()
	slot, ok := locks.slots[key]
	if !ok {
		slot = &lockSlot{sem: make(chan struct{}, 1)}
		locks.slots[key] = slot
	}
	slot.refs++
	locks.mu.Unlock()

	select {
	case slot.sem <- struct{}{}:
	case <-ctx.Done():
		locks.put(key, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-slot.sem
			locks.put(key, slot)
		})
	}
	return release, nil
}

func (locks *keyedLocks) put(key string, slot *lockSlot) {
	locks.mu.Lock()
	slot.refs--
	if slot.refs == 0 {
		delete(locks.slots, key)
	}
	locks.mu.Unlock()
}
