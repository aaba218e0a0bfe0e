package reminder

import "sync"

type pairKey struct {
	shiftID    int64
	employeeID int64
}

// keyedMutex 为每个 (班次, 员工) 提供独立的互斥锁，不再使用的锁会被回收
type keyedMutex struct {
	mu    sync.Mutex
	locks map[pairKey]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[pairKey]*refMutex)}
}

func (km *keyedMutex) lock(k pairKey) (unlock func()) {
	km.mu.Lock()
	m, ok := km.locks[k]
	if !ok {
		m = &refMutex{}
		km.locks[k] = m
	}
	m.refs++
	km.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		km.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(km.locks, k)
		}
		km.mu.Unlock()
	}
}
