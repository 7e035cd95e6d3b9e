package server

import "sync"

// nameLocks 为每个资源名提供一把互斥锁，避免同名资源被并发回源写入。
// 锁在无人持有时从 map 中移除。
type nameLocks struct {
	mu    sync.Mutex
	locks map[string]*nameLock
}

type nameLock struct {
	mu   sync.Mutex
	refs int
}

func newNameLocks() *nameLocks {
	return &nameLocks{locks: make(map[string]*nameLock)}
}

// lock 阻塞直到获得 name 的锁，返回的函数用于释放。
func (l *nameLocks) lock(name string) func() {
	l.mu.Lock()
	entry := l.locks[name]
	if entry == nil {
		entry = &nameLock{}
		l.locks[name] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, name)
		}
		l.mu.Unlock()
	}
}

func (l *nameLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
