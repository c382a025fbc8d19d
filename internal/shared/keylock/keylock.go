// Package keylock serializes work per string key.
//
// Local keeps one semaphore per key inside the process; Redis holds a
// SET NX lease so replicas of the API share the same critical sections.
package keylock

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func
	// releases the key and is safe to call more than once.
	Lock(ctx context.Context, key string) (func(), error)
}

func BalanceKey(companyID, employeeID, leaveType string) string {
	return strings.Join([]string{"balance", companyID, employeeID, leaveType}, ":")
}

func RequestKey(companyID, requestID string) string {
	return strings.Join([]string{"leave", companyID, requestID}, ":")
}

// EmployeeKey guards admission of new requests for one employee.
func EmployeeKey(companyID, employeeID string) string {
	return strings.Join([]string{"employee", companyID, employeeID}, ":")
}

// LockAll acquires keys in sorted order and releases them in reverse.
// Callers locking several keys must go through here so two callers never
// wait on each other in opposite order.
func LockAll(ctx context.Context, l Locker, keys ...string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	unlocks := make([]func(), 0, len(sorted))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, key := range sorted {
		unlock, err := l.Lock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

type entry struct {
	sem  chan struct{}
	refs int
}

type local struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewLocal() Locker {
	return &local{entries: make(map[string]*entry)}
}

func (l *local) acquireEntry(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *local) releaseEntry(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *local) Lock(ctx context.Context, key string) (func(), error) {
	e := l.acquireEntry(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.releaseEntry(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.releaseEntry(key, e)
		})
	}, nil
}
