/*
 * Copyright 2024 The Cowrite Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 * This file was written with reference to moby/locker.
 *   https://github.com/moby/locker
 */

/*
Package locker provides a mechanism for creating finer-grained locking to help
free up more global locks to handle other tasks.

The implementation looks close to a sync.RWMutex, however the user must
provide a reference to use to refer to the underlying lock when locking and
unlocking, and unlock may generate an error.

If a lock with a given name does not exist when `Lock` is called, one is
created. Lock references are automatically cleaned up on `Unlock` if nothing
else is waiting for the lock.
*/
package locker

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrNoSuchLock is returned when the requested lock does not exist.
var ErrNoSuchLock = errors.New("no such lock")

// Locker provides a locking mechanism based on the passed in reference name.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*lockCtr
}

// lockCtr is used by Locker to represent a lock with a given name.
type lockCtr struct {
	mu sync.RWMutex
	// waiters is the number of callers holding or waiting for the lock.
	// this is int32 instead of uint32 so we can add `-1` in `dec()`
	waiters int32
}

// inc increments the number of waiters waiting for the lock
func (l *lockCtr) inc() {
	atomic.AddInt32(&l.waiters, 1)
}

// dec decrements the number of waiters waiting on the lock
func (l *lockCtr) dec() {
	atomic.AddInt32(&l.waiters, -1)
}

// count gets the current number of waiters
func (l *lockCtr) count() int32 {
	return atomic.LoadInt32(&l.waiters)
}

// New creates a new Locker.
func New() *Locker {
	return &Locker{
		locks: make(map[string]*lockCtr),
	}
}

// lockCtrOf returns the lock counter of the given name, creating it if needed.
// The waiter count is incremented while the main mutex is held so the counter
// is not deleted by a concurrent Unlock.
func (l *Locker) lockCtrOf(name string) *lockCtr {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*lockCtr)
	}

	nameLock, exists := l.locks[name]
	if !exists {
		nameLock = &lockCtr{}
		l.locks[name] = nameLock
	}

	nameLock.inc()
	l.mu.Unlock()
	return nameLock
}

// Lock locks a mutex with the given name. If it doesn't exist, one is created.
func (l *Locker) Lock(name string) {
	nameLock := l.lockCtrOf(name)

	// Lock the nameLock outside the main mutex so we don't block other
	// operations. The waiter count stays incremented while the lock is held.
	nameLock.mu.Lock()
}

// TryLock locks a mutex with the given name if it is not already held.
func (l *Locker) TryLock(name string) bool {
	nameLock := l.lockCtrOf(name)

	if nameLock.mu.TryLock() {
		return true
	}

	l.release(name, nameLock)
	return false
}

// RLock acquires a read lock with the given name.
func (l *Locker) RLock(name string) {
	nameLock := l.lockCtrOf(name)
	nameLock.mu.RLock()
}

// Unlock unlocks the mutex with the given name. If no lock with the given
// name exists, ErrNoSuchLock is returned.
func (l *Locker) Unlock(name string) error {
	l.mu.Lock()
	nameLock, exists := l.locks[name]
	if !exists {
		l.mu.Unlock()
		return ErrNoSuchLock
	}

	nameLock.dec()
	if nameLock.count() == 0 {
		delete(l.locks, name)
	}
	nameLock.mu.Unlock()

	l.mu.Unlock()
	return nil
}

// RUnlock releases a read lock previously acquired by RLock.
func (l *Locker) RUnlock(name string) error {
	l.mu.Lock()
	nameLock, exists := l.locks[name]
	if !exists {
		l.mu.Unlock()
		return ErrNoSuchLock
	}

	nameLock.dec()
	if nameLock.count() == 0 {
		delete(l.locks, name)
	}
	nameLock.mu.RUnlock()

	l.mu.Unlock()
	return nil
}

// release drops a waiter reference taken by lockCtrOf without unlocking.
func (l *Locker) release(name string, nameLock *lockCtr) {
	l.mu.Lock()
	nameLock.dec()
	if nameLock.count() == 0 {
		delete(l.locks, name)
	}
	l.mu.Unlock()
}
