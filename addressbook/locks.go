package addressbook

import (
	"sync"

	"github.com/spachava753/contactsaver/phone"
)

// Locks provides mutual exclusion per phone number. Numbers that are equal
// under the trailing-digit rule share a lock. The zero value is ready to use.
type Locks struct {
	mu   sync.Mutex
	held map[string]*numberLock
}

type numberLock struct {
	mu      sync.Mutex
	waiters int
}

// Lock blocks until the lock for number is held and returns its release func.
func (l *Locks) Lock(number string) (unlock func()) {
	key := lockKey(number)

	l.mu.Lock()
	if l.held == nil {
		l.held = make(map[string]*numberLock)
	}
	nl, ok := l.held[key]
	if !ok {
		nl = &numberLock{}
		l.held[key] = nl
	}
	nl.waiters++
	l.mu.Unlock()

	nl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			nl.mu.Unlock()
			l.mu.Lock()
			nl.waiters--
			if nl.waiters == 0 {
				delete(l.held, key)
			}
			l.mu.Unlock()
		})
	}
}

func (l *Locks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

func lockKey(number string) string {
	if tail := phone.Tail(number); tail != "" {
		return tail
	}
	return phone.Normalize(number)
}
