package synch

import "sync"

/// Mutex_t is a non-reentrant mutex with priority donation (spec.md
/// §4.A). It is built on a unary Sema_t; the donation bookkeeping below
/// is the part spec.md requires beyond what a bare binary semaphore
/// gives for free.
type Mutex_t struct {
	sema  *Sema_t
	mu    sync.Mutex // protects holder/waiters below
	sched Sched_i

	holder  Thread_i
	waiters []Thread_i // threads currently blocked in Acquire
}

/// MkMutex constructs an unheld mutex.
func MkMutex(sched Sched_i) *Mutex_t {
	return &Mutex_t{
		sema:  MkSema(sched, 1),
		sched: sched,
	}
}

/// Acquire blocks until the mutex is free, donating t's effective
/// priority up the chain of lock holders while it waits.
func (m *Mutex_t) Acquire(t Thread_i) {
	m.mu.Lock()
	holder := m.holder
	if holder != nil {
		m.waiters = append(m.waiters, t)
		m.mu.Unlock()
		t.SetBlockedOn(holder)
		m._donate(t, holder, 0)
	} else {
		m.mu.Unlock()
	}

	m.sema.Down(t)

	m.mu.Lock()
	m.holder = t
	// t is no longer a waiter once it holds the lock
	for i, w := range m.waiters {
		if w == t {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
	t.SetBlockedOn(nil)
}

// _donate walks the chain of lock holders, raising each one's effective
// priority to at least t's, to a depth cap of depthCap hops (spec.md
// §4.A, TESTABLE PROPERTY 8). depth is the number of hops already taken.
// Each holder's own
// BlockedOn() is consulted to find the next hop, so a chain of nested
// lock holders all get t's priority, not just the immediate one.
func (m *Mutex_t) _donate(t Thread_i, holder Thread_i, depth int) {
	const depthCap = 8
	if depth >= depthCap || holder == nil {
		return
	}
	if holder.EffPriority() < t.EffPriority() {
		holder.SetEffPriority(t.EffPriority())
	}
	m._donate(t, holder.BlockedOn(), depth+1)
}

/// Release hands the mutex to the next waiter (via Sema_t's priority
/// wakeup) and recomputes the releaser's effective priority as the
/// maximum of its own base priority and the best remaining waiter across
/// any other mutexes it still holds — callers composing several mutexes
/// pass that maximum in via afterPriority.
func (m *Mutex_t) Release(t Thread_i, afterPriority int) {
	m.mu.Lock()
	m.holder = nil
	m.mu.Unlock()

	if afterPriority < t.Priority() {
		afterPriority = t.Priority()
	}
	t.SetEffPriority(afterPriority)

	m.sema.Up(t)
}

/// Holder returns the thread currently holding the mutex, or nil.
func (m *Mutex_t) Holder() Thread_i {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holder
}

/// BestWaiterPriority returns the highest effective priority among
/// threads currently blocked on Acquire, or -1 if there are none. A
/// releaser uses this across every mutex it still holds to recompute its
/// own post-release effective priority (spec.md §4.A).
func (m *Mutex_t) BestWaiterPriority() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	best := -1
	for _, w := range m.waiters {
		if p := w.EffPriority(); p > best {
			best = p
		}
	}
	return best
}
