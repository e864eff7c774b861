package synch

import "container/list"
import "sync"

/// waiter_t is one thread parked on a Sema_t, woken by closing ch.
type waiter_t struct {
	t  Thread_i
	ch chan struct{}
}

/// Sema_t is a counting semaphore. Down blocks until the counter is
/// positive then decrements it; Up increments the counter and wakes the
/// highest-effective-priority waiter (FIFO among ties), per spec.md
/// §4.A. All bookkeeping happens under one mutex; the only thing that
/// happens outside it is the actual blocking receive in Down.
type Sema_t struct {
	mu      sync.Mutex
	count   int
	waiters *list.List // of *waiter_t, insertion order (oldest first)
	sched   Sched_i
}

/// MkSema constructs a semaphore with the given initial count.
func MkSema(sched Sched_i, count int) *Sema_t {
	return &Sema_t{
		count:   count,
		waiters: list.New(),
		sched:   sched,
	}
}

/// Down blocks the calling thread t until the counter is positive, then
/// decrements it.
func (s *Sema_t) Down(t Thread_i) {
	s.mu.Lock()
	if s.count > 0 {
		s.count--
		s.mu.Unlock()
		return
	}
	w := &waiter_t{t: t, ch: make(chan struct{})}
	e := s.waiters.PushBack(w)
	s.mu.Unlock()

	<-w.ch

	s.mu.Lock()
	s.waiters.Remove(e)
	s.mu.Unlock()
}

/// Up increments the counter and wakes the best-priority waiter, if any.
/// t is the calling thread, used only to decide whether to yield after
/// waking a higher-priority waiter.
func (s *Sema_t) Up(t Thread_i) {
	s.mu.Lock()
	best := s._popbest()
	if best == nil {
		s.count++
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	close(best.ch)
	if t != nil && best.t.EffPriority() > t.EffPriority() {
		s.sched.Yield()
	}
}

// _popbest removes and returns the highest-effective-priority waiter,
// breaking ties in FIFO order. Must be called with s.mu held. It removes
// the waiter's list element itself, so the Remove that Down performs on
// its own element after waking is a no-op.
func (s *Sema_t) _popbest() *waiter_t {
	var bestElem *list.Element
	var best *waiter_t
	for e := s.waiters.Front(); e != nil; e = e.Next() {
		w := e.Value.(*waiter_t)
		if best == nil || w.t.EffPriority() > best.t.EffPriority() {
			best = w
			bestElem = e
		}
	}
	if bestElem != nil {
		s.waiters.Remove(bestElem)
		// Down will also try to remove its element; re-push a dummy is
		// unnecessary since Down's Remove on an already-removed element
		// is a safe no-op in container/list.
	}
	return best
}

/// Waiters reports how many threads are currently parked, for tests.
func (s *Sema_t) Waiters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiters.Len()
}
