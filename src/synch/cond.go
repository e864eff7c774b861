package synch

import "sync"

type condwaiter_t struct {
	t    Thread_i
	sema *Sema_t
}

/// Cond_t is a Mesa-semantics condition variable (spec.md §4.A): Wait
/// atomically releases the associated mutex, blocks on a private
/// semaphore, then reacquires the mutex once signaled. Signal wakes the
/// waiter whose effective priority is greatest.
type Cond_t struct {
	mu      sync.Mutex
	waiters []*condwaiter_t
	sched   Sched_i
}

/// MkCond constructs an empty condition variable.
func MkCond(sched Sched_i) *Cond_t {
	return &Cond_t{sched: sched}
}

/// Wait releases m, blocks until Signal or Broadcast wakes this caller,
/// then reacquires m before returning.
func (c *Cond_t) Wait(t Thread_i, m *Mutex_t) {
	priv := MkSema(c.sched, 0)
	c.mu.Lock()
	c.waiters = append(c.waiters, &condwaiter_t{t: t, sema: priv})
	c.mu.Unlock()

	m.Release(t, -1)
	priv.Down(t)
	m.Acquire(t)
}

/// Signal wakes the waiter with the greatest effective priority
/// (FIFO among ties).
func (c *Cond_t) Signal(t Thread_i) {
	c.mu.Lock()
	if len(c.waiters) == 0 {
		c.mu.Unlock()
		return
	}
	idx := 0
	best := c.waiters[0].t.EffPriority()
	for i, w := range c.waiters {
		if p := w.t.EffPriority(); p > best {
			best = p
			idx = i
		}
	}
	w := c.waiters[idx]
	c.waiters = append(c.waiters[:idx], c.waiters[idx+1:]...)
	c.mu.Unlock()
	w.sema.Up(t)
}

/// Broadcast wakes every waiter.
func (c *Cond_t) Broadcast(t Thread_i) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()
	for _, w := range waiters {
		w.sema.Up(t)
	}
}
