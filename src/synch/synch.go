// Package synch implements the kernel's synchronization primitives: a
// priority-aware counting semaphore, a mutex with priority donation built
// on top of it, a writer-preferring reader/writer lock, and a Mesa-
// semantics condition variable (spec.md §4.A, grounded on the original
// threads/synch.c this package is named after). The thread scheduler and
// timer are external collaborators (spec.md §1); this package only needs
// them through the narrow Sched_i/Thread_i interfaces below, so the
// primitives can be exercised against a fake scheduler in tests.
package synch

import "defs"

/// Thread_i is the view of a thread the synchronization primitives need:
/// its identity, its (donatable) priority, and which thread (if any) it is
/// itself currently blocked on, so a donation can walk past the immediate
/// lock holder to whoever that holder is waiting on in turn.
type Thread_i interface {
	Tid() defs.Tid_t
	Priority() int
	EffPriority() int
	SetEffPriority(int)
	/// BlockedOn returns the thread this one is parked waiting to acquire
	/// a mutex from, or nil if it isn't currently blocked.
	BlockedOn() Thread_i
	/// SetBlockedOn records (or, passed nil, clears) which thread this
	/// one is parked waiting on.
	SetBlockedOn(Thread_i)
}

/// Sched_i is the scheduler/timer collaborator named only by interface in
/// spec.md §1: yield, sleep, and priority-ordered wakeup all ultimately
/// reduce to Yield from this package's point of view, since Sema_t itself
/// performs blocking via a per-waiter channel rather than delegating to
/// the scheduler directly.
type Sched_i interface {
	/// CurThread returns the calling goroutine's thread.
	CurThread() Thread_i
	/// Yield gives other runnable threads a chance to run.
	Yield()
}
