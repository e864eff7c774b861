// Package tinfo holds the per-thread note the rest of the kernel hangs
// scheduling and priority-donation state off of. The scheduler itself is
// an external collaborator (spec.md §1); this package only carries the
// bookkeeping fields donation and wakeup decisions are made from.
//
// The donor tree located "the current thread" through a goroutine-local
// pointer stashed in a patched Go runtime (runtime.Gptr/Setgptr). A stock
// toolchain has no such hook, so callers here carry their *Tnote_t
// explicitly (as a synch.Thread_i) instead of recovering it from thread-
// local state — the same tradeoff idiomatic Go makes with context.Context
// rather than goroutine-locals.
package tinfo

import "sync"

import "defs"
import "synch"

const (
	/// PriDefault is the priority a thread starts at absent donation.
	PriDefault = 31
	/// PriMin is the lowest priority a thread may hold.
	PriMin = 0
	/// PriMax is the highest priority a thread may hold.
	PriMax = 63
)

/// Tnote_t stores per-thread state shared between the scheduler and the
/// synchronization primitives.
type Tnote_t struct {
	ID       defs.Tid_t
	Alive    bool
	Killed   bool
	Isdoomed bool

	// protects Base/Eff/Donor and is always a leaf lock: no other lock is
	// ever acquired while holding it.
	sync.Mutex
	Base  int      /// priority set by the owner, unaffected by donation
	Eff   int      /// effective priority: max(Base, all donations received)
	Donor *Tnote_t /// the thread this one is parked waiting to acquire a mutex from, or nil
}

/// Doomed reports whether the thread is marked as doomed.
func (t *Tnote_t) Doomed() bool {
	return t.Isdoomed
}

/// Tid returns the thread's identifier, satisfying synch.Thread_i.
func (t *Tnote_t) Tid() defs.Tid_t {
	return t.ID
}

/// MkTnote constructs a thread note with the given tid and base priority.
func MkTnote(tid defs.Tid_t, basePrio int) *Tnote_t {
	return &Tnote_t{
		ID:    tid,
		Alive: true,
		Base:  basePrio,
		Eff:   basePrio,
	}
}

/// Priority returns the thread's base (undonated) priority.
func (t *Tnote_t) Priority() int {
	t.Lock()
	defer t.Unlock()
	return t.Base
}

/// EffPriority returns the thread's current effective priority.
func (t *Tnote_t) EffPriority() int {
	t.Lock()
	defer t.Unlock()
	return t.Eff
}

/// SetEffPriority overwrites the thread's effective priority. Callers
/// must already hold whatever invariant (e.g. "this is the max over held
/// mutexes' waiters") justifies the new value; this method does no
/// comparison of its own.
func (t *Tnote_t) SetEffPriority(p int) {
	t.Lock()
	t.Eff = p
	t.Unlock()
}

/// SetBasePriority changes the thread's own priority. The effective
/// priority is raised to p if it is below p; when p is lower, the
/// effective priority is left unchanged.
func (t *Tnote_t) SetBasePriority(p int) {
	t.Lock()
	t.Base = p
	if t.Eff < p {
		t.Eff = p
	}
	t.Unlock()
}

/// BlockedOn returns the thread t is parked waiting to acquire a mutex
/// from, or nil, satisfying synch.Thread_i so synch.Mutex_t can walk past
/// the immediate holder to whoever that holder is itself waiting on.
func (t *Tnote_t) BlockedOn() synch.Thread_i {
	t.Lock()
	defer t.Unlock()
	if t.Donor == nil {
		return nil
	}
	return t.Donor
}

/// SetBlockedOn records which thread t is now parked waiting on, or
/// clears it when passed nil.
func (t *Tnote_t) SetBlockedOn(h synch.Thread_i) {
	t.Lock()
	defer t.Unlock()
	if h == nil {
		t.Donor = nil
		return
	}
	if tn, ok := h.(*Tnote_t); ok {
		t.Donor = tn
	}
}

/// Threadinfo_t tracks all thread notes, keyed by tid.
type Threadinfo_t struct {
	Notes map[defs.Tid_t]*Tnote_t
	sync.Mutex
}

/// Init initializes the thread info map.
func (t *Threadinfo_t) Init() {
	t.Notes = make(map[defs.Tid_t]*Tnote_t)
}

/// Put records a new thread note.
func (t *Threadinfo_t) Put(n *Tnote_t) {
	t.Lock()
	t.Notes[n.ID] = n
	t.Unlock()
}

/// Get looks up a thread note by tid.
func (t *Threadinfo_t) Get(tid defs.Tid_t) (*Tnote_t, bool) {
	t.Lock()
	defer t.Unlock()
	n, ok := t.Notes[tid]
	return n, ok
}

/// Del removes a thread note.
func (t *Threadinfo_t) Del(tid defs.Tid_t) {
	t.Lock()
	delete(t.Notes, tid)
	t.Unlock()
}
