package proc

import (
	"sync"

	"defs"
)

/// Exitdata_t is the per-child death record spec.md §3 describes:
/// allocated by the parent at spawn, destroyed by the parent's own exit
/// (orphaning any still-running child, per SPEC_FULL's Open Question #1
/// resolution) or earlier by a successful Wait.
type Exitdata_t struct {
	Child  defs.Tid_t
	Parent defs.Tid_t

	mu       sync.Mutex
	exited   bool
	status   int
	waited   bool
	deathSig chan struct{}
}

func mkExitdata(child, parent defs.Tid_t) *Exitdata_t {
	return &Exitdata_t{Child: child, Parent: parent, deathSig: make(chan struct{})}
}

/// post records status and wakes anyone parked in Wait. Called at most
/// once, by the child's own process_exit.
func (e *Exitdata_t) post(status int) {
	e.mu.Lock()
	if !e.exited {
		e.status = status
		e.exited = true
		close(e.deathSig)
	}
	e.mu.Unlock()
}

/// wait blocks until the child has exited and returns its status,
/// refusing a second call for the same record.
func (e *Exitdata_t) wait() (int, defs.Err_t) {
	e.mu.Lock()
	if e.waited {
		e.mu.Unlock()
		return -1, -defs.EINVAL
	}
	e.waited = true
	e.mu.Unlock()

	<-e.deathSig

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, 0
}
