// Package proc implements process lifecycle (spec.md §4.I): exec, wait,
// exit, the per-process file-descriptor table, per-process cwd
// inheritance, and the thin syscall wrappers layered on fs/dir/vm that
// need a process identity (open-file bitmap, mmap bookkeeping) rather
// than living in those lower packages directly. The thread scheduler and
// system-call dispatcher are external collaborators (spec.md §1): this
// package forks a goroutine in place of "fork a kernel thread and jump
// to user mode", and blocks on a channel in place of a semaphore wait,
// since process-level wait is a one-shot event rather than the
// priority-ordered repeated parking src/synch models for kernel threads.
package proc

import (
	"sync"

	"defs"
	"fd"
)

/// Fdtable_t is a fixed-size file-descriptor table with a bitmap of free
/// slots, reserving 0 and 1 for stdio. Each process builds its own table,
/// whose owner field records that process's tid; entries carry no tid of
/// their own, and Get does not check the caller's identity.
type Fdtable_t struct {
	mu    sync.Mutex
	owner defs.Tid_t
	slots []*fd.Fd_t
	used  []bool
}

/// MkFdtable constructs an empty table of the given size with slots 0
/// and 1 reserved for stdio, owned by owner.
func MkFdtable(owner defs.Tid_t, size int) *Fdtable_t {
	t := &Fdtable_t{
		owner: owner,
		slots: make([]*fd.Fd_t, size),
		used:  make([]bool, size),
	}
	t.used[0] = true
	t.used[1] = true
	return t
}

/// Install stdin/stdout at fds 0 and 1.
func (t *Fdtable_t) InstallStdio(stdin, stdout *fd.Fd_t) {
	t.mu.Lock()
	t.slots[0] = stdin
	t.slots[1] = stdout
	t.mu.Unlock()
}

/// Alloc installs f in the first free slot at or after 2 and returns its
/// fd number, or EMFILE if the table is full.
func (t *Fdtable_t) Alloc(f *fd.Fd_t) (int, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 2; i < len(t.slots); i++ {
		if !t.used[i] {
			t.used[i] = true
			t.slots[i] = f
			return i, 0
		}
	}
	return 0, -defs.EMFILE
}

/// Get returns the fd at index n, failing with EBADF if it is out of
/// range or unused.
func (t *Fdtable_t) Get(n int) (*fd.Fd_t, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 0 || n >= len(t.slots) || !t.used[n] || t.slots[n] == nil {
		return nil, -defs.EBADF
	}
	return t.slots[n], 0
}

/// Close releases fd n, closing its descriptor operations. EBADF if n is
/// 0 or 1 (stdio) or is not a live descriptor in this table.
func (t *Fdtable_t) Close(n int) defs.Err_t {
	t.mu.Lock()
	if n < 2 || n >= len(t.slots) || !t.used[n] || t.slots[n] == nil {
		t.mu.Unlock()
		return -defs.EBADF
	}
	f := t.slots[n]
	t.slots[n] = nil
	t.used[n] = false
	t.mu.Unlock()

	fd.Close_panic(f)
	return 0
}

/// CloseAll closes every live descriptor at or after 2, used during
/// process exit. Descriptors 0/1 (console) are the caller's to close.
func (t *Fdtable_t) CloseAll() {
	t.mu.Lock()
	live := make([]*fd.Fd_t, 0)
	for i := 2; i < len(t.slots); i++ {
		if t.used[i] && t.slots[i] != nil {
			live = append(live, t.slots[i])
			t.slots[i] = nil
			t.used[i] = false
		}
	}
	t.mu.Unlock()
	for _, f := range live {
		fd.Close_panic(f)
	}
}

/// Copy duplicates every live descriptor into a freshly constructed
/// table of the same size and owner, used when a child inherits its
/// parent's open files (spec.md does not require fork-style fd
/// inheritance for exec, but Copy is kept for callers that want it, e.g.
/// tests exercising Fdtable_t in isolation).
func (t *Fdtable_t) Copy(newOwner defs.Tid_t) (*Fdtable_t, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	nt := MkFdtable(newOwner, len(t.slots))
	for i := 2; i < len(t.slots); i++ {
		if t.used[i] && t.slots[i] != nil {
			nfd, err := fd.Copyfd(t.slots[i])
			if err != 0 {
				return nil, err
			}
			nt.slots[i] = nfd
			nt.used[i] = true
		}
	}
	return nt, 0
}
