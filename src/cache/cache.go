// Package cache implements a fixed-size write-back sector cache over a
// block device, grounded on the buffer-block design in this tree's
// filesystem layer (biscuit/src/fs/blk.go): a cached entry carries its own
// lock, and the disk itself is reached only through the Disk_i interface
// (the device driver is an external collaborator).
package cache

import (
	"sync"
	"time"

	"caller"
	"defs"
	"stats"
)

/// Nslots is the fixed number of cache slots.
const Nslots = 64

/// Disk_i is the block device the cache reads through and writes back to.
/// The device driver itself is an external collaborator; only sector-
/// granular positioned I/O is required of it.
type Disk_i interface {
	ReadSector(sector int, dst []byte)
	WriteSector(sector int, src []byte)
	SizeInSectors() int
}

/// slot_t is one fixed cache slot.
type slot_t struct {
	sync.Mutex // held across I/O and the memcpy for this slot
	valid      bool
	dirty      bool
	accessed   bool
	sector     int
	data       [defs.SECSIZE]byte
}

/// Cache_t is a fixed Nslots-entry write-back cache (spec.md §4.B).
type Cache_t struct {
	mu    sync.Mutex // table lock: serializes hit search and victim choice
	slots [Nslots]*slot_t
	clock int // clock-sweep pointer, an index into slots

	disk Disk_i

	stopping bool
	stopped  chan struct{}

	Stats Cstats_t
}

/// Cstats_t counts cache activity; left at zero cost unless
/// stats.Enabled is set.
type Cstats_t struct {
	Hits       stats.Counter_t
	Misses     stats.Counter_t
	Evictions  stats.Counter_t
	Writebacks stats.Counter_t
}

/// Statistics renders the cache's activity counters.
func (c *Cache_t) Statistics() string {
	return stats.Stats2String(&c.Stats)
}

/// MkCache constructs an empty cache over disk.
func MkCache(disk Disk_i) *Cache_t {
	c := &Cache_t{disk: disk, stopped: make(chan struct{})}
	for i := range c.slots {
		c.slots[i] = &slot_t{sector: defs.NO_SECTOR}
	}
	return c
}

// _lookup returns the slot currently caching sector, or nil. Must be
// called with c.mu held.
func (c *Cache_t) _lookup(sector int) *slot_t {
	for _, s := range c.slots {
		if s.valid && s.sector == sector {
			return s
		}
	}
	return nil
}

// _evict runs the clock algorithm to pick a victim slot, writing it back
// first, with c.mu still held, if it is valid and dirty. Must be called
// with c.mu held; returns with the victim's own lock held, the victim
// marked invalid, and c.mu still held. The caller releases the table
// lock before it fills the victim with the new sector.
func (c *Cache_t) _evict() *slot_t {
	for tries := 0; tries < 2*Nslots+1; tries++ {
		s := c.slots[c.clock]
		c.clock = (c.clock + 1) % Nslots
		if !s.valid {
			s.Lock()
			return s
		}
		if s.accessed {
			s.accessed = false
			continue
		}
		s.Lock()
		if s.dirty {
			c.disk.WriteSector(s.sector, s.data[:])
			s.dirty = false
			c.Stats.Writebacks.Inc()
		}
		s.valid = false
		c.Stats.Evictions.Inc()
		return s
	}
	caller.Callerdump(1)
	panic("cache: no victim found")
}

// _slotfor returns the slot caching sector, locked, loading it on a miss.
// The table lock is held for hit search and victim selection, which
// includes _evict's write-back of a dirty victim; it is released before
// the disk read that fills the slot with the new sector.
func (c *Cache_t) _slotfor(sector int) *slot_t {
	c.mu.Lock()
	if s := c._lookup(sector); s != nil {
		s.Lock()
		c.mu.Unlock()
		c.Stats.Hits.Inc()
		return s
	}
	c.Stats.Misses.Inc()
	s := c._evict()
	c.mu.Unlock()

	// s is locked, invalid, and not reachable via _lookup until we set
	// sector+valid below, so no other caller can observe it mid-fill.
	c.disk.ReadSector(sector, s.data[:])
	s.sector = sector
	s.valid = true
	s.dirty = false
	s.accessed = false
	return s
}

/// Read copies size bytes at offset within sector into dst.
func (c *Cache_t) Read(sector int, dst []byte, size, offset int) {
	s := c._slotfor(sector)
	defer s.Unlock()
	s.accessed = true
	copy(dst[:size], s.data[offset:offset+size])
}

/// Write copies size bytes from src into sector at offset and marks the
/// slot dirty.
func (c *Cache_t) Write(sector int, src []byte, size, offset int) {
	s := c._slotfor(sector)
	defer s.Unlock()
	s.accessed = true
	s.dirty = true
	copy(s.data[offset:offset+size], src[:size])
}

/// Free invalidates the slot caching sector, if present, without writing
/// it back. Used after a sector is returned to the free map, where its
/// stale contents must never be flushed over whatever reuses the sector.
func (c *Cache_t) Free(sector int) {
	c.mu.Lock()
	s := c._lookup(sector)
	if s == nil {
		c.mu.Unlock()
		return
	}
	s.Lock()
	c.mu.Unlock()
	s.valid = false
	s.dirty = false
	s.Unlock()
}

/// Flush writes back every dirty slot. If terminate is true, the
/// background flusher (if running) stops after this pass.
func (c *Cache_t) Flush(terminate bool) {
	for _, s := range c.slots {
		s.Lock()
		if s.valid && s.dirty {
			c.disk.WriteSector(s.sector, s.data[:])
			s.dirty = false
		}
		s.Unlock()
	}
	if terminate {
		c.mu.Lock()
		c.stopping = true
		c.mu.Unlock()
	}
}

/// StartFlusher launches the background flusher goroutine, which wakes
/// every period and flushes all dirty slots until Flush(true) is
/// observed. The timer driving this is ambient infrastructure (stdlib
/// time), distinct from the scheduler's tick source named in spec.md §1.
func (c *Cache_t) StartFlusher(period time.Duration) {
	go func() {
		defer close(c.stopped)
		t := time.NewTicker(period)
		defer t.Stop()
		for range t.C {
			c.mu.Lock()
			stop := c.stopping
			c.mu.Unlock()
			c.Flush(false)
			if stop {
				return
			}
		}
	}()
}

/// WaitFlusherStopped blocks until a background flusher started by
/// StartFlusher has exited, for orderly shutdown in tests.
func (c *Cache_t) WaitFlusherStopped() {
	<-c.stopped
}
