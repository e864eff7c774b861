// Package dir layers hierarchical directories on top of a plain file: a
// directory's contents are a packed array of fixed-size entries inside
// an ordinary fs.Inode_t byte stream, exactly as spec.md §4.F describes.
// "." and ".." are never materialized; they're synthesized from the
// inode's own sector (passed in by the caller, who already knows it from
// the Open(sector) call) and the inode's stored parent.
package dir

import (
	"bpath"
	"defs"
	"fs"
	"ustr"
)

/// NAMEMAX is the longest directory-entry name this layer stores,
/// excluding the terminating NUL (spec.md §3: "name (<= 30 bytes)").
const NAMEMAX = 30

// Fixed-size on-disk directory entry, packed the same way fs's Dinode_t
// packs its own fields: fixed-width integer fields read/written via
// plain byte-slice views, laid end to end in a caller-owned buffer.
const (
	offInUse  = 0
	offName   = 4
	offSector = offName + NAMEMAX + 1 // +1 for the NUL terminator
	entrySize = offSector + 4
)

func inUse(e []byte) bool { return e[offInUse] != 0 }

func setInUse(e []byte, v bool) {
	e[offInUse] = 0
	if v {
		e[offInUse] = 1
	}
}

func entryName(e []byte) ustr.Ustr {
	return ustr.MkUstrSlice(e[offName : offName+NAMEMAX+1])
}

func setEntryName(e []byte, name ustr.Ustr) {
	nb := e[offName : offName+NAMEMAX+1]
	for i := range nb {
		nb[i] = 0
	}
	copy(nb, name)
}

func entrySector(e []byte) int {
	v := 0
	for i := 3; i >= 0; i-- {
		v = v<<8 | int(e[offSector+i])
	}
	return v
}

func setEntrySector(e []byte, sector int) {
	for i := 0; i < 4; i++ {
		e[offSector+i] = byte(sector >> (8 * uint(i)))
	}
}

/// Lookup scans dir (whose own sector is self, needed to synthesize ".")
/// for name, also synthesizing "..". It returns the target sector and
/// true on success.
func Lookup(dir *fs.Inode_t, self int, name ustr.Ustr) (int, bool) {
	if name.Isdot() {
		return self, true
	}
	if name.Isdotdot() {
		return dir.Parent(), true
	}
	found := -1
	forEachSlot(dir, func(slot int, e []byte) bool {
		if inUse(e) && entryName(e).Eq(name) {
			found = entrySector(e)
			return false
		}
		return true
	})
	if found < 0 {
		return 0, false
	}
	return found, true
}

/// Add stores a new entry (name -> sector) in dir's first free slot (or
/// appends one), rejecting empty/overlong/"."/".." names and duplicates.
func Add(dir *fs.Inode_t, self int, name ustr.Ustr, sector int) defs.Err_t {
	if len(name) == 0 || len(name) > NAMEMAX {
		return -defs.EINVAL
	}
	if name.Isdot() || name.Isdotdot() {
		return -defs.EINVAL
	}
	if _, ok := Lookup(dir, self, name); ok {
		return -defs.EEXIST
	}

	buf := make([]byte, entrySize)
	slotFound := -1
	forEachSlot(dir, func(slot int, e []byte) bool {
		if !inUse(e) {
			slotFound = slot
			return false
		}
		return true
	})
	if slotFound < 0 {
		slotFound = dir.Length() / entrySize
	}

	setInUse(buf, true)
	setEntryName(buf, name)
	setEntrySector(buf, sector)
	dir.WriteAt(buf, entrySize, slotFound*entrySize)
	dir.UpdateFilecount(1)
	return 0
}

/// Remove clears name's entry in dir and calls through to the
/// underlying inode's Remove. protected reports whether a sector must
/// never be removed (root, or some process's cwd) — the directory layer
/// itself has no notion of processes, so the caller supplies this check.
func Remove(fsys *fs.Fs_t, dir *fs.Inode_t, self int, name ustr.Ustr, protected func(sector int) bool) defs.Err_t {
	if name.Isdot() || name.Isdotdot() {
		return -defs.EINVAL
	}
	target, ok := Lookup(dir, self, name)
	if !ok {
		return -defs.ENOENT
	}
	if protected != nil && protected(target) {
		return -defs.EBUSY
	}

	targetIno := fsys.Open(target)
	defer targetIno.Close()
	if targetIno.Isdir() && targetIno.Filecount() != 0 {
		return -defs.ENOTEMPTY
	}

	removed := false
	forEachSlot(dir, func(slot int, e []byte) bool {
		if inUse(e) && entryName(e).Eq(name) {
			setInUse(e, false)
			dir.WriteAt(e, entrySize, slot*entrySize)
			removed = true
			return false
		}
		return true
	})
	if !removed {
		return -defs.ENOENT
	}
	dir.UpdateFilecount(-1)
	targetIno.Remove()
	return 0
}

/// Readdir_t is a stateful cursor over a directory's entries, skipping
/// free slots and the synthesized "." / "..".
type Readdir_t struct {
	dir *fs.Inode_t
	pos int
}

/// MkReaddir creates a cursor over dir starting at its first entry.
func MkReaddir(dir *fs.Inode_t) *Readdir_t {
	return &Readdir_t{dir: dir}
}

/// Next advances the cursor and returns the next in-use entry, or
/// ok=false once the directory is exhausted.
func (r *Readdir_t) Next() (name ustr.Ustr, sector int, ok bool) {
	buf := make([]byte, entrySize)
	nslots := r.dir.Length() / entrySize
	for r.pos < nslots {
		slot := r.pos
		r.pos++
		n := r.dir.ReadAt(buf, entrySize, slot*entrySize)
		if n != entrySize || !inUse(buf) {
			continue
		}
		return append(ustr.Ustr{}, entryName(buf)...), entrySector(buf), true
	}
	return nil, 0, false
}

func forEachSlot(dir *fs.Inode_t, f func(slot int, e []byte) bool) {
	buf := make([]byte, entrySize)
	nslots := dir.Length() / entrySize
	for slot := 0; slot < nslots; slot++ {
		n := dir.ReadAt(buf, entrySize, slot*entrySize)
		if n != entrySize {
			break
		}
		if !f(slot, buf) {
			return
		}
	}
}

/// Resolve walks path starting from root (if absolute) or cwd, following
/// "." / ".." and directory lookups token by token (spec.md §4.F.3). It
/// returns the final sector. Every non-final token must resolve to a
/// directory; the final token's type is left for the caller to check.
func Resolve(fsys *fs.Fs_t, root, cwd int, path ustr.Ustr) (int, defs.Err_t) {
	canon := bpath.Canonicalize(path)
	if len(canon) == 0 {
		return 0, -defs.EINVAL
	}
	cur := cwd
	if canon[0] == '/' {
		cur = root
	}
	toks := bpath.Tokens(canon)
	for i, tok := range toks {
		curIno := fsys.Open(cur)
		if !curIno.Isdir() {
			curIno.Close()
			return 0, -defs.ENOTDIR
		}
		next, ok := Lookup(curIno, cur, tok)
		curIno.Close()
		if !ok {
			return 0, -defs.ENOENT
		}
		if i != len(toks)-1 {
			nextIno := fsys.Open(next)
			isdir := nextIno.Isdir()
			nextIno.Close()
			if !isdir {
				return 0, -defs.ENOTDIR
			}
		}
		cur = next
	}
	return cur, 0
}

/// ResolveParent splits name into (dir_path, last) and resolves
/// dir_path, returning the parent directory's sector and the last
/// component. Used by create/mkdir/remove, which all need the
/// containing directory plus the final component name.
func ResolveParent(fsys *fs.Fs_t, root, cwd int, name ustr.Ustr) (parent int, last ustr.Ustr, err defs.Err_t) {
	dirpath, last := bpath.Split(name)
	parent, err = Resolve(fsys, root, cwd, dirpath)
	return parent, last, err
}
