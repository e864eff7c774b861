package fs

import "defs"

// extent.go implements the direct/indirect/doubly-indirect address
// resolution and growth described in spec.md §4.D — the part the
// donor's retrieved fragment of fs/super.go never covered, since the
// original free-map/extent logic sat in files the retrieval pack did not
// include. Grounded on original_source/src/filesys/inode.c's
// byte_to_sector and inode_create/grow logic, re-expressed in this
// tree's fieldr/fieldw-over-a-sector idiom.

// undoStep_t is one reversible allocation performed by growExtents: run
// reset to unlink the sector from whatever pointer named it, then free
// the sector.
type undoStep_t struct {
	sector int
	reset  func()
}

func freshIndexBlock() []uint8 {
	buf := make([]uint8, defs.SECSIZE)
	for i := 0; i < NIDIRECT; i++ {
		setIndirectEntry(buf, i, defs.NO_SECTOR)
	}
	return buf
}

// extentSet places sector at data-sector index idx within d, allocating
// whatever indirect/doubly-indirect index blocks are needed along the
// way. Every sector it allocates (index blocks and the data sector
// itself) is recorded in *undo so a later failure in the same
// growExtents call can unwind it.
func extentSet(fs *Fs_t, d *Dinode_t, idx, sector int, undo *[]undoStep_t) defs.Err_t {
	switch {
	case idx < NDIRECT:
		d.SetDirect(idx, sector)
		*undo = append(*undo, undoStep_t{sector: sector, reset: func() {
			d.SetDirect(idx, defs.NO_SECTOR)
		}})
		return 0

	case idx < NDIRECT+NIDIRECT:
		ii := idx - NDIRECT
		indSector := d.Indirect()
		if indSector == defs.NO_SECTOR {
			s, err := fs.Free.Allocate(1)
			if err != 0 {
				return err
			}
			fs.writeSector(s, freshIndexBlock())
			d.SetIndirect(s)
			indSector = s
			*undo = append(*undo, undoStep_t{sector: s, reset: func() {
				d.SetIndirect(defs.NO_SECTOR)
			}})
		}
		buf := fs.readSector(indSector)
		setIndirectEntry(buf, ii, sector)
		fs.writeSector(indSector, buf)
		*undo = append(*undo, undoStep_t{sector: sector, reset: func() {
			b := fs.readSector(indSector)
			setIndirectEntry(b, ii, defs.NO_SECTOR)
			fs.writeSector(indSector, b)
		}})
		return 0

	case idx < NDIRECT+NIDIRECT+NIDIRECT*NIDIRECT:
		jj := idx - NDIRECT - NIDIRECT
		outerIdx, inner := jj/NIDIRECT, jj%NIDIRECT

		dindSector := d.Dindirect()
		if dindSector == defs.NO_SECTOR {
			s, err := fs.Free.Allocate(1)
			if err != 0 {
				return err
			}
			fs.writeSector(s, freshIndexBlock())
			d.SetDindirect(s)
			dindSector = s
			*undo = append(*undo, undoStep_t{sector: s, reset: func() {
				d.SetDindirect(defs.NO_SECTOR)
			}})
		}

		dindBuf := fs.readSector(dindSector)
		outerSector := indirectEntry(dindBuf, outerIdx)
		if outerSector == defs.NO_SECTOR {
			s, err := fs.Free.Allocate(1)
			if err != 0 {
				return err
			}
			fs.writeSector(s, freshIndexBlock())
			setIndirectEntry(dindBuf, outerIdx, s)
			fs.writeSector(dindSector, dindBuf)
			outerSector = s
			*undo = append(*undo, undoStep_t{sector: s, reset: func() {
				b := fs.readSector(dindSector)
				setIndirectEntry(b, outerIdx, defs.NO_SECTOR)
				fs.writeSector(dindSector, b)
			}})
		}

		outerBuf := fs.readSector(outerSector)
		setIndirectEntry(outerBuf, inner, sector)
		fs.writeSector(outerSector, outerBuf)
		*undo = append(*undo, undoStep_t{sector: sector, reset: func() {
			b := fs.readSector(outerSector)
			setIndirectEntry(b, inner, defs.NO_SECTOR)
			fs.writeSector(outerSector, b)
		}})
		return 0

	default:
		return -defs.ENOSPC
	}
}

// growExtents grows d from have data sectors to want data sectors,
// allocating each through fs.Free. On any failure it unwinds every
// sector this call allocated, in reverse order, including intermediate
// index blocks (spec.md §4.D).
func growExtents(fs *Fs_t, d *Dinode_t, have, want int) defs.Err_t {
	var undo []undoStep_t
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i].reset()
			fs.Cache.Free(undo[i].sector)
			fs.Free.Release(undo[i].sector, 1)
		}
	}
	for i := have; i < want; i++ {
		sector, err := fs.Free.Allocate(1)
		if err != 0 {
			rollback()
			return err
		}
		if err := extentSet(fs, d, i, sector, &undo); err != 0 {
			fs.Free.Release(sector, 1)
			rollback()
			return err
		}
	}
	return 0
}

// byteToSector maps a byte offset to the sector backing it, or
// defs.NO_SECTOR if that offset has no allocated extent (spec.md §4.D).
func byteToSector(fs *Fs_t, d *Dinode_t, pos int) int {
	idx := pos / defs.SECSIZE
	switch {
	case idx < NDIRECT:
		return d.Direct(idx)

	case idx < NDIRECT+NIDIRECT:
		ind := d.Indirect()
		if ind == defs.NO_SECTOR {
			return defs.NO_SECTOR
		}
		return indirectEntry(fs.readSector(ind), idx-NDIRECT)

	case idx < NDIRECT+NIDIRECT+NIDIRECT*NIDIRECT:
		jj := idx - NDIRECT - NIDIRECT
		outerIdx, inner := jj/NIDIRECT, jj%NIDIRECT
		dind := d.Dindirect()
		if dind == defs.NO_SECTOR {
			return defs.NO_SECTOR
		}
		outer := indirectEntry(fs.readSector(dind), outerIdx)
		if outer == defs.NO_SECTOR {
			return defs.NO_SECTOR
		}
		return indirectEntry(fs.readSector(outer), inner)

	default:
		return defs.NO_SECTOR
	}
}

// freeAllExtents releases every data sector, then every indirect block,
// then the doubly-indirect tier's index blocks (spec.md §4.D, Close).
// The caller frees the inode's own sector afterward.
func (ino *Inode_t) freeAllExtents() {
	fs := ino.fs
	d := MkDinode(fs.readSector(ino.Sector))

	for i := 0; i < NDIRECT; i++ {
		if s := d.Direct(i); s != defs.NO_SECTOR {
			fs.Cache.Free(s)
			fs.Free.Release(s, 1)
		}
	}

	if ind := d.Indirect(); ind != defs.NO_SECTOR {
		buf := fs.readSector(ind)
		for i := 0; i < NIDIRECT; i++ {
			if s := indirectEntry(buf, i); s != defs.NO_SECTOR {
				fs.Cache.Free(s)
				fs.Free.Release(s, 1)
			}
		}
		fs.Cache.Free(ind)
		fs.Free.Release(ind, 1)
	}

	if dind := d.Dindirect(); dind != defs.NO_SECTOR {
		dindBuf := fs.readSector(dind)
		for o := 0; o < NIDIRECT; o++ {
			outer := indirectEntry(dindBuf, o)
			if outer == defs.NO_SECTOR {
				continue
			}
			outerBuf := fs.readSector(outer)
			for i := 0; i < NIDIRECT; i++ {
				if s := indirectEntry(outerBuf, i); s != defs.NO_SECTOR {
					fs.Cache.Free(s)
					fs.Free.Release(s, 1)
				}
			}
			fs.Cache.Free(outer)
			fs.Free.Release(outer, 1)
		}
		fs.Cache.Free(dind)
		fs.Free.Release(dind, 1)
	}
}
