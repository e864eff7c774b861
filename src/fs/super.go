package fs

// Superblock_t is the on-disk descriptor for this tree's simplified
// layout: no log, no orphan map, no crash-consistent journaling (those
// are explicit non-goals) — just enough geometry for mount to find the
// root directory and the free-sector bitmap. Adapted from this package's
// original superblock (which tracked a write-ahead log and orphan-inode
// map, neither of which this design has) down to the fields this design
// actually needs, keeping its fieldr/fieldw-over-a-fixed-sector idiom.
type Superblock_t struct {
	data []uint8
}

const (
	sbOffMagic    = 0
	sbOffRoot     = 4
	sbOffFreemap  = 8
	sbOffNsectors = 12
)

const superblockMagic = 0x62667331

/// MkSuperblock wraps buf (one sector) as a Superblock_t view.
func MkSuperblock(buf []uint8) *Superblock_t {
	return &Superblock_t{data: buf}
}

/// Init stamps a fresh superblock naming the root inode's sector, the
/// free-map inode's sector, and the device's total sector count.
func (sb *Superblock_t) Init(rootSector, freemapSector, nsectors int) {
	fieldw(sb.data, sbOffMagic, superblockMagic)
	fieldw(sb.data, sbOffRoot, rootSector)
	fieldw(sb.data, sbOffFreemap, freemapSector)
	fieldw(sb.data, sbOffNsectors, nsectors)
}

/// Valid reports whether this sector holds a superblock this tree wrote.
func (sb *Superblock_t) Valid() bool {
	return fieldr(sb.data, sbOffMagic) == superblockMagic
}

/// Rootsector returns the sector holding the root directory's inode.
func (sb *Superblock_t) Rootsector() int { return fieldr(sb.data, sbOffRoot) }

/// Freemapsector returns the sector holding the free-sector map's inode.
func (sb *Superblock_t) Freemapsector() int { return fieldr(sb.data, sbOffFreemap) }

/// Nsectors returns the device's total sector count, as recorded at
/// format time.
func (sb *Superblock_t) Nsectors() int { return fieldr(sb.data, sbOffNsectors) }
