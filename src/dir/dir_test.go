package dir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"defs"
	"fs"
	"ustr"
)

// dirent_t is a plain (name, sector) snapshot of one readdir entry, used
// for deep-equality comparisons against an expected listing.
type dirent_t struct {
	Name   string
	Sector int
}

// fakecache_t mirrors fs package's own test fake: a direct, unevicting
// in-memory stand-in for cache.Cache_t.
type fakecache_t struct {
	sectors map[int][]byte
}

func mkFakeCache() *fakecache_t {
	return &fakecache_t{sectors: make(map[int][]byte)}
}

func (c *fakecache_t) sector(n int) []byte {
	if c.sectors[n] == nil {
		c.sectors[n] = make([]byte, defs.SECSIZE)
	}
	return c.sectors[n]
}

func (c *fakecache_t) Read(sector int, dst []byte, size, offset int) {
	copy(dst[:size], c.sector(sector)[offset:offset+size])
}
func (c *fakecache_t) Write(sector int, src []byte, size, offset int) {
	copy(c.sector(sector)[offset:offset+size], src[:size])
}
func (c *fakecache_t) Free(sector int)      { delete(c.sectors, sector) }
func (c *fakecache_t) Flush(terminate bool) {}

func mkTestFs(nsectors int) *fs.Fs_t {
	return fs.Format(mkFakeCache(), nsectors)
}

func mkdir(t *testing.T, fsys *fs.Fs_t, sector, parent int) *fs.Inode_t {
	t.Helper()
	require.Equal(t, defs.Err_t(0), fsys.Create(sector, 0, true, parent))
	return fsys.Open(sector)
}

func TestLookupSynthesizesDotAndDotDot(t *testing.T) {
	fsys := mkTestFs(4096)
	root := fsys.Open(fs.RootSector)
	defer root.Close()

	sub := mkdir(t, fsys, 100, fs.RootSector)
	defer sub.Close()
	require.Equal(t, defs.Err_t(0), Add(root, fs.RootSector, ustr.Ustr("sub"), 100))

	s, ok := Lookup(sub, 100, ustr.MkUstrDot())
	require.True(t, ok)
	require.Equal(t, 100, s)

	s, ok = Lookup(sub, 100, ustr.DotDot)
	require.True(t, ok)
	require.Equal(t, fs.RootSector, s)
}

func TestAddRejectsDuplicateAndDot(t *testing.T) {
	fsys := mkTestFs(4096)
	root := fsys.Open(fs.RootSector)
	defer root.Close()

	require.Equal(t, defs.Err_t(0), fsys.Create(200, 0, false, fs.RootSector))
	require.Equal(t, defs.Err_t(0), Add(root, fs.RootSector, ustr.Ustr("f"), 200))
	require.Equal(t, -defs.EEXIST, Add(root, fs.RootSector, ustr.Ustr("f"), 200))
	require.Equal(t, -defs.EINVAL, Add(root, fs.RootSector, ustr.MkUstrDot(), 200))
}

func TestRemoveRefusesNonEmptyDir(t *testing.T) {
	fsys := mkTestFs(4096)
	root := fsys.Open(fs.RootSector)
	defer root.Close()

	sub := mkdir(t, fsys, 100, fs.RootSector)
	require.Equal(t, defs.Err_t(0), Add(root, fs.RootSector, ustr.Ustr("sub"), 100))
	require.Equal(t, defs.Err_t(0), fsys.Create(101, 0, false, 100))
	require.Equal(t, defs.Err_t(0), Add(sub, 100, ustr.Ustr("child"), 101))
	sub.Close()

	err := Remove(fsys, root, fs.RootSector, ustr.Ustr("sub"), nil)
	require.Equal(t, -defs.ENOTEMPTY, err)
}

func TestRemoveRefusesProtectedSector(t *testing.T) {
	fsys := mkTestFs(4096)
	root := fsys.Open(fs.RootSector)
	defer root.Close()

	require.Equal(t, defs.Err_t(0), fsys.Create(200, 0, false, fs.RootSector))
	require.Equal(t, defs.Err_t(0), Add(root, fs.RootSector, ustr.Ustr("f"), 200))

	protected := func(sector int) bool { return sector == 200 }
	require.Equal(t, -defs.EBUSY, Remove(fsys, root, fs.RootSector, ustr.Ustr("f"), protected))
}

func TestReaddirSkipsFreedSlots(t *testing.T) {
	fsys := mkTestFs(4096)
	root := fsys.Open(fs.RootSector)
	defer root.Close()

	require.Equal(t, defs.Err_t(0), fsys.Create(200, 0, false, fs.RootSector))
	require.Equal(t, defs.Err_t(0), fsys.Create(201, 0, false, fs.RootSector))
	require.Equal(t, defs.Err_t(0), Add(root, fs.RootSector, ustr.Ustr("a"), 200))
	require.Equal(t, defs.Err_t(0), Add(root, fs.RootSector, ustr.Ustr("b"), 201))
	require.Equal(t, defs.Err_t(0), Remove(fsys, root, fs.RootSector, ustr.Ustr("a"), nil))

	r := MkReaddir(root)
	var got []dirent_t
	for {
		name, sector, ok := r.Next()
		if !ok {
			break
		}
		got = append(got, dirent_t{Name: name.String(), Sector: sector})
	}
	want := []dirent_t{{Name: "b", Sector: 201}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("readdir listing mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveWalksNestedPath(t *testing.T) {
	fsys := mkTestFs(4096)
	root := fsys.Open(fs.RootSector)
	sub := mkdir(t, fsys, 100, fs.RootSector)
	require.Equal(t, defs.Err_t(0), Add(root, fs.RootSector, ustr.Ustr("sub"), 100))
	require.Equal(t, defs.Err_t(0), fsys.Create(101, 0, false, 100))
	require.Equal(t, defs.Err_t(0), Add(sub, 100, ustr.Ustr("leaf"), 101))
	root.Close()
	sub.Close()

	s, err := Resolve(fsys, fs.RootSector, fs.RootSector, ustr.Ustr("/sub/leaf"))
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, 101, s)

	s, err = Resolve(fsys, fs.RootSector, 100, ustr.Ustr("../sub/./leaf"))
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, 101, s)
}

func TestResolveRejectsWalkingThroughAFile(t *testing.T) {
	fsys := mkTestFs(4096)
	root := fsys.Open(fs.RootSector)
	defer root.Close()
	require.Equal(t, defs.Err_t(0), fsys.Create(200, 0, false, fs.RootSector))
	require.Equal(t, defs.Err_t(0), Add(root, fs.RootSector, ustr.Ustr("f"), 200))

	_, err := Resolve(fsys, fs.RootSector, fs.RootSector, ustr.Ustr("/f/x"))
	require.Equal(t, -defs.ENOTDIR, err)
}
