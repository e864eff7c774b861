package circbuf

import (
	"testing"

	"github.com/stretchr/testify/require"

	"defs"
)

// fakeuio_t is a minimal fdops.Userio_i backed by a plain slice, the same
// shape vm.Fakeubuf_t provides in the real tree.
type fakeuio_t struct {
	buf []byte
}

func (f *fakeuio_t) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, f.buf)
	f.buf = f.buf[n:]
	return n, 0
}
func (f *fakeuio_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	f.buf = append(f.buf, src...)
	return len(src), 0
}
func (f *fakeuio_t) Remain() int  { return len(f.buf) }
func (f *fakeuio_t) Totalsz() int { return len(f.buf) }

func TestCopyinThenCopyoutRoundTrips(t *testing.T) {
	var cb Circbuf_t
	cb.Cb_init(8)

	src := &fakeuio_t{buf: []byte("hello")}
	n, err := cb.Copyin(src)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, 5, n)

	dst := &fakeuio_t{}
	n, err = cb.Copyout(dst)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(dst.buf))
	require.True(t, cb.Empty())
}

func TestCopyinStopsWhenFull(t *testing.T) {
	var cb Circbuf_t
	cb.Cb_init(4)

	src := &fakeuio_t{buf: []byte("abcdef")}
	n, err := cb.Copyin(src)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, 4, n)
	require.True(t, cb.Full())

	n, err = cb.Copyin(src)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, 0, n)
}

func TestWraparound(t *testing.T) {
	var cb Circbuf_t
	cb.Cb_init(4)

	cb.Copyin(&fakeuio_t{buf: []byte("ab")})
	out := &fakeuio_t{}
	cb.Copyout_n(out, 1) // drain 1 byte, tail now 1

	cb.Copyin(&fakeuio_t{buf: []byte("cde")}) // wraps past bufsz
	full := &fakeuio_t{}
	n, err := cb.Copyout(full)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, 4, n)
	require.Equal(t, "bcde", string(full.buf))
}
