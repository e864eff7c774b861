package ufs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBootFormatsFreshImageAndRoundTripsAFile(t *testing.T) {
	img := filepath.Join(t.TempDir(), "disk.img")

	u, err := BootFS(img, 4096)
	require.NoError(t, err)

	require.Equal(t, 0, int(u.MkDir("/d")))
	require.Equal(t, 0, int(u.MkFile("/d/f")))
	require.Equal(t, 0, int(u.Write("/d/f", []byte("payload"))))

	got, rerr := u.Read("/d/f")
	require.Equal(t, 0, int(rerr))
	require.Equal(t, "payload", string(got))

	names, lerr := u.Ls("/d")
	require.Equal(t, 0, int(lerr))
	require.Contains(t, names, "f")

	require.Equal(t, 0, int(u.Unlink("/d/f")))
	require.NoError(t, u.Shutdown())
}

func TestReopenSurvivesAcrossBoots(t *testing.T) {
	img := filepath.Join(t.TempDir(), "disk.img")

	u1, err := BootFS(img, 4096)
	require.NoError(t, err)
	require.Equal(t, 0, int(u1.MkFile("/persisted")))
	require.Equal(t, 0, int(u1.Write("/persisted", []byte("still here"))))
	require.NoError(t, u1.Shutdown())

	u2, err := BootFS(img, 4096)
	require.NoError(t, err)
	got, rerr := u2.Read("/persisted")
	require.Equal(t, 0, int(rerr))
	require.Equal(t, "still here", string(got))
	require.NoError(t, u2.Shutdown())
}
