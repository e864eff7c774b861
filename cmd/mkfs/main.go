// Command mkfs builds a filesystem image from a host directory tree,
// the same role the donor kernel's src/mkfs/mkfs.go plays for its own
// bootable images — adapted here to build a standalone image for this
// tree's fs/dir/ufs packages (no kernel or bootloader blob to embed,
// since this tree boots nothing).
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"defs"
	"ufs"
)

const defaultNsectors = 4 * 1024 * 1024 / defs.SECSIZE // a 4MiB image

func copydata(host string, fsys *ufs.Ufs_t, dst string) error {
	f, err := os.Open(host)
	if err != nil {
		return err
	}
	defer f.Close()

	buf, rerr := io.ReadAll(f)
	if rerr != nil {
		return rerr
	}
	if cerr := fsys.MkFile(dst); cerr != 0 {
		return fmt.Errorf("mkfile %s: err %d", dst, cerr)
	}
	if werr := fsys.Write(dst, buf); werr != 0 {
		return fmt.Errorf("write %s: err %d", dst, werr)
	}
	return nil
}

func addfiles(fsys *ufs.Ufs_t, skeldir string) error {
	return filepath.WalkDir(skeldir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(path, skeldir)
		if rel == "" {
			return nil
		}
		rel = "/" + strings.TrimPrefix(rel, "/")

		if d.IsDir() {
			if cerr := fsys.MkDir(rel); cerr != 0 {
				return fmt.Errorf("mkdir %s: err %d", rel, cerr)
			}
			return nil
		}
		return copydata(path, fsys, rel)
	})
}

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: mkfs <output image> <skel dir>\n")
		os.Exit(1)
	}
	image, skeldir := os.Args[1], os.Args[2]

	fsys, err := ufs.BootFS(image, defaultNsectors)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: %v\n", err)
		os.Exit(1)
	}
	if err := addfiles(fsys, skeldir); err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: %v\n", err)
		os.Exit(1)
	}
	if err := fsys.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: %v\n", err)
		os.Exit(1)
	}
}
