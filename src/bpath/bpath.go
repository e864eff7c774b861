// Package bpath canonicalizes and splits filesystem paths. It exists to
// give fd.Cwd_t.Canonicalpath and the directory layer's path walk
// (spec.md §4.F) a single, well-tested place to collapse slashes and
// split "dir/last" — the donor tree references a bpath package from
// fd.Cwd_t but its own copy was never populated in the retrieval pack.
package bpath

import "ustr"

/// Canonicalize collapses consecutive slashes in p and drops a single
/// trailing slash (but never turns "/" into ""). It does not resolve
/// "." or ".." — that is the directory layer's job, since it requires
/// inode lookups this package has no access to.
func Canonicalize(p ustr.Ustr) ustr.Ustr {
	out := make(ustr.Ustr, 0, len(p))
	var prevSlash bool
	for i, c := range p {
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		_ = i
		out = append(out, c)
	}
	if len(out) > 1 && out[len(out)-1] == '/' {
		out = out[:len(out)-1]
	}
	return out
}

/// Split breaks name into (dir_path, last) per spec.md §4.F.4: if no '/'
/// is present, dir_path is ".". The caller is responsible for rejecting
/// name == "/" before calling Split, since that case is handled
/// specially by the directory layer (open("/") returns root).
func Split(name ustr.Ustr) (ustr.Ustr, ustr.Ustr) {
	name = Canonicalize(name)
	idx := lastSlash(name)
	if idx < 0 {
		return ustr.MkUstrDot(), name
	}
	dir := name[:idx]
	if len(dir) == 0 {
		dir = ustr.MkUstrRoot()
	}
	last := name[idx+1:]
	return dir, last
}

func lastSlash(p ustr.Ustr) int {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return i
		}
	}
	return -1
}

/// Tokens splits a canonicalized path into its '/'-separated components,
/// skipping empty components produced by a leading or trailing slash.
func Tokens(p ustr.Ustr) []ustr.Ustr {
	p = Canonicalize(p)
	var toks []ustr.Ustr
	start := 0
	flush := func(end int) {
		if end > start {
			toks = append(toks, p[start:end])
		}
	}
	for i, c := range p {
		if c == '/' {
			flush(i)
			start = i + 1
		}
	}
	flush(len(p))
	return toks
}
