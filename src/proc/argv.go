package proc

import (
	"strings"

	"defs"
)

/// ParseArgv splits a command line on whitespace into argv tokens,
/// enforcing spec.md §4.I's ARGV_MAX token count and CMDLEN_MAX byte
/// bounds (grounded on the original start_process's strtok_r loop,
/// _examples/original_source/src/userprog/process.c).
func ParseArgv(cmd string) ([]string, defs.Err_t) {
	if len(cmd) >= defs.CMDLEN_MAX {
		return nil, -defs.E2BIG
	}
	argv := strings.Fields(cmd)
	if len(argv) == 0 {
		return nil, -defs.EINVAL
	}
	if len(argv) > defs.ARGV_MAX {
		return nil, -defs.E2BIG
	}
	return argv, 0
}

/// MarshalArgv lays argv out exactly as the original start_process's
/// push-arguments sequence does: each string copied just below
/// stacktop (highest index first), the blob rounded down to 4-byte
/// alignment, then the argv pointer array (argv[0]..argv[argc-1], high
/// index pushed first so argv[0] ends up at the lowest address), a NULL
/// sentinel, the argv-array pointer itself, argc, and a dummy return
/// address — all as 4-byte words, matching the x86 cdecl calling
/// convention main(argc, argv) expects. Returns the bytes to write
/// starting at the returned base address (== new stack pointer) and
/// that address itself.
func MarshalArgv(argv []string, stacktop int) (blob []byte, base int) {
	// First pass: lay out string storage from stacktop down.
	strOffsets := make([]int, len(argv))
	cur := stacktop
	for i := len(argv) - 1; i >= 0; i-- {
		cur -= len(argv[i]) + 1 // + NUL
		strOffsets[i] = cur
	}
	cur &^= 3 // round down to 4-byte alignment

	wordsBelow := len(argv) + 1 /* argv[i] pointers + NULL */ + 1 /* argv */ + 1 /* argc */ + 1 /* ret addr */
	base = cur - wordsBelow*4

	blob = make([]byte, stacktop-base)
	put := func(addr int, v uint32) {
		off := addr - base
		blob[off+0] = byte(v)
		blob[off+1] = byte(v >> 8)
		blob[off+2] = byte(v >> 16)
		blob[off+3] = byte(v >> 24)
	}
	putStr := func(addr int, s string) {
		copy(blob[addr-base:], s)
		blob[addr-base+len(s)] = 0
	}

	for i, s := range argv {
		putStr(strOffsets[i], s)
	}

	argvArrayBase := cur - (len(argv)+1)*4
	for i, off := range strOffsets {
		put(argvArrayBase+i*4, uint32(off))
	}
	put(argvArrayBase+len(argv)*4, 0) // argv[argc] = NULL

	argvPtrAddr := argvArrayBase - 4
	put(argvPtrAddr, uint32(argvArrayBase))

	argcAddr := argvPtrAddr - 4
	put(argcAddr, uint32(len(argv)))

	retAddr := argcAddr - 4
	put(retAddr, 0)

	return blob, base
}
