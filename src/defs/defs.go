// Package defs holds the small cross-cutting constants and the single
// error-code type shared by every other package in the tree, the same
// role the donor kernel's defs package plays.
package defs

/// Err_t is the kernel-wide error/status type: 0 on success, negative on
/// failure. No package below the syscall boundary uses Go's error
/// interface; a signed int is what every caller ultimately needs to hand
/// back across a syscall anyway.
type Err_t int

// Error codes. Values are arbitrary but stable within this tree.
const (
	EFAULT  Err_t = 1 /// bad user pointer or NULL where a pointer was required
	EINVAL  Err_t = 2 /// malformed argument
	ENOENT  Err_t = 3 /// path component does not exist
	EEXIST  Err_t = 4 /// duplicate directory entry
	ENOTDIR Err_t = 5 /// expected a directory, found a file
	EISDIR  Err_t = 6 /// expected a file, found a directory
	ENOTEMPTY Err_t = 7 /// directory still has entries
	ENOSPC  Err_t = 8 /// device/free-map exhausted
	EMFILE  Err_t = 9 /// process file-descriptor table is full
	EBADF   Err_t = 10 /// fd does not name an open file, or belongs to another process
	EBUSY   Err_t = 11 /// target is root or a process's cwd
	ENOMEM  Err_t = 12 /// frame/swap allocator is dry
	E2BIG   Err_t = 13 /// argv or command line exceeds its limit
)

/// Tid_t names a kernel thread/process.
type Tid_t int

/// NO_TID is the sentinel "no thread" value.
const NO_TID Tid_t = -1

// Sector and page geometry (spec glossary: "Sector", "Page").
const (
	SECSIZE     = 512         /// bytes per disk sector
	PGSIZE      = 4096        /// bytes per page
	SECPERPG    = PGSIZE / SECSIZE /// sectors backing one page
)

/// NO_SECTOR is the sentinel for an unallocated extent pointer.
const NO_SECTOR = -1

/// SLOT_NONE is the sentinel for "no frame installed" / "no swap slot".
const SLOT_NONE = -1

// Resource budgets named directly by spec.md.
const (
	OPEN_FILE_MAX = 1024 /// per-process fd table size
	ARGV_MAX      = 128  /// max argv tokens marshalled onto the user stack
	CMDLEN_MAX    = 4096 /// max command-line byte length
	STACK_MAX     = 1 << 23 /// max user stack growth (8 MiB)
)

// open() flags, as passed to Fs_open-equivalents.
const (
	O_RDONLY = 0x0
	O_WRONLY = 0x1
	O_RDWR   = 0x2
	O_CREAT  = 0x40
)

// seek() origins.
const (
	SEEK_SET = 0
	SEEK_CUR = 1
	SEEK_END = 2
)

// Numbered syscalls, per spec.md §6.
const (
	SYS_HALT = iota
	SYS_EXIT
	SYS_EXEC
	SYS_WAIT
	SYS_CREATE
	SYS_REMOVE
	SYS_OPEN
	SYS_CLOSE
	SYS_FILESIZE
	SYS_READ
	SYS_WRITE
	SYS_SEEK
	SYS_TELL
	SYS_MMAP
	SYS_MUNMAP
	SYS_CHDIR
	SYS_MKDIR
	SYS_READDIR
	SYS_ISDIR
	SYS_INUMBER
)
