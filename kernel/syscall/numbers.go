// Package syscall implements component C6/C7's user-facing dispatch fabric
// (spec.md §4.9): a table keyed by the integer passed in a7, Linux RISC-V-64
// calling convention (number in a7, up to six arguments in a0-a5, return
// value in a0, negative errno on failure). gopher-os never reaches user
// mode, so there is no teacher file for this package; it follows the
// registration-table idiom kernel/trap already established
// (RegisterExceptionHandler) and kernel/kerrors.Errno for the Result-to-
// negative-errno mapping spec.md §7 requires at this exact boundary.
package syscall

// Syscall numbers match the Linux generic (riscv64) syscall table, so a
// statically-linked user program built against a standard libc needs no
// kernel-specific syscall stubs for anything in this list.
const (
	SysGetcwd          = 17
	SysDup             = 23
	SysDup3            = 24
	SysFcntl           = 25
	SysIoctl           = 29
	SysMkdirat         = 34
	SysUnlinkat        = 35
	SysSymlinkat       = 36
	SysLinkat          = 37
	SysUmount2         = 39
	SysMount           = 40
	SysChdir           = 49
	SysOpenat          = 56
	SysClose           = 57
	SysPipe2           = 59
	SysGetdents64      = 61
	SysLseek           = 62
	SysRead            = 63
	SysWrite           = 64
	SysReadlinkat      = 78
	SysNewfstatat      = 79
	SysFstat           = 80
	SysExit            = 93
	SysExitGroup       = 94
	SysSetTidAddress   = 96
	SysNanosleep       = 101
	SysClockGettime    = 113
	SysSchedYield      = 124
	SysKill            = 129
	SysTgkill          = 131
	SysRtSigaction     = 134
	SysRtSigprocmask   = 135
	SysRtSigreturn     = 139
	SysGettimeofday    = 169
	SysGetpid          = 172
	SysGetppid         = 173
	SysGettid          = 178
	SysBrk             = 214
	SysMunmap          = 215
	SysClone           = 220
	SysExecve          = 221
	SysMmap            = 222
	SysMprotect        = 226
	SysWait4           = 260

	// SysKarchPs is a non-POSIX debug syscall (spec.md's supplemented
	// features): dumps the task table the way gopher-os's kfmt.early
	// dumps boot diagnostics. Numbered in the generic table's unused
	// arch-specific range (244-259) rather than the POSIX range, so it
	// can never collide with a future real syscall.
	SysKarchPs = 244

	// dup2 has no number in the Linux generic syscall table (glibc
	// synthesizes it from dup3), but spec.md §4.9 names it explicitly
	// among the baseline's implemented calls. It gets the same
	// arch-specific-range treatment as SysKarchPs.
	SysDup2 = 245
)
