package main

import "rvos/kernel/boot"

// fdtPtr is passed to boot.Kmain as the flattened device tree's physical
// address. A global variable, not a literal 0, so the compiler cannot prove
// main's call to Kmain is dead and inline it away before the entry assembly
// has a chance to overwrite it with the real pointer handed in a1.
var fdtPtr uintptr

// main is the only Go symbol the entry assembly calls into. It is a
// trampoline for boot.Kmain and nothing else, so the Go toolchain can never
// optimize the real kernel code out of the binary for having no visible
// caller.
//
// main does not return; boot.Kmain ends in the scheduler's idle loop.
func main() {
	boot.Kmain(0, fdtPtr)
}
