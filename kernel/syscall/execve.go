package syscall

import (
	"encoding/binary"

	"rvos/kernel/elf"
	"rvos/kernel/kerrors"
	"rvos/kernel/mem/addr"
	"rvos/kernel/mem/pmm"
	"rvos/kernel/mem/vmm"
	"rvos/kernel/signal"
	"rvos/kernel/task"
	"rvos/kernel/vfs"
)

// userStackTop is the fixed top-of-stack virtual address every exec'd
// program starts with (spec.md §4.6's user stack layout leaves the exact
// address unspecified; this baseline places it just under the canonical
// SV39 user/kernel split rather than computing it per-binary).
const userStackTop = addr.VirtAddr(0x0000_003f_ffff_f000)

// userStackPages is how many pages of stack every exec'd program gets.
// spec.md does not size the stack; eight pages (32KiB) matches the
// teacher's own KernelStackSize order of magnitude.
const userStackPages = 8

// Exec replaces t's address space with the program at d in place: the old
// MemorySpace is torn down, a fresh one is built from the ELF's PT_LOAD
// segments plus a heap area and a stack holding argv/envp/auxv, and t's
// trap frame is rewritten to resume at the new entry point (spec.md §4.6's
// exec semantics: same tid/pid, fresh everything else).
func Exec(t *task.Task, d *vfs.Dentry, argv, envp []string) *kerrors.Error {
	meta, merr := d.Inode.Metadata()
	if merr != nil {
		return wrapErr(merr)
	}
	data := make([]byte, meta.Size)
	if _, rerr := d.Inode.ReadAt(data, 0); rerr != nil {
		return wrapErr(rerr)
	}

	next := &vmm.MemorySpace{}
	if err := next.Init(pmm.Global); err != nil {
		return err
	}
	image, err := elf.Load(next, data)
	if err != nil {
		next.Teardown()
		return err
	}

	heap := vmm.NewFramedArea(addr.PageRange{Start: image.HeapVPN, End: image.HeapVPN}, vmm.FlagValid|vmm.FlagUser|vmm.FlagRead|vmm.FlagWrite, vmm.UserHeap)
	if err := next.InsertArea(heap); err != nil {
		next.Teardown()
		return err
	}
	next.SetHeap(image.HeapVPN)

	stackStart := userStackTop.FloorPage() - userStackPages
	stackArea := vmm.NewFramedArea(addr.PageRange{Start: stackStart, End: userStackTop.FloorPage()}, vmm.FlagValid|vmm.FlagUser|vmm.FlagRead|vmm.FlagWrite, vmm.UserStack)
	if err := next.InsertArea(stackArea); err != nil {
		next.Teardown()
		return err
	}
	for vpn := stackStart; vpn < userStackTop.FloorPage(); vpn++ {
		if err := next.MapAnonymousPage(vpn); err != nil {
			next.Teardown()
			return err
		}
	}

	trampolineVPN := addr.VirtAddr(signal.TrampolineVA).FloorPage()
	trampolineArea := vmm.NewFramedArea(addr.PageRange{Start: trampolineVPN, End: trampolineVPN + 1}, vmm.FlagValid|vmm.FlagUser|vmm.FlagRead|vmm.FlagExec, vmm.Trampoline)
	if err := next.InsertArea(trampolineArea); err != nil {
		next.Teardown()
		return err
	}
	if err := next.MapAnonymousPage(trampolineVPN); err != nil {
		next.Teardown()
		return err
	}
	if err := copyToSpace(next, addr.VirtAddr(signal.TrampolineVA), signal.TrampolineCode()); err != nil {
		next.Teardown()
		return err
	}

	sp, err := buildStack(next, userStackTop, argv, envp)
	if err != nil {
		next.Teardown()
		return err
	}

	old := t.MemorySpace
	t.MemorySpace = next
	old.Teardown()

	t.TrapFrame.SEPC = uint64(image.Entry)
	t.TrapFrame.SP = uint64(sp)
	t.TrapFrame.A0 = uint64(len(argv))
	return nil
}

// buildStack lays out argv/envp/auxv the way a riscv64 Linux binary expects
// just below the stack top: argc, argv pointers, a NULL, envp pointers, a
// NULL, an empty auxv, then the string bytes the pointers target. Only
// AT_NULL is emitted in the auxv -- no vDSO, no program headers are handed
// to the user program since none of this core's exec path builds one.
func buildStack(space *vmm.MemorySpace, top addr.VirtAddr, argv, envp []string) (addr.VirtAddr, *kerrors.Error) {
	cursor := top

	writeString := func(s string) (addr.VirtAddr, *kerrors.Error) {
		buf := append([]byte(s), 0)
		cursor -= addr.VirtAddr(len(buf))
		if err := copyToSpace(space, cursor, buf); err != nil {
			return 0, err
		}
		return cursor, nil
	}

	argvPtrs := make([]addr.VirtAddr, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		p, err := writeString(argv[i])
		if err != nil {
			return 0, err
		}
		argvPtrs[i] = p
	}
	envpPtrs := make([]addr.VirtAddr, len(envp))
	for i := len(envp) - 1; i >= 0; i-- {
		p, err := writeString(envp[i])
		if err != nil {
			return 0, err
		}
		envpPtrs[i] = p
	}

	cursor = addr.VirtAddr(uint64(cursor) &^ 0xf) // 16-byte align before the pointer tables

	writeWord := func(v uint64) *kerrors.Error {
		cursor -= 8
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		return copyToSpace(space, cursor, b[:])
	}

	if err := writeWord(0); err != nil { // AT_NULL
		return 0, err
	}
	if err := writeWord(0); err != nil { // envp NULL terminator
		return 0, err
	}
	for i := len(envpPtrs) - 1; i >= 0; i-- {
		if err := writeWord(uint64(envpPtrs[i])); err != nil {
			return 0, err
		}
	}
	if err := writeWord(0); err != nil { // argv NULL terminator
		return 0, err
	}
	for i := len(argvPtrs) - 1; i >= 0; i-- {
		if err := writeWord(uint64(argvPtrs[i])); err != nil {
			return 0, err
		}
	}
	if err := writeWord(uint64(len(argv))); err != nil { // argc
		return 0, err
	}

	return cursor, nil
}

func copyToSpace(space *vmm.MemorySpace, va addr.VirtAddr, data []byte) *kerrors.Error {
	written := 0
	for written < len(data) {
		cur := va + addr.VirtAddr(written)
		pa, err := space.Translate(cur)
		if err != nil {
			return err
		}
		page := vmm.DirectMapBytes(pa.FloorPage())
		n := copy(page[pa.PageOffset():], data[written:])
		if n == 0 {
			return kerrors.ErrInvalidAddress
		}
		written += n
	}
	return nil
}
