// Package boot wires every other package's function-variable hooks to a
// concrete implementation and drives hart bring-up (component C5, spec.md
// §4.5). gopher-os's kernel/kmain.Kmain and root-level stub.go/boot.go play
// the same role for amd64 (a single trampoline that installs the hardware
// abstraction layer, clears the terminal, then hands off); this package
// follows that same "one noinline entry point per hart, package-level dummy
// var to defeat dead-code elimination of the boot argument" shape, widened
// to cover the larger set of hooks this kernel's components declare and to
// add the primary/secondary hart split gopher-os never needed.
package boot

import (
	"context"
	"reflect"
	"sync/atomic"
	"time"
	"unsafe"

	"rvos/kernel/fdt"
	"rvos/kernel/ipi"
	"rvos/kernel/kerrors"
	"rvos/kernel/kfmt"
	"rvos/kernel/kfmt/early"
	"rvos/kernel/kpanic"
	"rvos/kernel/mem/addr"
	"rvos/kernel/mem/kheap"
	"rvos/kernel/mem/pmm"
	"rvos/kernel/mem/vmm"
	"rvos/kernel/percpu"
	"rvos/kernel/sbi"
	"rvos/kernel/sched"
	"rvos/kernel/signal"
	"rvos/kernel/sync"
	"rvos/kernel/syscall"
	"rvos/kernel/task"
	"rvos/kernel/trap"
	"rvos/kernel/vfs"

	"golang.org/x/sync/semaphore"
)

// DirectMapBase is the virtual address physical memory is double-mapped at
// (spec.md §4.5's entry-assembly double map, and every physical-to-virtual
// translation thereafter). Chosen as the lowest canonical Sv39 high-half
// address: bit 38 set, every bit above it sign-extended, per
// addr.VirtAddr.Valid()'s canonical-form check.
const DirectMapBase = addr.VirtAddr(0xFFFFFFC000000000)

// kernelReservedBytes is how much of the lowest memory region this kernel
// assumes its own text/data/BSS and entry-assembly page tables occupy.
// There are no linker symbols in this retrieval to read the real figure
// out of (gopher-os's BootMemAllocator reads _kernel_start/_kernel_end from
// its linker script; no such script exists here), so a fixed generous
// upper bound stands in -- the frame allocator simply starts handing out
// pages above it.
const kernelReservedBytes = 16 << 20

// hartTimeout bounds how long the primary hart waits for each secondary
// hart to report itself online before giving up on it.
const hartTimeout = 2 * time.Second

// timerInterval is the number of timebase ticks between timer interrupts,
// installed as trap.AckTimer's re-arm step.
const timerInterval = 1_000_000

// cpuBlocks backs every hart's tp register (spec.md §4.3's CPU-identity
// contract). Distinct from kernel/sched's own private cpuStates array,
// which exists only for NeedResched bookkeeping -- duplicating the slot
// array is cheaper than threading CPU identity through an import cycle
// between kernel/percpu and kernel/sched.
var cpuBlocks percpu.Array[percpu.CpuState]

// onlineMask records which harts have completed bring-up, consulted by
// vmm.NumHarts/OnlineHartMask for TLB-shootdown broadcast decisions.
var onlineMask uint64

// hartSem gates Kmain while secondary harts come online (spec.md §4.5:
// "primary waits on an atomic online mask bit for each hart, with
// timeout"). Each secondary hart's bring-up ends with a Release; the
// primary issues one timed Acquire per hart it started.
var hartSem = semaphore.NewWeighted(int64(percpu.MaxCPUCount))

func init() {
	// hartSem starts fully held so the first N Acquire calls block until
	// N secondary harts Release -- the inverse of the semaphore's normal
	// "starts empty, acquire blocks until release" posture, achieved by
	// draining it to zero up front.
	hartSem.Acquire(context.Background(), int64(percpu.MaxCPUCount))
}

// fdtBlobPtr is a package-level var the linker cannot prove unused, the
// same role multibootInfoPtr plays in the teacher's stub.go: it exists so
// the compiler cannot treat Kmain's argument as dead and inline it away
// before the entry assembly has a chance to pass the real value in a1.
var fdtBlobPtr uintptr

// Kmain is the primary hart's entry point, called by the pre-Go entry
// assembly once BSS is cleared, a minimal page table double-mapping
// physical memory at DirectMapBase is installed, and paging is enabled
// (spec.md §4.5's entry-assembly responsibilities -- outside this module's
// scope, same split as gopher-os's rt0 stub vs. kernel.Kmain).
//
//go:noinline
func Kmain(hartID uint64, fdtAddr uintptr) {
	fdtBlobPtr = fdtAddr

	early.SetSink(sbi.ConsolePutChar)
	early.Printf("booting hart %d\n", hartID)

	// The entry assembly already established a working direct map before
	// jumping here; this just records its offset so vmm's installed
	// DirectMap/DirectMapBytes agree with what's already active.
	vmm.SetDirectMapOffset(DirectMapBase)

	tree, cmdline := parseFDT(fdtAddr)

	physEnd := pickPhysEnd(tree)
	allocStart := addr.PhysAddr(kernelReservedBytes).CeilPage()
	pmm.Global = &pmm.Allocator{}
	pmm.Global.Init(allocStart, physEnd)

	kheap.Heap.Init()

	installArchHooks()
	installCPUIdentity(hartID)

	if err := vmm.KernelSpace.Init(pmm.Global); err != nil {
		kpanic.Panic(err)
	}
	directArea := vmm.NewDirectArea(
		addr.PageRange{Start: DirectMapBase.FloorPage(), End: (DirectMapBase + addr.VirtAddr(physEnd.Addr())).FloorPage()},
		0,
		vmm.FlagValid|vmm.FlagRead|vmm.FlagWrite|vmm.FlagGlobal,
		vmm.KernelData,
	)
	if err := vmm.KernelSpace.InsertArea(directArea); err != nil {
		kpanic.Panic(err)
	}

	kfmt.SetConsole(consoleWriter{})
	kpanic.SetHalt(func() { sbi.Shutdown() })

	signal.SetFrameBuilder(buildSignalFrame)

	startSecondaryHarts(tree, hartID)

	rootFS := vfs.NewMemFS()
	syscall.RegisterFilesystem("/", rootFS)
	rootDentry := vfs.NewDentry("/", rootFS.RootInode(), nil)
	rootCtx := vfs.ResolveContext{Root: rootDentry, Cwd: rootDentry}

	initPath := cmdline.Init
	if err := seedInitProgram(rootFS, initPath); err != nil {
		early.Printf("boot: could not seed %s, halting\n", initPath)
		kpanic.Panic(err)
	}

	initTask := task.NewKernelTask(0)
	initTask.Cwd, initTask.Root = rootDentry, rootDentry
	if err := initTask.MemorySpace.Init(pmm.Global); err != nil {
		kpanic.Panic(err)
	}
	initTask.TrapFrame = &trap.Frame{
		KernelSP:          uint64(initTask.KernelSP),
		KernelSATP:        satpFor(vmm.KernelSpace.Table.Root()),
		KernelTP:          uint64(readTP()),
		KernelTrapHandler: uint64(trapEntryAddr()),
	}
	installStdio(initTask)
	task.InitTask = initTask

	d, derr := vfs.Resolve(rootCtx, initPath, false)
	if derr != nil {
		kpanic.Panic(derr)
	}
	if err := syscall.Exec(initTask, d, []string{initPath}, []string{"TERM=dumb"}); err != nil {
		kpanic.Panic(err)
	}

	sched.SetIdleTask(task.NewKernelTask(reflect.ValueOf(idleEntry).Pointer()))
	sched.Enqueue(initTask)

	early.Printf("entering scheduler\n")
	for {
		sched.Schedule()
		wfi()
	}
}

// SecondaryKmain is every non-primary hart's entry point, passed as the
// opaque start address to sbi.HartStart. It mirrors Kmain's per-hart setup
// without repeating the memory-management bring-up the primary already did
// (spec.md §4.5: "the stub ... sets its per-CPU pointer register from the
// global per-CPU array indexed by hart-id, installs the trap vector,
// creates an idle task for itself, and enters the idle loop").
//
//go:noinline
func SecondaryKmain(hartID uint64) {
	installCPUIdentity(hartID)
	sched.SetIdleTask(task.NewKernelTask(reflect.ValueOf(idleEntry).Pointer()))
	markHartOnline(hartID)

	for {
		sched.Schedule()
		wfi()
	}
}

// idleEntry is the kernel-task entry point installed for every hart's idle
// task; Schedule only ever switches into it when a run queue is empty, and
// the loop in Kmain/SecondaryKmain is what actually calls Schedule again, so
// this never runs as a normal function call -- it exists purely to give
// task.NewKernelTask a valid Context.RA before the first context switch.
func idleEntry() {}

func markHartOnline(hartID uint64) {
	for {
		old := atomic.LoadUint64(&onlineMask)
		next := old | (1 << hartID)
		if atomic.CompareAndSwapUint64(&onlineMask, old, next) {
			break
		}
	}
	hartSem.Release(1)
}

// startSecondaryHarts issues an HSM hart-start call for every hart the FDT
// reports other than the caller, then waits (with a timeout per hart) for
// each to mark itself online (spec.md §4.5).
func startSecondaryHarts(tree *fdt.Tree, primaryHart uint64) {
	markHartOnline(primaryHart)

	var started int
	for _, hart := range tree.HartIDs() {
		if hart == primaryHart {
			continue
		}
		if err := sbi.HartStart(hart, secondaryEntryAddr(), uintptr(hart)); err != nil {
			early.Printf("boot: hart %d failed to start\n", hart)
			continue
		}
		started++
	}

	for i := 0; i < started; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), hartTimeout)
		err := hartSem.Acquire(ctx, 1)
		cancel()
		if err != nil {
			early.Printf("boot: timed out waiting for a secondary hart\n")
		}
	}
}

// installArchHooks wires every package-level function-variable hook this
// kernel's components declare (trap dispatch, TLB shootdown, IPI sending,
// the context switch) to the architecture primitives declared in
// arch_riscv64.go, following the same pattern gopher-os's kernel.Kmain uses
// to install kernel/hal's terminal before anything tries to print through
// it.
func installArchHooks() {
	trap.ReadCause = func() trap.Scause { return trap.Scause(readSCause()) }
	trap.ReadFaultAddress = readSTval
	trap.AckTimer = func() { sbi.SetTimer(readTime() + timerInterval) }
	trap.SyscallHandler = syscall.Dispatch
	trap.TimerTick = sched.Tick
	trap.FlushTLB = func() { sfenceVMA(0) }
	trap.Stop = sbi.HartStop
	trap.DeliverSignals = signal.Deliver
	trap.TerminateCurrentTask = func(sig int) {
		if t := sched.Current(); t != nil {
			signal.Pending(t, signal.Number(sig))
		}
	}
	trap.ReadInstructionBytes = func(va uint64) ([4]byte, bool) {
		var out [4]byte
		t := sched.Current()
		if t == nil || t.MemorySpace == nil {
			return out, false
		}
		pa, err := t.MemorySpace.Translate(addr.VirtAddr(va))
		if err != nil {
			return out, false
		}
		page := vmm.DirectMapBytes(pa.FloorPage())
		copy(out[:], page[pa.PageOffset():])
		return out, true
	}

	ipi.SendFn = sbi.SendIPI

	vmm.LocalFlush = func(vpn addr.VirtPage) { sfenceVMA(uintptr(vpn.Addr())) }
	vmm.NumHarts = func() int {
		mask := atomic.LoadUint64(&onlineMask)
		n := 0
		for mask != 0 {
			n += int(mask & 1)
			mask >>= 1
		}
		return n
	}
	vmm.OnlineHartMask = func() uint64 {
		return atomic.LoadUint64(&onlineMask) &^ (1 << percpu.CurrentHartID())
	}

	task.SwitchFn = contextSwitch

	sync.IRQControl.Enabled = interruptsEnabled
	sync.IRQControl.Disable = disableInterrupts
	sync.IRQControl.Enable = enableInterrupts
}

// installCPUIdentity points the calling hart's tp register at its
// percpu.CpuState slot and installs percpu.CurrentHartID so every other
// package's per-CPU lookups resolve to the right slot (spec.md §4.3).
func installCPUIdentity(hartID uint64) {
	block := cpuBlocks.GetOf(hartID)
	block.CPUID = hartID
	writeTP(uintptr(unsafe.Pointer(block)))
	percpu.CurrentHartID = func() uint64 {
		return (*percpu.CpuState)(unsafe.Pointer(readTP())).CPUID
	}
}

// installStdio gives t fds 0/1/2 over the SBI console, per spec.md §4.6's
// "/init inherits these three already open".
func installStdio(t *task.Task) {
	in := vfs.NewStdin(sbiConsole{})
	out := vfs.NewStdout(sbiConsole{})
	errOut := vfs.NewStdout(sbiConsole{})
	t.FDTable.InstallAt(0, in, false)
	t.FDTable.InstallAt(1, out, false)
	t.FDTable.InstallAt(2, errOut, false)
}

// consoleWriter adapts sbi.ConsolePutChar to io.Writer for kfmt.SetConsole.
type consoleWriter struct{}

func (consoleWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		sbi.ConsolePutChar(b)
	}
	return len(p), nil
}

// sbiConsole adapts the SBI console to vfs.ConsoleDevice for stdin/stdout.
type sbiConsole struct{}

func (sbiConsole) ReadByte() (byte, bool)    { return sbi.ConsoleGetChar() }
func (sbiConsole) WriteBytes(p []byte) int {
	for _, b := range p {
		sbi.ConsolePutChar(b)
	}
	return len(p)
}

// parseFDT builds a []byte view of the FDT blob at fdtAddr (the only place
// this kernel reinterprets a raw boot-time pointer as a slice, since the
// blob's own length lives in its header) and parses it.
func parseFDT(fdtAddr uintptr) (*fdt.Tree, fdt.CommandLine) {
	// The header's total-size field is the first 8 bytes in: magic (4
	// bytes) then totalsize (4 bytes), big-endian, per the devicetree
	// spec's header layout (kernel/fdt/fdt.go's header struct).
	probe := unsafe.Slice((*byte)(unsafe.Pointer(fdtAddr)), 8)
	totalSize := uint32(probe[4])<<24 | uint32(probe[5])<<16 | uint32(probe[6])<<8 | uint32(probe[7])
	blob := unsafe.Slice((*byte)(unsafe.Pointer(fdtAddr)), totalSize)

	tree, err := fdt.Parse(blob)
	if err != nil {
		early.Printf("boot: fdt parse failed, proceeding with defaults\n")
		tree = &fdt.Tree{}
	}
	return tree, fdt.ParseCommandLine(tree.Bootargs())
}

// pickPhysEnd reports the end of the first usable memory region the FDT
// describes, or a conservative 128MiB default if none parsed (e.g. a bad
// blob pointer during early bring-up on an unfamiliar board).
func pickPhysEnd(tree *fdt.Tree) addr.PhysPage {
	regions := tree.MemoryRegions()
	if len(regions) == 0 {
		return addr.PhysAddr(128 << 20).CeilPage()
	}
	r := regions[0]
	return addr.PhysAddr(r.Base + r.Size).CeilPage()
}

// satpFor builds the satp CSR value for an Sv39 root table: mode 8 in the
// top four bits, the root PPN in the low 44.
func satpFor(root addr.PhysPage) uint64 {
	const modeSv39 = uint64(8) << 60
	return modeSv39 | uint64(root)
}

// secondaryEntryAddr and trapEntryAddr are the physical addresses of the
// entry assembly's secondary-hart stub and the trap vector, respectively.
// Both live in the pre-Go entry assembly (spec.md §4.5) -- outside this
// module's scope, the same boundary arch_riscv64.go's CSR primitives sit
// at -- and are recorded here as symbols the linker resolves.
func secondaryEntryAddr() uintptr
func trapEntryAddr() uintptr

// buildSignalFrame is installed as signal.SetFrameBuilder's hook: it saves
// f's user-visible registers to the handler's future stack, points f at the
// trampoline and handler, and hands the handler its single argument (the
// signal number), per spec.md §4.7.
func buildSignalFrame(f *trap.Frame, handler uintptr, n signal.Number) {
	t := sched.Current()
	if t == nil || t.MemorySpace == nil {
		return
	}

	saved := signal.MarshalFrame(f)
	sp := addr.VirtAddr(f.SP) - addr.VirtAddr(len(saved))
	sp = addr.VirtAddr(uint64(sp) &^ 0xf) // 16-byte align, matching the platform's stack ABI

	if err := writeUser(t.MemorySpace, sp, saved); err != nil {
		return // leave f untouched; the signal is effectively dropped
	}

	f.RA = uint64(signal.TrampolineVA)
	f.SP = uint64(sp)
	f.A0 = uint64(n)
	f.SEPC = uint64(handler)
}

// writeUser copies data into space at va, crossing page boundaries as
// needed, the same pattern kernel/elf's writeSegment and kernel/syscall's
// copyToSpace use to write through the direct map rather than the user's
// own (possibly read-only or non-executable) page permissions.
func writeUser(space *vmm.MemorySpace, va addr.VirtAddr, data []byte) *kerrors.Error {
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

// seedInitProgram creates path in fs with a minimal hand-encoded ELF64
// RISC-V executable (buildMinimalInit, in initimage.go), standing in for the
// program a real block-storage driver would otherwise supply -- device
// drivers are specified only as trait contracts this core consumes, so
// there is no virtio-blk path to load a real /init from.
func seedInitProgram(fs vfs.FileSystem, path string) error {
	dir, name := splitParent(path)
	cur := fs.RootInode()
	for _, part := range splitNonEmpty(dir) {
		d, lerr := cur.Lookup(part)
		if lerr != nil {
			d, lerr = cur.Mkdir(part, 0755)
			if lerr != nil {
				return lerr
			}
		}
		cur = d.Inode
	}
	d, err := cur.Create(name, vfs.TypeRegular, 0755)
	if err != nil {
		return err
	}
	image := buildMinimalInit()
	if _, werr := d.Inode.WriteAt(image, 0); werr != nil {
		return werr
	}
	return nil
}

func splitParent(path string) (dir, name string) {
	last := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			last = i
		}
	}
	return path[:last+1], path[last+1:]
}

func splitNonEmpty(path string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				parts = append(parts, path[start:i])
			}
			start = i + 1
		}
	}
	return parts
}
