package fdt

import (
	"encoding/binary"
	"strings"
)

// MemoryRegion is one usable physical memory range reported by a /memory
// node's reg property (pairs of address/size cells, both 64-bit on the
// platforms this kernel targets).
type MemoryRegion struct {
	Base uint64
	Size uint64
}

// MemoryRegions walks every node named "memory" (or "memory@...") directly
// under the root and decodes its reg property into address/size pairs.
func (t *Tree) MemoryRegions() []MemoryRegion {
	var regions []MemoryRegion
	if t.Root == nil {
		return nil
	}
	for _, n := range t.Root.Children {
		if n.Name != "memory" && !strings.HasPrefix(n.Name, "memory@") {
			continue
		}
		reg, ok := n.Prop("reg")
		if !ok {
			continue
		}
		for i := 0; i+16 <= len(reg); i += 16 {
			regions = append(regions, MemoryRegion{
				Base: binary.BigEndian.Uint64(reg[i : i+8]),
				Size: binary.BigEndian.Uint64(reg[i+8 : i+16]),
			})
		}
	}
	return regions
}

// HartIDs returns the reg (hart ID) of every cpu@N node under /cpus, in
// document order.
func (t *Tree) HartIDs() []uint64 {
	if t.Root == nil {
		return nil
	}
	cpus := t.Root.Child("cpus")
	if cpus == nil {
		return nil
	}
	var ids []uint64
	for _, n := range cpus.Children {
		if !strings.HasPrefix(n.Name, "cpu@") {
			continue
		}
		reg, ok := n.Prop("reg")
		if !ok || len(reg) < 4 {
			continue
		}
		if len(reg) >= 8 {
			ids = append(ids, binary.BigEndian.Uint64(reg[len(reg)-8:]))
		} else {
			ids = append(ids, uint64(binary.BigEndian.Uint32(reg[len(reg)-4:])))
		}
	}
	return ids
}

// SoCDevice is a base/size pair for a peripheral found under /soc, used to
// wire PLIC and UART base addresses through to the driver trait contracts
// spec.md §6 leaves unimplemented.
type SoCDevice struct {
	Base uint64
	Size uint64
}

// SoCDevice looks up a node under /soc whose name has the given prefix
// (e.g. "plic@", "serial@", "uart@") and decodes its first reg pair.
func (t *Tree) SoCDevice(prefix string) (SoCDevice, bool) {
	if t.Root == nil {
		return SoCDevice{}, false
	}
	soc := t.Root.Child("soc")
	if soc == nil {
		return SoCDevice{}, false
	}
	for _, n := range soc.Children {
		if !strings.HasPrefix(n.Name, prefix) {
			continue
		}
		reg, ok := n.Prop("reg")
		if !ok || len(reg) < 16 {
			continue
		}
		return SoCDevice{
			Base: binary.BigEndian.Uint64(reg[0:8]),
			Size: binary.BigEndian.Uint64(reg[8:16]),
		}, true
	}
	return SoCDevice{}, false
}

// Bootargs returns /chosen's bootargs property, the kernel command line.
func (t *Tree) Bootargs() string {
	if t.Root == nil {
		return ""
	}
	chosen := t.Root.Child("chosen")
	if chosen == nil {
		return ""
	}
	v, ok := chosen.Prop("bootargs")
	if !ok {
		return ""
	}
	return strings.TrimRight(string(v), "\x00")
}

// CommandLine is the decoded set of kernel parameters this kernel
// recognizes out of a bootargs string (spec.md's supplemented cmdline
// parsing: root=, init=, console=).
type CommandLine struct {
	Root    string
	Init    string
	Console string
}

// ParseCommandLine splits a bootargs string of whitespace-separated
// key=value tokens and picks out the parameters the boot sequence consults.
// Unrecognized tokens are ignored, matching the kernel's tolerant-of-unknown-
// options convention.
func ParseCommandLine(bootargs string) CommandLine {
	cmd := CommandLine{
		Root:    "/dev/vda",
		Init:    "/sbin/init",
		Console: "ttyS0",
	}
	for _, tok := range strings.Fields(bootargs) {
		key, value, found := strings.Cut(tok, "=")
		if !found {
			continue
		}
		switch key {
		case "root":
			cmd.Root = value
		case "init":
			cmd.Init = value
		case "console":
			cmd.Console = value
		}
	}
	return cmd
}
