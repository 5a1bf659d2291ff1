package fdt

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// fdtWriter is a minimal structure-block builder used only by tests, built
// the same way tinyrange-cc's FDTBuilder assembles a blob, but trimmed to
// exactly what these tests need to exercise the parser.
type fdtWriter struct {
	strings bytes.Buffer
	strOff  map[string]uint32
	structs bytes.Buffer
}

func newFDTWriter() *fdtWriter {
	return &fdtWriter{strOff: map[string]uint32{}}
}

func (w *fdtWriter) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.structs.Write(b[:])
}

func (w *fdtWriter) nameOffset(name string) uint32 {
	if off, ok := w.strOff[name]; ok {
		return off
	}
	off := uint32(w.strings.Len())
	w.strings.WriteString(name)
	w.strings.WriteByte(0)
	w.strOff[name] = off
	return off
}

func (w *fdtWriter) beginNode(name string) {
	w.u32(tokenBeginNode)
	w.structs.WriteString(name)
	w.structs.WriteByte(0)
	w.pad()
}

func (w *fdtWriter) endNode() { w.u32(tokenEndNode) }

func (w *fdtWriter) pad() {
	for w.structs.Len()%4 != 0 {
		w.structs.WriteByte(0)
	}
}

func (w *fdtWriter) prop(name string, value []byte) {
	w.u32(tokenProp)
	w.u32(uint32(len(value)))
	w.u32(w.nameOffset(name))
	w.structs.Write(value)
	w.pad()
}

func u64be(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func u32be(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func (w *fdtWriter) build() []byte {
	w.u32(tokenEnd)

	const headerSize = 40
	off := uint32(headerSize)
	rsvOff := off
	off += 16 // one empty (zero/zero) terminator entry
	structOff := off
	off += uint32(w.structs.Len())
	stringsOff := off

	var out bytes.Buffer
	hdr := make([]byte, headerSize)
	binary.BigEndian.PutUint32(hdr[0:4], magic)
	binary.BigEndian.PutUint32(hdr[4:8], off+uint32(w.strings.Len()))
	binary.BigEndian.PutUint32(hdr[8:12], structOff)
	binary.BigEndian.PutUint32(hdr[12:16], stringsOff)
	binary.BigEndian.PutUint32(hdr[16:20], rsvOff)
	binary.BigEndian.PutUint32(hdr[20:24], 17)
	binary.BigEndian.PutUint32(hdr[24:28], 16)
	binary.BigEndian.PutUint32(hdr[28:32], 0)
	binary.BigEndian.PutUint32(hdr[32:36], uint32(w.strings.Len()))
	binary.BigEndian.PutUint32(hdr[36:40], uint32(w.structs.Len()))
	out.Write(hdr)
	out.Write(make([]byte, 16))
	out.Write(w.structs.Bytes())
	out.Write(w.strings.Bytes())
	return out.Bytes()
}

func buildTestTree() []byte {
	w := newFDTWriter()
	w.beginNode("")
	w.prop("model", []byte("test,board\x00"))

	w.beginNode("memory@80000000")
	w.prop("device_type", []byte("memory\x00"))
	w.prop("reg", append(u64be(0x80000000), u64be(0x8000000)...))
	w.endNode()

	w.beginNode("cpus")
	w.beginNode("cpu@0")
	w.prop("reg", u32be(0))
	w.endNode()
	w.beginNode("cpu@1")
	w.prop("reg", u32be(1))
	w.endNode()
	w.endNode()

	w.beginNode("soc")
	w.beginNode("plic@c000000")
	w.prop("reg", append(u64be(0xc000000), u64be(0x600000)...))
	w.endNode()
	w.beginNode("uart@10000000")
	w.prop("reg", append(u64be(0x10000000), u64be(0x100)...))
	w.endNode()
	w.endNode()

	w.beginNode("chosen")
	w.prop("bootargs", []byte("root=/dev/vda2 console=ttyS1 init=/bin/shell\x00"))
	w.endNode()

	w.endNode() // root
	return w.build()
}

func TestParseRejectsBadMagic(t *testing.T) {
	if _, err := Parse([]byte{0, 1, 2, 3}); err == nil {
		t.Fatal("expected an error for a blob that isn't a valid FDT")
	}
}

func TestParseWalksNodesAndProperties(t *testing.T) {
	tree, err := Parse(buildTestTree())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tree.Root.Name != "" {
		t.Fatalf("root name = %q, want empty", tree.Root.Name)
	}
	model, ok := tree.Root.Prop("model")
	if !ok || string(model) != "test,board\x00" {
		t.Fatalf("model = %q, ok=%v", model, ok)
	}
}

func TestMemoryRegions(t *testing.T) {
	tree, err := Parse(buildTestTree())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	regions := tree.MemoryRegions()
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}
	if regions[0].Base != 0x80000000 || regions[0].Size != 0x8000000 {
		t.Fatalf("unexpected region: %+v", regions[0])
	}
}

func TestHartIDs(t *testing.T) {
	tree, err := Parse(buildTestTree())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ids := tree.HartIDs()
	if len(ids) != 2 || ids[0] != 0 || ids[1] != 1 {
		t.Fatalf("unexpected hart ids: %v", ids)
	}
}

func TestSoCDeviceLookup(t *testing.T) {
	tree, err := Parse(buildTestTree())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	plic, ok := tree.SoCDevice("plic@")
	if !ok || plic.Base != 0xc000000 || plic.Size != 0x600000 {
		t.Fatalf("plic lookup: %+v ok=%v", plic, ok)
	}
	uart, ok := tree.SoCDevice("uart@")
	if !ok || uart.Base != 0x10000000 {
		t.Fatalf("uart lookup: %+v ok=%v", uart, ok)
	}
	if _, ok := tree.SoCDevice("nonexistent@"); ok {
		t.Fatal("expected lookup of a missing device to fail")
	}
}

func TestBootargsAndCommandLineParsing(t *testing.T) {
	tree, err := Parse(buildTestTree())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	args := tree.Bootargs()
	cmd := ParseCommandLine(args)
	if cmd.Root != "/dev/vda2" || cmd.Console != "ttyS1" || cmd.Init != "/bin/shell" {
		t.Fatalf("unexpected command line: %+v (raw %q)", cmd, args)
	}
}

func TestParseCommandLineDefaultsOnUnrecognizedTokens(t *testing.T) {
	cmd := ParseCommandLine("quiet loglevel=3")
	if cmd.Root != "/dev/vda" || cmd.Init != "/sbin/init" || cmd.Console != "ttyS0" {
		t.Fatalf("expected defaults to survive unknown tokens, got %+v", cmd)
	}
}
