package dynlibutils

import (
	"testing"
	"unsafe"
)

func TestAddressValueArithmetic(t *testing.T) {
	var base AddressValue = 0x1000

	if got := base.Add(0x10); got != 0x1010 {
		t.Errorf("Add(0x10) = %#x, want 0x1010", uintptr(got))
	}
	if got := base.Add(-0x10); got != 0xFF0 {
		t.Errorf("Add(-0x10) = %#x, want 0xFF0", uintptr(got))
	}
	if got := base.AddUnsigned(0x20); got != 0x1020 {
		t.Errorf("AddUnsigned(0x20) = %#x, want 0x1020", uintptr(got))
	}
	if got := base.Delta(AddressValue(0xF00)); got != 0x100 {
		t.Errorf("Delta = %d, want 0x100", got)
	}
}

func TestAddressValueValid(t *testing.T) {
	if InvalidAddress.Valid() {
		t.Error("InvalidAddress should not be Valid")
	}
	if !AddressValue(1).Valid() {
		t.Error("nonzero address should be Valid")
	}
}

func TestOffsetSelfAndDerefSelf(t *testing.T) {
	a := AddressValue(0x2000)
	a.OffsetSelf(0x10)
	if a != 0x2010 {
		t.Errorf("OffsetSelf left a = %#x, want 0x2010", uintptr(a))
	}

	var target uintptr = 0xdeadbeef
	ptrAddr := AddressOf(unsafe.Pointer(&target))
	var chain AddressValue = ptrAddr
	chain.DerefSelf(1, 0)
	if uintptr(chain) != target {
		t.Errorf("DerefSelf = %#x, want %#x", uintptr(chain), target)
	}
}

func TestReadAndAs(t *testing.T) {
	var v int32 = 123456
	addr := AddressOf(unsafe.Pointer(&v))
	if got := Read[int32](addr); got != v {
		t.Errorf("Read = %d, want %d", got, v)
	}
	if got := As[AddressValue](addr); got != addr {
		t.Errorf("As = %v, want %v", got, addr)
	}
}

func TestResolveRelative(t *testing.T) {
	// Lay out 5 bytes: E8 <rel32> representing a `call rel32`
	// instruction, where rel32 targets +0x20 past the next instruction.
	buf := make([]byte, 5)
	buf[0] = 0xE8
	putLE32(buf[1:], 0x20)

	self := AddressOf(unsafe.Pointer(&buf[0]))
	target := self.FollowNearCallDefault()
	want := self.Offset(5).Offset(0x20)
	if target != want {
		t.Errorf("FollowNearCallDefault = %v, want %v", target, want)
	}
}

func putLE32(b []byte, v int32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func TestDump(t *testing.T) {
	data := []byte{0x41, 0x42, 0x20, 0x00, 0xFF}
	addr := AddressOf(unsafe.Pointer(&data[0]))

	var lines []string
	n := addr.Dump(len(data), func(line string) { lines = append(lines, line) }, nil, 4)
	if n != 2 {
		t.Fatalf("Dump emitted %d lines, want 2", n)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
}

func TestAddressValueString(t *testing.T) {
	a := AddressValue(0xdeadbeef)
	if a.String() == "" {
		t.Error("String() should not be empty")
	}
}
