package dynlibutils

import (
	"testing"
	"unsafe"
)

func newTestModule(data []byte, sectionName string) *ModuleImage {
	m := newModuleImage()
	section := Section{Name: sectionName, Base: AddressOf(unsafe.Pointer(&data[0])), Size: uintptr(len(data))}
	m.sections = []Section{section}
	m.execSection = section
	return m
}

func TestSignatureHandleFind(t *testing.T) {
	data := []byte{0x00, 0x00, 0x48, 0x8B, 0x05, 0x11, 0x22, 0x33, 0x44}
	m := newTestModule(data, ".text")

	handle := m.Signature(ParsePattern("48 8B 05 ?? ?? ?? ??"))
	addr := handle.Find()
	want := m.execSection.Base.AddUnsigned(2)
	if addr != want {
		t.Errorf("Find() = %v, want %v", addr, want)
	}
}

func TestSignatureHandleOffsetFind(t *testing.T) {
	data := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	m := newTestModule(data, ".text")

	handle := m.Signature(ParsePattern("CC"))
	addr := handle.OffsetFind(1)
	want := m.execSection.Base.AddUnsigned(2).Offset(1)
	if addr != want {
		t.Errorf("OffsetFind(1) = %v, want %v", addr, want)
	}
}

func TestSignatureHandleFindAll(t *testing.T) {
	data := []byte{0x90, 0xCC, 0x90, 0xCC, 0x90}
	m := newTestModule(data, ".text")

	handle := m.Signature(ParsePattern("CC"))
	var matches []AddressValue
	count := handle.FindAll(func(index int, match AddressValue) bool {
		if index != len(matches) {
			t.Errorf("callback index = %d, want %d", index, len(matches))
		}
		matches = append(matches, match)
		return true
	})
	if count != 2 {
		t.Fatalf("FindAll returned count %d, want 2", count)
	}
	if len(matches) != 2 {
		t.Fatalf("callback invoked %d times, want 2", len(matches))
	}
}

func TestSignatureHandleFindAllStopsEarly(t *testing.T) {
	data := []byte{0xCC, 0x90, 0xCC, 0x90, 0xCC}
	m := newTestModule(data, ".text")

	handle := m.Signature(ParsePattern("CC"))
	count := handle.FindAll(func(index int, match AddressValue) bool {
		return false
	})
	if count != 1 {
		t.Fatalf("FindAll returned count %d, want 1 after early stop", count)
	}
}

func TestSignatureHandleFindAllNonOverlapping(t *testing.T) {
	// "CC CC" against 0xCC 0xCC 0xCC 0xCC must not find an overlapping
	// match starting at index 1; the stride advances by the pattern's
	// own length, not by one byte.
	data := []byte{0xCC, 0xCC, 0xCC, 0xCC}
	m := newTestModule(data, ".text")

	handle := m.Signature(ParsePattern("CC CC"))
	var matches []AddressValue
	handle.FindAll(func(index int, match AddressValue) bool {
		matches = append(matches, match)
		return true
	})
	if len(matches) != 2 {
		t.Fatalf("FindAll found %d matches, want 2 non-overlapping", len(matches))
	}
	if matches[1] != matches[0].Add(2) {
		t.Errorf("second match at %v, want %v (non-overlapping)", matches[1], matches[0].Add(2))
	}
}

func TestSignatureHandleFindNoMatch(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	m := newTestModule(data, ".text")

	handle := m.Signature(ParsePattern("FF FF"))
	if addr := handle.Find(); addr.Valid() {
		t.Errorf("expected no match, got %v", addr)
	}
	if got := handle.OffsetFind(1); got.Valid() {
		t.Errorf("OffsetFind on no-match should be invalid, got %v", got)
	}
}

func TestSignatureHandleIn(t *testing.T) {
	data := []byte{0x01, 0x02}
	other := []byte{0xAA, 0xBB}
	m := newTestModule(data, ".text")
	otherSection := Section{Name: ".other", Base: AddressOf(unsafe.Pointer(&other[0])), Size: uintptr(len(other))}

	handle := m.Signature(ParsePattern("AA BB")).In(otherSection)
	addr := handle.Find()
	if addr != otherSection.Base {
		t.Errorf("In() did not redirect scan: Find() = %v, want %v", addr, otherSection.Base)
	}
}

func TestModuleSectionByNameAndExecutableSection(t *testing.T) {
	data := []byte{0, 0, 0, 0}
	m := newTestModule(data, ".text")
	if got := m.SectionByName(".text"); got.Base != m.execSection.Base {
		t.Error("SectionByName(\".text\") should return the executable section")
	}
	if got := m.SectionByName(".nope"); got.Valid() {
		t.Error("SectionByName on a missing section should be invalid")
	}
}
