package dynlibutils

import (
	"encoding/binary"
	"testing"
	"unsafe"
)

func TestItaniumMangledName(t *testing.T) {
	if got := itaniumMangledName("Widget", false); got != "6Widget" {
		t.Errorf("itaniumMangledName = %q, want %q", got, "6Widget")
	}
	if got := itaniumMangledName("raw", true); got != "raw" {
		t.Errorf("itaniumMangledName(fullName) = %q, want %q", got, "raw")
	}
}

func TestFindAllOccurrences(t *testing.T) {
	data := []byte{0xAA, 0xBB, 0xAA, 0xBB, 0xAA, 0xBB}
	section := sectionOver(data)
	pattern := ParsePattern("AA BB")

	matches := findAllOccurrences(section, pattern)
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	for i, m := range matches {
		want := section.Base.AddUnsigned(uint64(i * 2))
		if m != want {
			t.Errorf("match[%d] = %v, want %v", i, m, want)
		}
	}
}

// buildFakeItaniumLayout lays out a synthetic Itanium type_info +
// primary-base vtable entry in ordinary Go memory, mirroring the
// relationships findItaniumVTable expects:
//
//	rodata: "<len><ClassName>" (the decorated type_info name)
//	data[0:8]   typeinfo.vptr (unused)
//	data[8:16]  typeinfo.name  -> &rodata[0]
//	data[16:24] offset_to_top  == 0
//	data[24:32] vtable[-1]     -> &data[0]   (pointer to the typeinfo object)
//	data[32:40] vtable[0]      == sentinel method pointer
func buildFakeItaniumLayout(className string, methodPtr uintptr) (rodata, data []byte) {
	mangled := itaniumMangledName(className, false)
	rodata = []byte(mangled)
	data = make([]byte, 40)

	nameAddr := uint64(uintptr(unsafe.Pointer(&rodata[0])))
	binary.LittleEndian.PutUint64(data[8:16], nameAddr)
	binary.LittleEndian.PutUint64(data[16:24], 0)

	typeInfoAddr := uint64(uintptr(unsafe.Pointer(&data[0])))
	binary.LittleEndian.PutUint64(data[24:32], typeInfoAddr)
	binary.LittleEndian.PutUint64(data[32:40], uint64(methodPtr))
	return rodata, data
}

func TestFindItaniumVTableEndToEnd(t *testing.T) {
	rodata, data := buildFakeItaniumLayout("Widget", 0x1234)

	m := newModuleImage()
	m.sections = []Section{
		{Name: ".rodata", Base: AddressOf(unsafe.Pointer(&rodata[0])), Size: uintptr(len(rodata))},
		{Name: ".data", Base: AddressOf(unsafe.Pointer(&data[0])), Size: uintptr(len(data))},
	}

	view, err := findItaniumVTable(m, "Widget", false)
	if err != nil {
		t.Fatalf("findItaniumVTable: %v", err)
	}

	wantAddr := AddressOf(unsafe.Pointer(&data[32]))
	if view.Address != wantAddr {
		t.Errorf("view.Address = %v, want %v", view.Address, wantAddr)
	}
	if view.Kind != RTTIItanium {
		t.Errorf("view.Kind = %v, want RTTIItanium", view.Kind)
	}
	if got := view.Slot(0); uintptr(got) != 0x1234 {
		t.Errorf("Slot(0) = %#x, want 0x1234", uintptr(got))
	}
}

func TestFindItaniumVTableNotFound(t *testing.T) {
	rodata := make([]byte, 16)
	data := make([]byte, 16)
	m := newModuleImage()
	m.sections = []Section{
		{Name: ".rodata", Base: AddressOf(unsafe.Pointer(&rodata[0])), Size: uintptr(len(rodata))},
		{Name: ".data", Base: AddressOf(unsafe.Pointer(&data[0])), Size: uintptr(len(data))},
	}
	if _, err := findItaniumVTable(m, "DoesNotExist", false); err != errSectionNotFound {
		t.Errorf("expected errSectionNotFound, got %v", err)
	}
}
