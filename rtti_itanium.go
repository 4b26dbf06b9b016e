package dynlibutils

import (
	"encoding/binary"
	"strconv"
)

// itaniumMangledName renders the std::type_info name Itanium compilers
// emit for an ordinary class name: the decimal length followed by the
// name itself (e.g. "CBaseEntity" -> "11CBaseEntity"), unless fullName
// requests the caller's string be used verbatim. Grounded on
// original_source/module.cpp's GetVirtualTableByName POSIX branch:
// `std::to_string(svTableName.length()) + std::string(svTableName)`.
func itaniumMangledName(className string, fullName bool) string {
	if fullName {
		return className
	}
	return strconv.Itoa(len(className)) + className
}

// candidateRODataSections lists the sections std::type_info name strings
// live in across common Itanium toolchains' section layouts.
func candidateRODataSections(m *ModuleImage) []Section {
	var out []Section
	for _, name := range []string{".rodata", ".data.rel.ro", ".data.rel.ro.local"} {
		if s := m.SectionByName(name); s.Valid() {
			out = append(out, s)
		}
	}
	return out
}

// candidateDataSections lists the sections that can hold pointers into
// rodata (type_info::name and vtable type_info slots alike) — the
// read-only-after-relocation and plain writable data sections ELF
// toolchains use for vtables and type_info objects.
func candidateDataSections(m *ModuleImage) []Section {
	var out []Section
	for _, name := range []string{".data.rel.ro", ".data.rel.ro.local", ".data", ".got", ".rodata"} {
		if s := m.SectionByName(name); s.Valid() {
			out = append(out, s)
		}
	}
	return out
}

func exactBytePattern(b []byte) Pattern {
	mask := make([]byte, len(b))
	for i := range mask {
		mask[i] = maskMatch
	}
	return Pattern{Bytes: b, Mask: mask}
}

// pointerPattern builds an 8-byte exact pattern matching a little-endian
// pointer literal equal to addr — used to find every place addr's value
// is stored as a pointer, i.e. every reference to it.
func pointerPattern(addr AddressValue) Pattern {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(addr))
	return exactBytePattern(buf)
}

// findAllOccurrences repeatedly re-scans section starting just past the
// previous hit, mirroring module.cpp's
// `while ((reference = FindPatternSIMD(..., reference, ...)))` loop that
// advances by re-supplying the last match as the next start.
func findAllOccurrences(section Section, pattern Pattern) []AddressValue {
	var matches []AddressValue
	start := section.Base
	for {
		addr := scanSection(section, pattern, start)
		if !addr.Valid() {
			return matches
		}
		matches = append(matches, addr)
		start = addr.Add(1)
		if start >= section.End() {
			return matches
		}
	}
}

func findTypeInfoNameAddress(m *ModuleImage, mangled string) AddressValue {
	pattern := exactBytePattern([]byte(mangled))
	for _, sect := range candidateRODataSections(m) {
		if addr := scanSection(sect, pattern, sect.Base); addr.Valid() {
			return addr
		}
	}
	return InvalidAddress
}

// findTypeInfoObject locates the std::type_info object whose name field
// points at nameAddr. The Itanium type_info layout is
// { void *vptr; const char *name; ... }, so the first 8-byte pointer
// reference to nameAddr found in a data section is that name field, and
// subtracting its own field offset (8) yields the type_info object's own
// address — the `referenceTypeName.Offset(-0x8)` step in module.cpp.
func findTypeInfoObject(m *ModuleImage, nameAddr AddressValue) AddressValue {
	pattern := pointerPattern(nameAddr)
	for _, sect := range candidateDataSections(m) {
		if addr := scanSection(sect, pattern, sect.Base); addr.Valid() {
			return addr.Add(-8)
		}
	}
	return InvalidAddress
}

// findItaniumVTable implements module.cpp's POSIX GetVirtualTableByName
// branch: locate the type_info object for className, then scan data
// sections for a pointer to it whose preceding word (offset_to_top) is
// zero — the primary-base fast path — returning the vtable address
// (typeinfo pointer's own address + 8, i.e. vtable slot 0).
func findItaniumVTable(m *ModuleImage, className string, fullName bool) (VirtualTableView, error) {
	mangled := itaniumMangledName(className, fullName)
	nameAddr := findTypeInfoNameAddress(m, mangled)
	if !nameAddr.Valid() {
		return VirtualTableView{}, errSectionNotFound
	}
	typeInfo := findTypeInfoObject(m, nameAddr)
	if !typeInfo.Valid() {
		return VirtualTableView{}, errSectionNotFound
	}

	pattern := pointerPattern(typeInfo)
	for _, sect := range candidateDataSections(m) {
		for _, ref := range findAllOccurrences(sect, pattern) {
			if Read[int64](ref.Add(-8)) == 0 {
				return VirtualTableView{Address: ref.Add(8), Kind: RTTIItanium, ClassName: className}, nil
			}
		}
	}
	return VirtualTableView{}, errSectionNotFound
}

// findAllItaniumVTables is the SPEC_FULL.md "scan all COLs" supplement:
// return every vtable (primary and secondary base-class subobjects alike)
// referencing className's type_info, instead of stopping at the first
// offset_to_top==0 primary.
func findAllItaniumVTables(m *ModuleImage, className string) ([]VirtualTableView, error) {
	mangled := itaniumMangledName(className, false)
	nameAddr := findTypeInfoNameAddress(m, mangled)
	if !nameAddr.Valid() {
		return nil, errSectionNotFound
	}
	typeInfo := findTypeInfoObject(m, nameAddr)
	if !typeInfo.Valid() {
		return nil, errSectionNotFound
	}

	pattern := pointerPattern(typeInfo)
	var views []VirtualTableView
	for _, sect := range candidateDataSections(m) {
		for _, ref := range findAllOccurrences(sect, pattern) {
			views = append(views, VirtualTableView{Address: ref.Add(8), Kind: RTTIItanium, ClassName: className})
		}
	}
	if len(views) == 0 {
		return nil, errSectionNotFound
	}
	return views, nil
}
