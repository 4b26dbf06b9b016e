//go:build windows

package dynlibutils

import "encoding/binary"

// msvcMangledName renders the decorated RTTI type-descriptor name MSVC
// emits for an ordinary class: ".?AV<name>@@", unless fullName requests
// the caller's string verbatim. Grounded on original_source/module.cpp's
// GetVirtualTableByName Windows branch:
// `".?AV" + std::string(svTableName) + "@@"`.
func msvcMangledName(className string, fullName bool) string {
	if fullName {
		return className
	}
	return ".?AV" + className + "@@"
}

// msvcNamePattern matches the decorated name followed by its NUL
// terminator, mirroring module.cpp's `std::string szMask(len+1, 'x')` —
// the extra mask byte pins the match to end exactly at the terminator, so
// a class whose name is a prefix of another's can't false-positive.
func msvcNamePattern(mangled string) Pattern {
	return exactBytePattern(append([]byte(mangled), 0x00))
}

// findMSVCVTable implements module.cpp's Windows GetVirtualTableByName:
// locate the type descriptor's decorated name in .data, compute its RVA,
// find the Complete Object Locator in .rdata referencing that RVA with
// signature==1 and vftableOffset==0 (primary base), then return the
// vtable immediately following the pointer to that COL.
func findMSVCVTable(m *ModuleImage, className string, fullName bool) (VirtualTableView, error) {
	dataSection := m.SectionByName(".data")
	rdataSection := m.SectionByName(".rdata")
	if !dataSection.Valid() || !rdataSection.Valid() {
		return VirtualTableView{}, errSectionNotFound
	}

	mangled := msvcMangledName(className, fullName)
	namePattern := msvcNamePattern(mangled)

	nameAddr := scanSection(dataSection, namePattern, dataSection.Base)
	if !nameAddr.Valid() {
		return VirtualTableView{}, errSectionNotFound
	}

	// Type Descriptor layout on x64: { void *pVFTable; void *spare;
	// char name[]; } — name starts at offset 0x10.
	typeDescriptor := nameAddr.Add(-0x10)
	typeDescriptorRVA := uint32(typeDescriptor.Delta(m.base))

	rvaBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(rvaBuf, typeDescriptorRVA)
	rvaPattern := exactBytePattern(rvaBuf)

	ref := rdataSection.Base
	for {
		ref = scanSection(rdataSection, rvaPattern, ref)
		if !ref.Valid() {
			return VirtualTableView{}, errSectionNotFound
		}

		// ref points at the Complete Object Locator's pTypeDescriptor
		// field (COL offset 0xC); signature lives at COL+0x0, the
		// vftable offset at COL+0x4.
		colStart := ref.Add(-0xC)
		if Read[int32](colStart) == 1 && Read[int32](colStart.Add(0x4)) == 0 {
			colPtr := findAllOccurrences(rdataSection, pointerPattern(colStart))
			if len(colPtr) > 0 {
				return VirtualTableView{Address: colPtr[0].Add(8), Kind: RTTIMSVC, ClassName: className}, nil
			}
		}
		ref = ref.Add(4)
		if ref >= rdataSection.End() {
			return VirtualTableView{}, errSectionNotFound
		}
	}
}

// findAllMSVCVTables is the "scan all COLs" supplement: return every
// vtable whose Complete Object Locator references className's type
// descriptor, not only the first signature==1/offset==0 primary.
func findAllMSVCVTables(m *ModuleImage, className string) ([]VirtualTableView, error) {
	dataSection := m.SectionByName(".data")
	rdataSection := m.SectionByName(".rdata")
	if !dataSection.Valid() || !rdataSection.Valid() {
		return nil, errSectionNotFound
	}

	mangled := msvcMangledName(className, false)
	namePattern := msvcNamePattern(mangled)

	nameAddr := scanSection(dataSection, namePattern, dataSection.Base)
	if !nameAddr.Valid() {
		return nil, errSectionNotFound
	}

	typeDescriptor := nameAddr.Add(-0x10)
	typeDescriptorRVA := uint32(typeDescriptor.Delta(m.base))

	rvaBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(rvaBuf, typeDescriptorRVA)
	rvaPattern := exactBytePattern(rvaBuf)

	var views []VirtualTableView
	for _, ref := range findAllOccurrences(rdataSection, rvaPattern) {
		colStart := ref.Add(-0xC)
		if Read[int32](colStart) != 1 {
			continue
		}
		for _, colPtr := range findAllOccurrences(rdataSection, pointerPattern(colStart)) {
			views = append(views, VirtualTableView{Address: colPtr.Add(8), Kind: RTTIMSVC, ClassName: className})
		}
	}
	if len(views) == 0 {
		return nil, errSectionNotFound
	}
	return views, nil
}
