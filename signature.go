package dynlibutils

// SignatureHandle binds a Pattern to the ModuleImage it should be
// scanned against, letting call sites chain combinators instead of
// re-threading (module, section, pattern) through every call — the
// nearest Go shape to original_source/module.h's CMemory-returning
// fluent chain (Offset/.../GetPtr) after a single GetVirtualTableByName
// or FindPatternSIMD call.
type SignatureHandle struct {
	module  *ModuleImage
	pattern Pattern
	section Section
}

// In restricts the scan to section rather than the module's executable
// section, returning a new handle (SignatureHandle is a value type, so
// chaining never mutates a shared handle).
func (s SignatureHandle) In(section Section) SignatureHandle {
	s.section = section
	return s
}

func (s SignatureHandle) scanSection() Section {
	if s.section.Valid() {
		return s.section
	}
	return s.module.ExecutableSection()
}

// Find returns the first match's address, or InvalidAddress.
func (s SignatureHandle) Find() AddressValue {
	return s.module.Scan(s.pattern, s.scanSection(), InvalidAddress)
}

// FindFrom scans starting at or after start instead of the section base.
func (s SignatureHandle) FindFrom(start AddressValue) AddressValue {
	return s.module.Scan(s.pattern, s.scanSection(), start)
}

// OffsetFind returns Find() shifted by the signed offset off, for a
// pattern that matches a fixed distance before or after the address
// actually wanted (e.g. matching an instruction's opcode and reading a
// field next to it).
func (s SignatureHandle) OffsetFind(off int64) AddressValue {
	addr := s.Find()
	if !addr.Valid() {
		return InvalidAddress
	}
	return addr.Offset(off)
}

// DerefFind matches, then dereferences the result k times with stride
// off, per AddressValue.Deref.
func (s SignatureHandle) DerefFind(k int, off int64) AddressValue {
	addr := s.Find()
	if !addr.Valid() {
		return InvalidAddress
	}
	return addr.Deref(k, off)
}

// FollowNearCall matches, then resolves the `call rel32` at the match
// using the given opcode/next-instruction offsets.
func (s SignatureHandle) FollowNearCall(opOff, nextOff int64) AddressValue {
	addr := s.Find()
	if !addr.Valid() {
		return InvalidAddress
	}
	return addr.FollowNearCall(opOff, nextOff)
}

// FollowNearCallDefault calls FollowNearCall with the single-byte-opcode,
// four-byte-displacement E8-cd defaults.
func (s SignatureHandle) FollowNearCallDefault() AddressValue {
	return s.FollowNearCall(1, 5)
}

// FindAll enumerates every non-overlapping match in the scanned section,
// in ascending address order (§4.9): after each hit, the next search
// resumes at hit + pattern length, unlike the internal RTTI
// pointer-reference scan (findAllOccurrences), which advances by one byte
// to catch overlapping references. callback is called with the running
// index and the match address; FindAll stops early the first time
// callback returns false. Returns the number of matches enumerated.
func (s SignatureHandle) FindAll(callback func(index int, match AddressValue) bool) int {
	section := s.scanSection()
	if !section.Valid() {
		return 0
	}
	stride := int64(s.pattern.Len())
	if stride <= 0 {
		stride = 1
	}

	start := section.Base
	count := 0
	for {
		addr := scanSection(section, s.pattern, start)
		if !addr.Valid() {
			return count
		}
		keepGoing := callback(count, addr)
		count++
		if !keepGoing {
			return count
		}
		start = addr.Add(stride)
		if start >= section.End() {
			return count
		}
	}
}
