package dynlibutils

import (
	"sync"
	"unsafe"
)

// ProtectionFlags is an abstract {R,W,X,N,S,P} protection set, ported from
// kstenerud-go-subvert's memProtect type but widened to spec.md §3's full
// flag vocabulary (UNSET, N distinct from "not observed", S, P).
type ProtectionFlags uint8

const (
	// ProtUnset means "not observed" — distinct from ProtNone, which is an
	// explicit, observed "no access".
	ProtUnset ProtectionFlags = 0
	ProtRead  ProtectionFlags = 1 << 0
	ProtWrite ProtectionFlags = 1 << 1
	ProtExec  ProtectionFlags = 1 << 2
	// ProtNone is the explicit "no access" marker.
	ProtNone ProtectionFlags = 1 << 3
	// ProtShared marks a shared (as opposed to private/copy-on-write) mapping.
	ProtShared ProtectionFlags = 1 << 4
	// ProtPrivate marks a private mapping.
	ProtPrivate ProtectionFlags = 1 << 5

	ProtRWX ProtectionFlags = ProtRead | ProtWrite | ProtExec
)

// Has reports whether all bits of want are set in f ("contains").
func (f ProtectionFlags) Has(want ProtectionFlags) bool { return f&want == want }

// Observed reports whether f represents an actual observation (as opposed
// to ProtUnset).
func (f ProtectionFlags) Observed() bool { return f != ProtUnset }

func (f ProtectionFlags) String() string {
	if f == ProtUnset {
		return "UNSET"
	}
	if f.Has(ProtNone) {
		return "N"
	}
	s := ""
	if f.Has(ProtRead) {
		s += "R"
	}
	if f.Has(ProtWrite) {
		s += "W"
	}
	if f.Has(ProtExec) {
		s += "X"
	}
	if f.Has(ProtShared) {
		s += "S"
	}
	if f.Has(ProtPrivate) {
		s += "P"
	}
	if s == "" {
		return "N"
	}
	return s
}

// Accessor groups the in-process memory primitives that may fail
// gracefully instead of crashing the process (§4.2): Copy, SafeRead,
// SafeWrite, MemProtect. The platform files implement these as methods of
// osAccessor; Accessor is the seam ScopedProtector is written against
// (newScopedProtectorWith takes one), so tests can substitute a fake.
type Accessor interface {
	// Copy performs a straight byte copy of n bytes from src to dst. It
	// must not panic; on platforms that can detect an unmapped source it
	// returns false instead.
	Copy(dst, src AddressValue, n uintptr) bool
	// SafeRead copies up to n bytes from src into dst, clamping to
	// whatever is actually mapped and readable, and reports how many
	// bytes were actually read.
	SafeRead(dst, src AddressValue, n uintptr) (ok bool, nRead uintptr)
	// SafeWrite is the symmetric counterpart to SafeRead.
	SafeWrite(dst, src AddressValue, n uintptr) (ok bool, nWritten uintptr)
	// MemProtect sets protection on the page-aligned range covering
	// [addr, addr+n) to newFlags and returns the previous protection.
	MemProtect(addr AddressValue, n uintptr, newFlags ProtectionFlags) (oldFlags ProtectionFlags, ok bool)
}

// defaultAccessor is the process-wide Accessor backing the package-level
// helpers and ScopedProtector's default construction path.
var defaultAccessor Accessor = osAccessor{}

var pageSizeOnce sync.Once
var cachedPageSize uintptr

// PageSize returns the OS page size, used for page-alignment throughout
// C2/C3.
func PageSize() uintptr {
	pageSizeOnce.Do(func() { cachedPageSize = osPageSize() })
	return cachedPageSize
}

func pageAlignDown(addr AddressValue) AddressValue {
	mask := AddressValue(PageSize() - 1)
	return addr &^ mask
}

func pageAlignLen(addr AddressValue, n uintptr) uintptr {
	aligned := pageAlignDown(addr)
	end := addr.AddUnsigned(uint64(n))
	pageSize := PageSize()
	total := uintptr(end.Delta(aligned))
	return (total + pageSize - 1) &^ (pageSize - 1)
}

// osAccessor is the real, platform-backed Accessor implementation. Its
// methods are implemented in protect_windows.go on Windows, and elsewhere
// in protect_posix.go (MemProtect) plus protect_linux.go/protect_darwin.go
// (Copy, SafeRead, SafeWrite).
type osAccessor struct{}

// unsafeSlice views n bytes starting at addr as a []byte without copying.
func unsafeSlice(addr AddressValue, n uintptr) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(addr.Ptr()), n)
}
