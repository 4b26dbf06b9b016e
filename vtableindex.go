//go:build !windows

package dynlibutils

import "unsafe"

// ItaniumPMFIndex extracts a virtual-method's vtable slot index from the
// raw "ptr" field of an Itanium C++ ABI pointer-to-member-function, per
// spec.md §4.6's derivation rule: a PMF targeting a virtual method
// encodes `ptr = 1 + byte_offset_into_vtable` (the low bit tags it as a
// vtable-relative reference rather than a direct code address); a PMF
// targeting a non-virtual method stores the function's address directly,
// which is always even on every architecture this module targets
// (instructions are at least 2-byte aligned). ok is false for an even
// ptr, signaling "not a virtual dispatch — call it directly instead".
func ItaniumPMFIndex(ptr uintptr) (index int, ok bool) {
	if ptr&1 == 0 {
		return 0, false
	}
	byteOffset := ptr - 1
	return int(byteOffset / unsafe.Sizeof(uintptr(0))), true
}

// ItaniumPMFFromFunc extracts the raw "ptr" field from a Go value holding
// a pointer-to-member-function-shaped func, for callers that received one
// as an interface{} (e.g. captured from C++ via cgo) rather than as a
// bare uintptr. It reuses vtable.go's getFunctionAddress seam.
func ItaniumPMFFromFunc(pmf interface{}) (uintptr, error) {
	return getFunctionAddress(pmf)
}
