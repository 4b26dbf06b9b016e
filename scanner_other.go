//go:build !amd64

package dynlibutils

import "unsafe"

// On non-amd64 targets (ARM64 etc.) there is no hand-rolled PCMPEQB/
// VPCMPEQB path, matching §4.4's "Algorithm (scalar / ARM fallback)" —
// hasAVX2/hasSSE2 are always false, so scanBytes always takes the
// scalar/runs branch. The cmpMask16/cmpMask32 seams still exist so
// scanner.go needs no build tags of its own.
func hasAVX2() bool { return false }
func hasSSE2() bool { return false }

func cmpMask16(unsafe.Pointer, unsafe.Pointer) uint32 { return 0 }
func cmpMask32(unsafe.Pointer, unsafe.Pointer) uint32 { return 0 }
