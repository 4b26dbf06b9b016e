//go:build amd64

package dynlibutils

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// hasAVX2/hasSSE2 drive §4.4's "Selection rule" and are grounded on
// golang.org/x/sys/cpu, the ecosystem-standard feature-detection package
// already present across the retrieved pack (see SPEC_FULL.md DOMAIN
// STACK).
func hasAVX2() bool { return cpu.X86.HasAVX2 }
func hasSSE2() bool { return cpu.X86.HasSSE2 }

//go:noescape
func cmpMask16Asm(data, pattern unsafe.Pointer) uint32

//go:noescape
func cmpMask32Asm(data, pattern unsafe.Pointer) uint32

// cmpMask16 performs a 16-byte PCMPEQB+PMOVMSKB compare (§4.4's SSE2
// algorithm, step 4: "cmp = pcmpeqb(load16(p), Pc[j]); m = pmovmskb(cmp)"),
// returning one set bit per matching byte position.
func cmpMask16(data, pattern unsafe.Pointer) uint32 { return cmpMask16Asm(data, pattern) }

// cmpMask32 is the AVX2 32-byte counterpart (§4.4's AVX2 algorithm).
func cmpMask32(data, pattern unsafe.Pointer) uint32 { return cmpMask32Asm(data, pattern) }
