package dynlibutils

import (
	"fmt"
	"strings"
	"unsafe"
)

// AddressValue is an opaque machine address in the calling process. All
// arithmetic on it is always defined; only Deref/Read/As actually touch
// memory, and those are unsafe on unmapped addresses — see memaddr.h's
// CMemory, which this type ports method-for-method.
type AddressValue uintptr

// InvalidAddress is the "not found" / "no value" sentinel used throughout
// this package (§7.1).
const InvalidAddress AddressValue = 0

// Valid reports whether the address is non-zero. It says nothing about
// whether the address is actually mapped or readable.
func (a AddressValue) Valid() bool { return a != InvalidAddress }

// Ptr reinterprets the address as an unsafe.Pointer.
func (a AddressValue) Ptr() unsafe.Pointer { return unsafe.Pointer(uintptr(a)) }

// AddressOf returns the AddressValue of an arbitrary Go pointer.
func AddressOf(p unsafe.Pointer) AddressValue { return AddressValue(uintptr(p)) }

// Add returns a+off for a signed offset.
func (a AddressValue) Add(off int64) AddressValue {
	if off < 0 {
		return a - AddressValue(-off)
	}
	return a + AddressValue(off)
}

// AddUnsigned returns a+off for an unsigned offset.
func (a AddressValue) AddUnsigned(off uint64) AddressValue { return a + AddressValue(off) }

// Offset is an alias for Add, named after memaddr.h's CMemory::Offset
// (supplemental feature: kept as its own name rather than folded away,
// since the original exposes both a value-returning and a mutating form).
func (a AddressValue) Offset(off int64) AddressValue { return a.Add(off) }

// OffsetSelf mutates the receiver in place and returns it, mirroring
// CMemory::OffsetSelf (used by module.cpp's `reference.OffsetSelf(0x4)`
// COL-scan loop; this package's own RTTI scan uses Add instead).
func (a *AddressValue) OffsetSelf(off int64) AddressValue {
	*a = a.Offset(off)
	return *a
}

// Delta returns the signed distance a-b.
func (a AddressValue) Delta(b AddressValue) int64 { return int64(a) - int64(b) }

// Less orders two addresses numerically.
func (a AddressValue) Less(b AddressValue) bool { return a < b }

// Deref reads the machine word at self+off, then repeats that k times,
// threading the result through each iteration. k=0 is the identity.
//
// Deref does not validate that any address along the chain is mapped;
// dereferencing unmapped memory is undefined, per spec.md §4.1.
func (a AddressValue) Deref(k int, off int64) AddressValue {
	cur := a
	for i := 0; i < k; i++ {
		cur = cur.Offset(off).readWord()
	}
	return cur
}

// DerefSelf is the mutating counterpart to Deref.
func (a *AddressValue) DerefSelf(k int, off int64) AddressValue {
	*a = a.Deref(k, off)
	return *a
}

func (a AddressValue) readWord() AddressValue {
	return AddressValue(*(*uintptr)(a.Ptr()))
}

// Read reinterprets the memory at a as a value of type T and returns a
// copy. Equivalent to memaddr.h's templated GetValue<T>.
func Read[T any](a AddressValue) T {
	return *(*T)(a.Ptr())
}

// As reinterprets the address itself (not the memory it points to) as T,
// for T convertible from uintptr — e.g. a function pointer type. Mirrors
// CMemory::RCast<T>/CCast<T>, collapsed into one generic form since Go has
// no separate reinterpret_cast/C-style-cast distinction for this case.
func As[T ~uintptr](a AddressValue) T { return T(a) }

// ResolveRelative computes self + nio + *(int32*)(self+ro): the address of
// an x86 relative operand's target, given the offset of the 32-bit
// displacement (ro) and the offset of the start of the next instruction
// (nio), both relative to self.
func (a AddressValue) ResolveRelative(registerOffset, nextInstructionOffset int64) AddressValue {
	disp := Read[int32](a.Offset(registerOffset))
	return a.Offset(nextInstructionOffset).Offset(int64(disp))
}

// ResolveRelativeSelf is the mutating counterpart to ResolveRelative.
func (a *AddressValue) ResolveRelativeSelf(registerOffset, nextInstructionOffset int64) AddressValue {
	*a = a.ResolveRelative(registerOffset, nextInstructionOffset)
	return *a
}

// FollowNearCall resolves the target of an `E8 cd` (call rel32) instruction
// at self. Defaults opOff=1, nextOff=5 correspond to the one-byte opcode
// followed by a 4-byte displacement.
func (a AddressValue) FollowNearCall(opOff, nextOff int64) AddressValue {
	return a.ResolveRelative(opOff, nextOff)
}

// FollowNearCallDefault calls FollowNearCall with the E8-cd defaults.
func (a AddressValue) FollowNearCallDefault() AddressValue {
	return a.FollowNearCall(1, 5)
}

// FollowNearCallSelf is the mutating counterpart to FollowNearCall.
func (a *AddressValue) FollowNearCallSelf(opOff, nextOff int64) AddressValue {
	*a = a.FollowNearCall(opOff, nextOff)
	return *a
}

// Dump produces a canonical hex+ASCII dump of size bytes starting at a,
// bytesPerLine bytes per line, calling emitLine for each rendered line.
// byteFormatter renders each byte's hex column entry; a nil byteFormatter
// defaults to "%02X " (§4.1's `dump(size, emit_line, byte_formatter,
// bytes_per_line)`). The ASCII column shows printable bytes (0x20-0x7e)
// verbatim and '.' otherwise; the final partial line is padded with
// spaces. Returns the number of lines emitted.
func (a AddressValue) Dump(size int, emitLine func(line string), byteFormatter func(b byte) string, bytesPerLine int) int {
	if bytesPerLine <= 0 {
		bytesPerLine = 16
	}
	if byteFormatter == nil {
		byteFormatter = func(b byte) string { return fmt.Sprintf("%02X ", b) }
	}
	data := unsafe.Slice((*byte)(a.Ptr()), size)
	lines := 0
	for off := 0; off < size; off += bytesPerLine {
		end := off + bytesPerLine
		if end > size {
			end = size
		}
		chunk := data[off:end]

		var hexPart strings.Builder
		var asciiPart strings.Builder
		for i := 0; i < bytesPerLine; i++ {
			if i < len(chunk) {
				hexPart.WriteString(byteFormatter(chunk[i]))
				b := chunk[i]
				if b >= 0x20 && b <= 0x7e {
					asciiPart.WriteByte(b)
				} else {
					asciiPart.WriteByte('.')
				}
			} else {
				hexPart.WriteString("   ")
				asciiPart.WriteByte(' ')
			}
		}
		emitLine(fmt.Sprintf("%08X  %s %s", uintptr(a)+uintptr(off), hexPart.String(), asciiPart.String()))
		lines++
	}
	return lines
}

func (a AddressValue) String() string {
	return fmt.Sprintf("0x%016X", uintptr(a))
}
