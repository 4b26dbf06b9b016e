//go:build windows

package dynlibutils

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// kernel32 VirtualQuery/ReadProcessMemory/WriteProcessMemory are resolved
// lazily via syscall.LazyDLL/LazyProc — golang.org/x/sys/windows does not
// wrap these three, so this keeps the teacher's own memprotect_win.go
// lazy-resolution shape (and the same shape used across the pack, e.g.
// kmeaw-zdrct's patcher-windows.go) for exactly the calls x/sys/windows
// doesn't cover, while VirtualProtect/CurrentProcess below use the typed
// x/sys/windows bindings the rest of the pack's Windows code reaches for.
var (
	kernel32            = syscall.NewLazyDLL("kernel32.dll")
	procVirtualQuery    = kernel32.NewProc("VirtualQuery")
	procReadProcessMem  = kernel32.NewProc("ReadProcessMemory")
	procWriteProcessMem = kernel32.NewProc("WriteProcessMemory")
)

type memoryBasicInformation struct {
	BaseAddress       uintptr
	AllocationBase    uintptr
	AllocationProtect uint32
	PartitionID       uint16
	RegionSize        uintptr
	State             uint32
	Protect           uint32
	Type              uint32
}

func osPageSize() uintptr {
	var si windows.SystemInfo
	windows.GetSystemInfo(&si)
	return uintptr(si.PageSize)
}

var protFlagsToWindows = map[ProtectionFlags]uint32{
	ProtNone:                        windows.PAGE_NOACCESS,
	ProtRead:                        windows.PAGE_READONLY,
	ProtWrite:                       windows.PAGE_READWRITE, // no write-only on Windows
	ProtRead | ProtWrite:            windows.PAGE_READWRITE,
	ProtExec:                        windows.PAGE_EXECUTE,
	ProtRead | ProtExec:             windows.PAGE_EXECUTE_READ,
	ProtWrite | ProtExec:            windows.PAGE_EXECUTE_READWRITE,
	ProtRead | ProtWrite | ProtExec: windows.PAGE_EXECUTE_READWRITE,
}

func windowsToProtFlags(bits uint32) ProtectionFlags {
	switch bits & 0xff {
	case windows.PAGE_NOACCESS:
		return ProtNone
	case windows.PAGE_READONLY:
		return ProtRead
	case windows.PAGE_READWRITE, windows.PAGE_WRITECOPY:
		return ProtRead | ProtWrite
	case windows.PAGE_EXECUTE:
		return ProtExec
	case windows.PAGE_EXECUTE_READ:
		return ProtRead | ProtExec
	case windows.PAGE_EXECUTE_READWRITE, windows.PAGE_EXECUTE_WRITECOPY:
		return ProtRead | ProtWrite | ProtExec
	default:
		return ProtNone
	}
}

func currentProtection(addr AddressValue) ProtectionFlags {
	var mbi memoryBasicInformation
	ret, _, _ := procVirtualQuery.Call(uintptr(addr), uintptr(unsafe.Pointer(&mbi)), unsafe.Sizeof(mbi))
	if ret == 0 {
		return ProtUnset
	}
	return windowsToProtFlags(mbi.Protect)
}

// MemProtect translates newFlags to a PAGE_* constant and calls
// VirtualProtect over the page-aligned range — see spec.md §4.2's
// translation table ("each ProtectionFlags combination maps to exactly
// one PAGE_* constant").
func (osAccessor) MemProtect(addr AddressValue, n uintptr, newFlags ProtectionFlags) (ProtectionFlags, bool) {
	bits, ok := protFlagsToWindows[newFlags&(ProtRead|ProtWrite|ProtExec|ProtNone)]
	if !ok {
		return ProtUnset, false
	}

	base := pageAlignDown(addr)
	length := pageAlignLen(addr, n)

	var oldBits uint32
	err := windows.VirtualProtect(uintptr(base), length, bits, &oldBits)
	if err != nil {
		return ProtUnset, false
	}
	return windowsToProtFlags(oldBits), true
}

// Copy, SafeRead and SafeWrite go through ReadProcessMemory/
// WriteProcessMemory against the pseudo-handle of the current process
// rather than a raw memcpy: per spec.md §4.2, this "uses the OS-level
// process-memory-read primitive and retries with a shorter length on
// partial-copy" so an unmapped source/destination fails gracefully
// instead of crashing.
func (osAccessor) Copy(dst, src AddressValue, n uintptr) bool {
	ok, read := readProcessMemory(dst, src, n)
	return ok && read == n
}

func (osAccessor) SafeRead(dst, src AddressValue, n uintptr) (bool, uintptr) {
	return readProcessMemory(dst, src, n)
}

func (osAccessor) SafeWrite(dst, src AddressValue, n uintptr) (bool, uintptr) {
	return writeProcessMemory(dst, src, n)
}

func readProcessMemory(dst, src AddressValue, n uintptr) (ok bool, nRead uintptr) {
	proc := windows.CurrentProcess()
	length := n
	for length > 0 {
		var done uintptr
		ret, _, _ := procReadProcessMem.Call(
			uintptr(proc),
			uintptr(src),
			uintptr(dst.Ptr()),
			length,
			uintptr(unsafe.Pointer(&done)),
		)
		if ret != 0 {
			return true, done
		}
		length /= 2
	}
	return false, 0
}

func writeProcessMemory(dst, src AddressValue, n uintptr) (ok bool, nWritten uintptr) {
	proc := windows.CurrentProcess()
	length := n
	for length > 0 {
		var done uintptr
		ret, _, _ := procWriteProcessMem.Call(
			uintptr(proc),
			uintptr(dst),
			uintptr(src.Ptr()),
			length,
			uintptr(unsafe.Pointer(&done)),
		)
		if ret != 0 {
			return true, done
		}
		length /= 2
	}
	return false, 0
}
