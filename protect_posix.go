//go:build !windows

package dynlibutils

import "syscall"

func osPageSize() uintptr { return uintptr(syscall.Getpagesize()) }

var protFlagsToPosix = map[ProtectionFlags]int{
	ProtUnset:  0,
	ProtNone:   syscall.PROT_NONE,
	ProtRead:   syscall.PROT_READ,
	ProtWrite:  syscall.PROT_WRITE,
	ProtExec:   syscall.PROT_EXEC,
	ProtRead | ProtWrite:          syscall.PROT_READ | syscall.PROT_WRITE,
	ProtRead | ProtExec:           syscall.PROT_READ | syscall.PROT_EXEC,
	ProtWrite | ProtExec:          syscall.PROT_WRITE | syscall.PROT_EXEC,
	ProtRead | ProtWrite | ProtExec: syscall.PROT_READ | syscall.PROT_WRITE | syscall.PROT_EXEC,
}

func posixToProtFlags(bits int) ProtectionFlags {
	var f ProtectionFlags
	if bits&syscall.PROT_READ != 0 {
		f |= ProtRead
	}
	if bits&syscall.PROT_WRITE != 0 {
		f |= ProtWrite
	}
	if bits&syscall.PROT_EXEC != 0 {
		f |= ProtExec
	}
	if f == ProtUnset {
		f = ProtNone
	}
	return f
}

// MemProtect sets protection on the page-aligned range covering [addr,
// addr+n) and returns the previous protection, resolved via
// currentProtection (platform-specific: /proc/self/maps on Linux, a
// best-effort guess on Darwin — see protect_linux.go/protect_darwin.go).
func (osAccessor) MemProtect(addr AddressValue, n uintptr, newFlags ProtectionFlags) (ProtectionFlags, bool) {
	old := currentProtection(addr)

	base := pageAlignDown(addr)
	length := pageAlignLen(addr, n)
	pageSize := PageSize()

	bits, ok := protFlagsToPosix[newFlags&(ProtRead|ProtWrite|ProtExec|ProtNone)]
	if !ok {
		return old, false
	}

	for pageStart := base; pageStart.Delta(base)+int64(pageSize) <= int64(length); pageStart = pageStart.AddUnsigned(uint64(pageSize)) {
		page := pageSlice(pageStart, pageSize)
		if err := syscall.Mprotect(page, bits); err != nil {
			return old, false
		}
	}
	return old, true
}

func pageSlice(addr AddressValue, n uintptr) []byte {
	return unsafeSlice(addr, n)
}
