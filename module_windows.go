//go:build windows

package dynlibutils

import (
	"debug/pe"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// nativeHandle is an HMODULE on Windows.
type nativeHandle = windows.Handle

var (
	kernel32Mod          = syscall.NewLazyDLL("kernel32.dll")
	procGetModuleHandleW = kernel32Mod.NewProc("GetModuleHandleW")
	procGetModuleFileNW  = kernel32Mod.NewProc("GetModuleFileNameW")
	procGetProcAddress   = kernel32Mod.NewProc("GetProcAddress")
)

// OpenByName resolves an already-loaded module by its base name (e.g.
// "kernel32.dll") via GetModuleHandleW, matching spec.md §4.5's "open by
// name" path and OpenDefault's Noload semantics: this never loads a new
// image, it only inspects one already resident.
func OpenByName(name string, flags OpenFlags) (*ModuleImage, error) {
	namePtr, err := syscall.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}
	ret, _, _ := procGetModuleHandleW.Call(uintptr(unsafe.Pointer(namePtr)))
	if ret == 0 {
		return nil, errModuleNotFound
	}
	handle := windows.Handle(ret)
	return openPEModule(handle, name)
}

// OpenByAddress resolves the module whose mapped range contains addr via
// GetModuleHandleExW(GET_MODULE_HANDLE_EX_FLAG_FROM_ADDRESS, ...).
func OpenByAddress(addr AddressValue) (*ModuleImage, error) {
	const getModuleHandleExFlagFromAddress = 0x00000004
	var handle windows.Handle
	err := windows.GetModuleHandleEx(getModuleHandleExFlagFromAddress, (*uint16)(addr.Ptr()), &handle)
	if err != nil {
		return nil, errModuleNotFound
	}
	return openPEModule(handle, "")
}

// OpenByHandle wraps an HMODULE the caller already holds — spec.md §4.5's
// third opening path, alongside OpenByName and OpenByAddress. Unlike
// those two, it is handed the handle directly rather than resolving one.
func OpenByHandle(handle nativeHandle, fallbackName string) (*ModuleImage, error) {
	return openPEModule(handle, fallbackName)
}

func moduleFilePath(handle windows.Handle) (string, error) {
	buf := make([]uint16, 4096)
	ret, _, _ := procGetModuleFileNW.Call(
		uintptr(handle),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
	)
	if ret == 0 {
		return "", errModuleNotFound
	}
	return syscall.UTF16ToString(buf[:ret]), nil
}

func openPEModule(handle windows.Handle, fallbackName string) (*ModuleImage, error) {
	path, err := moduleFilePath(handle)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)
	if name == "" {
		name = fallbackName
	}
	if name == "" {
		return nil, errEmptyModuleName
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	exe, err := pe.NewFile(f)
	if err != nil {
		return nil, err
	}
	defer exe.Close()

	base := AddressValue(uintptr(handle))

	m := newModuleImage()
	m.path = path
	m.name = name
	m.base = base
	m.handle = handle

	for _, sect := range exe.Sections {
		if sect.VirtualAddress == 0 {
			continue
		}
		m.sections = append(m.sections, Section{
			Name: strings.TrimRight(sect.Name, "\x00"),
			Base: base.AddUnsigned(uint64(sect.VirtualAddress)),
			Size: uintptr(sect.Size),
		})
	}
	m.execSection = m.SectionByName(".text")
	return m, nil
}

// FindVirtualTable resolves the MSVC Complete Object Locator chain for
// className (§4.5's Windows/MSVC layout): locate the decorated type
// descriptor name in .data, follow its RVA reference in .rdata to an
// RTTI Object Locator with signature==1 and offset==0 (the primary-base
// fast path), then return the vtable directly following it.
func (m *ModuleImage) FindVirtualTable(mangledClassName string) (VirtualTableView, error) {
	return findMSVCVTable(m, mangledClassName, false)
}

// FindAllVirtualTables is the SPEC_FULL.md "scan all COLs" supplement,
// returning every Complete Object Locator referencing className's type
// descriptor, including non-zero-offset secondary base subobjects.
func (m *ModuleImage) FindAllVirtualTables(mangledClassName string) ([]VirtualTableView, error) {
	return findAllMSVCVTables(m, mangledClassName)
}

// FindExport resolves an exported symbol's address via GetProcAddress
// (§4.5 "Symbol lookup"). Returns InvalidAddress on miss (§7.1).
func (m *ModuleImage) FindExport(name string) AddressValue {
	addr, err := windows.GetProcAddress(windows.Handle(m.handle), name)
	if err != nil {
		return InvalidAddress
	}
	return AddressValue(addr)
}

// FindExportByOrdinal resolves an export by its ordinal rather than its
// name (SPEC_FULL.md's supplemented "export-by-ordinal" feature), using
// GetProcAddress's own MAKEINTRESOURCE-style convention: when the high
// word of lpProcName is zero, GetProcAddress treats the low word as an
// ordinal instead of a string pointer. x/sys/windows.GetProcAddress only
// exposes the by-name form, so this goes through the raw LazyProc the
// same way moduleFilePath does for GetModuleFileNameW.
func (m *ModuleImage) FindExportByOrdinal(ordinal uint16) AddressValue {
	ret, _, _ := procGetProcAddress.Call(uintptr(m.handle), uintptr(ordinal))
	if ret == 0 {
		return InvalidAddress
	}
	return AddressValue(ret)
}
