//go:build darwin

package dynlibutils

/*
#include <dlfcn.h>
#include <stdlib.h>
*/
import "C"

import (
	"debug/macho"
	"os"
	"path/filepath"
	"unsafe"
)

// nativeHandle is the dlopen/dlopen-equivalent handle on Darwin. There is
// no pure-Go path to dyld internals, so — exactly as
// original_source/src/module_apple.cpp does — this file goes through cgo
// to call dlopen/dladdr/dlsym/dlclose directly.
type nativeHandle = uintptr

// OpenByName resolves an already-loaded dylib/framework by name via
// dlopen(name, RTLD_NOLOAD), mirroring module_apple.cpp's InitFromName:
// "Don't actually load the library, just check if it's already loaded
// and if it is then return the handle."
func OpenByName(name string, flags OpenFlags) (*ModuleImage, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	mode := C.int(C.RTLD_NOLOAD | C.RTLD_LAZY)
	handle := C.dlopen(cname, mode)
	if handle == nil {
		return nil, errModuleNotFound
	}
	defer C.dlclose(handle)

	// The handle only confirms that the image is resident; the path and
	// sections come from openMachOModuleFromHandle, which does not recover
	// the image's load base.
	return openMachOModuleFromHandle(handle, name)
}

// OpenByAddress resolves the module whose mapped image contains addr, via
// dladdr — module_apple.cpp's InitFromMemory.
func OpenByAddress(addr AddressValue) (*ModuleImage, error) {
	var info C.Dl_info
	if C.dladdr(unsafe.Pointer(uintptr(addr)), &info) == 0 {
		return nil, errModuleNotFound
	}
	path := C.GoString(info.dli_fname)
	base := AddressValue(uintptr(unsafe.Pointer(info.dli_fbase)))
	return openMachOModule(path, base, filepath.Base(path))
}

// OpenByHandle wraps a dlopen handle the caller already holds — spec.md
// §4.5's third opening path ("by native handle"), alongside OpenByName and
// OpenByAddress. Ownership of the handle stays with the caller; this
// module never calls dlclose on a handle it did not dlopen itself.
func OpenByHandle(handle nativeHandle, name string) (*ModuleImage, error) {
	return openMachOModuleFromHandle(unsafe.Pointer(handle), name)
}

func openMachOModuleFromHandle(handle unsafe.Pointer, name string) (*ModuleImage, error) {
	// The on-disk path is looked up by resolveLoadedDylibPath (name as
	// given, then a few standard directories). If it is found, the
	// sections are read from that file with an invalid base, so each
	// section's Base is its unslid file address rather than its load
	// address, Valid() reports false, and the handle is not retained. If
	// it is not found, the result records only name and handle and has no
	// sections.
	m := newModuleImage()
	m.name = name
	m.path = name
	m.handle = nativeHandle(uintptr(handle))
	if path, err := resolveLoadedDylibPath(name); err == nil {
		return openMachOModule(path, InvalidAddress, name)
	}
	return m, nil
}

// resolveLoadedDylibPath checks the handful of locations dyld commonly
// resolves a bare dylib name against; this is best-effort and deliberately
// narrow rather than reimplementing dyld's full search algorithm.
func resolveLoadedDylibPath(name string) (string, error) {
	candidates := []string{
		name,
		"/usr/lib/" + name,
		"/usr/local/lib/" + name,
		"/System/Library/Frameworks/" + name,
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", errModuleNotFound
}

func openMachOModule(path string, base AddressValue, name string) (*ModuleImage, error) {
	if name == "" {
		return nil, errEmptyModuleName
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	exe, err := macho.NewFile(f)
	if err != nil {
		return nil, err
	}
	defer exe.Close()

	m := newModuleImage()
	m.path = path
	m.name = name
	m.base = base

	for _, sect := range exe.Sections {
		if sect.Addr == 0 {
			continue
		}
		sectBase := base
		if sectBase.Valid() {
			sectBase = base.AddUnsigned(sect.Addr)
		} else {
			sectBase = AddressValue(sect.Addr)
		}
		m.sections = append(m.sections, Section{
			Name: sect.Name,
			Base: sectBase,
			Size: uintptr(sect.Size),
		})
	}
	m.execSection = m.SectionByName("__text")
	return m, nil
}

// FindVirtualTable is left unimplemented on Darwin, exactly as
// original_source/src/module_apple.cpp's own GetVirtualTableByName is
// marked "// TODO: Implement" — resolving libc++'s Itanium-family RTTI
// layout against a loaded Mach-O image needs __TEXT,__const /
// __DATA,__const scanning this module does not attempt; see DESIGN.md's
// Open Question decision.
func (m *ModuleImage) FindVirtualTable(mangledClassName string) (VirtualTableView, error) {
	return VirtualTableView{}, errSectionNotFound
}

// FindAllVirtualTables shares FindVirtualTable's Darwin limitation.
func (m *ModuleImage) FindAllVirtualTables(mangledClassName string) ([]VirtualTableView, error) {
	return nil, errSectionNotFound
}

// FindExport resolves an exported symbol's address via dlsym (§4.5
// "Symbol lookup"), mirroring OpenByName's own "dlopen(RTLD_NOLOAD), use,
// dlclose" shape: the lookup never keeps the library loaded any longer
// than dlsym itself needs it. Returns InvalidAddress on miss (§7.1).
func (m *ModuleImage) FindExport(name string) AddressValue {
	target := m.path
	if target == "" {
		target = m.name
	}
	if target == "" {
		return InvalidAddress
	}

	ctarget := C.CString(target)
	defer C.free(unsafe.Pointer(ctarget))
	handle := C.dlopen(ctarget, C.int(C.RTLD_NOLOAD|C.RTLD_LAZY))
	if handle == nil {
		return InvalidAddress
	}
	defer C.dlclose(handle)

	csym := C.CString(name)
	defer C.free(unsafe.Pointer(csym))
	addr := C.dlsym(handle, csym)
	if addr == nil {
		return InvalidAddress
	}
	return AddressOf(addr)
}
