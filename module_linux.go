//go:build linux

package dynlibutils

/*
#define _GNU_SOURCE
#include <dlfcn.h>
#include <link.h>
#include <stdlib.h>
*/
import "C"

import (
	"debug/elf"
	"os"
	"path/filepath"
	"strings"
	"unsafe"
)

// nativeHandle is a dlopen handle on Linux. OpenByName/OpenByAddress never
// acquire one themselves (section data is read straight from the backing
// file on disk via debug/elf), but OpenByHandle and FindExport both go
// through the cgo dlfcn seam to accept/produce one, mirroring
// module_darwin.go's approach.
type nativeHandle = uintptr

// OpenByName locates an already-loaded shared object by matching the
// basename of its /proc/self/maps path (e.g. "libc.so.6"), generalizing
// kstenerud-go-subvert/symbols_elf.go's single-purpose ".text" +
// ".gopclntab" lookup into full section enumeration (§4.2/§4.5). flags is
// currently unused on Linux beyond documenting intent, since modules
// found this way are never loaded, only inspected (OpenNoLoad is always
// effectively in force).
func OpenByName(name string, flags OpenFlags) (*ModuleImage, error) {
	regions := readSelfMaps()
	var path string
	var base AddressValue
	for _, r := range regions {
		if r.path == "" || strings.HasPrefix(r.path, "[") {
			continue
		}
		if filepath.Base(r.path) == name {
			path = r.path
			base = r.start
			break
		}
	}
	if path == "" {
		return nil, errModuleNotFound
	}
	return openELFModule(path, base, name)
}

// OpenByAddress locates the module whose mapped range contains addr,
// per §4.2's "resolve an address back to its containing module" need.
func OpenByAddress(addr AddressValue) (*ModuleImage, error) {
	for _, r := range readSelfMaps() {
		if addr >= r.start && addr < r.end && r.path != "" && !strings.HasPrefix(r.path, "[") {
			return openELFModule(r.path, moduleLoadBase(r.path, readSelfMaps()), filepath.Base(r.path))
		}
	}
	return nil, errModuleNotFound
}

// OpenByHandle wraps a dlopen handle the caller already holds — spec.md
// §4.5's third opening path. The handle's backing path and load bias are
// recovered via dlinfo(RTLD_DI_LINKMAP), the same glibc extension the
// dynamic linker itself uses to walk loaded objects, then handed to
// openELFModule exactly as OpenByName/OpenByAddress are.
func OpenByHandle(handle nativeHandle, fallbackName string) (*ModuleImage, error) {
	var lm *C.struct_link_map
	if C.dlinfo(unsafe.Pointer(handle), C.RTLD_DI_LINKMAP, unsafe.Pointer(&lm)) != 0 || lm == nil {
		return nil, errModuleNotFound
	}
	path := C.GoString(lm.l_name)
	if path == "" {
		return nil, errModuleNotFound
	}
	name := fallbackName
	if name == "" {
		name = filepath.Base(path)
	}
	m, err := openELFModule(path, AddressValue(uintptr(lm.l_addr)), name)
	if err != nil {
		return nil, err
	}
	m.handle = handle
	return m, nil
}

// moduleLoadBase returns the lowest mapped start address across all
// regions backed by path, which is the module's load base for a
// multi-segment (PT_LOAD) shared object.
func moduleLoadBase(path string, regions []mapsRegion) AddressValue {
	var base AddressValue = InvalidAddress
	for _, r := range regions {
		if r.path == path && (base == InvalidAddress || r.start < base) {
			base = r.start
		}
	}
	return base
}

func openELFModule(path string, base AddressValue, name string) (*ModuleImage, error) {
	if name == "" {
		return nil, errEmptyModuleName
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	exe, err := elf.NewFile(f)
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
		m.sections = append(m.sections, Section{
			Name: sect.Name,
			Base: base.AddUnsigned(sect.Addr),
			Size: uintptr(sect.Size),
		})
	}
	m.execSection = m.SectionByName(".text")
	return m, nil
}

// FindVirtualTable resolves the Itanium RTTI virtual table for
// mangledClassName (§4.5's Itanium layout): scans .rodata/.data.rel.ro
// for a std::type_info whose name matches, then scans for a vtable
// slot[-1] pointing at it, preferring the offset_to_top==0 fast path.
func (m *ModuleImage) FindVirtualTable(mangledClassName string) (VirtualTableView, error) {
	return findItaniumVTable(m, mangledClassName, false)
}

// FindAllVirtualTables is the SPEC_FULL.md-supplemented "scan all COLs"
// variant: instead of stopping at the first offset_to_top==0 candidate,
// it returns every vtable in the module whose RTTI name matches,
// including secondary (non-zero offset_to_top) base-class subobjects.
func (m *ModuleImage) FindAllVirtualTables(mangledClassName string) ([]VirtualTableView, error) {
	return findAllItaniumVTables(m, mangledClassName)
}

// FindExport resolves an exported symbol's address via dlsym (§4.5
// "Symbol lookup"), dlopen'ing the module's own backing path with
// RTLD_NOLOAD so the lookup never adds a load where one wasn't already
// present, then dlclosing immediately after — the same shape OpenByName
// uses on Darwin. Returns InvalidAddress on miss (§7.1).
func (m *ModuleImage) FindExport(name string) AddressValue {
	if m.path == "" {
		return InvalidAddress
	}

	cpath := C.CString(m.path)
	defer C.free(unsafe.Pointer(cpath))
	handle := C.dlopen(cpath, C.int(C.RTLD_NOLOAD|C.RTLD_LAZY))
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
