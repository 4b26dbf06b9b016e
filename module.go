package dynlibutils

import "sync"

// OpenFlags is the abstract loader-flag set callers supply when opening a
// module (§4.5). Each flag is translated to OS-native bits by the
// platform-specific open path; the dlopen/LoadLibraryEx call itself is
// the out-of-scope "thin wrapper" spec.md §1 treats as an external
// collaborator — OpenFlags only documents its contract.
type OpenFlags uint16

const (
	OpenLazy          OpenFlags = 1 << 0 // resolve symbols lazily
	OpenNow           OpenFlags = 1 << 1 // resolve symbols immediately
	OpenGlobal        OpenFlags = 1 << 2 // symbols visible to later-loaded images
	OpenLocal         OpenFlags = 1 << 3 // symbols not visible to later-loaded images
	OpenNoDelete      OpenFlags = 1 << 4 // never actually unload
	OpenNoLoad        OpenFlags = 1 << 5 // handle-only; do not load if absent
	OpenAlteredSearch OpenFlags = 1 << 6 // alternate DLL search path (Windows)
	OpenAsDataFile    OpenFlags = 1 << 7 // map as a data/resource file (Windows)
	OpenRequireSigned OpenFlags = 1 << 8
	OpenIgnoreAuth    OpenFlags = 1 << 9
	OpenPinInMemory   OpenFlags = 1 << 10 // take a pinning reference in addition to the handle

	// OpenDefault matches spec.md §4.5: "Default = Lazy | Noload |
	// DontResolveDllReferences" (OpenNoLoad stands in for the latter on
	// non-Windows platforms, where it is simply "don't load a new image,
	// only look at what's resident").
	OpenDefault = OpenLazy | OpenNoLoad
)

// ModuleImage enumerates the sections of a mapped native image and resolves
// RTTI virtual tables and exported symbols within it (C6). One ModuleImage
// owns its own PatternScanner cache and Section list; both are immutable
// after construction except for the scanner's cache contents.
type ModuleImage struct {
	handle       nativeHandle
	path         string
	name         string
	base         AddressValue
	sections     []Section
	execSection  Section
	scanner      *PatternScanner
	lastErrorMu  sync.Mutex
	lastErrorStr string
}

// Sections returns the enumerated sections. The slice and its elements are
// immutable for the ModuleImage's lifetime (§3's Pin invariance).
func (m *ModuleImage) Sections() []Section { return m.sections }

// ExecutableSection returns the section named ".text" (PE/ELF) or
// "__text", the code section of the __TEXT segment (Mach-O), or an
// invalid Section if none was found.
func (m *ModuleImage) ExecutableSection() Section { return m.execSection }

// SectionByName returns the section with the given name, or an invalid
// Section if none matches.
func (m *ModuleImage) SectionByName(name string) Section {
	for _, s := range m.sections {
		if s.Name == name {
			return s
		}
	}
	return Section{}
}

// Base returns the module's base (load) address.
func (m *ModuleImage) Base() AddressValue { return m.base }

// Path returns the on-disk canonical path of the mapped image.
func (m *ModuleImage) Path() string { return m.path }

// Name returns the short module name (e.g. "libc.so.6", "kernel32.dll").
func (m *ModuleImage) Name() string { return m.name }

// Valid reports whether the module was successfully opened.
func (m *ModuleImage) Valid() bool { return m != nil && m.base.Valid() }

// LastError returns the platform diagnostic from the most recent loader
// failure (§7.2), or "" if none occurred.
func (m *ModuleImage) LastError() string {
	m.lastErrorMu.Lock()
	defer m.lastErrorMu.Unlock()
	return m.lastErrorStr
}

func (m *ModuleImage) setLastError(s string) {
	m.lastErrorMu.Lock()
	m.lastErrorStr = s
	m.lastErrorMu.Unlock()
}

// Scanner returns the PatternScanner bound to this module, used by
// SignatureHandle and FindVirtualTable.
func (m *ModuleImage) Scanner() *PatternScanner { return m.scanner }

func newModuleImage() *ModuleImage {
	return &ModuleImage{scanner: NewPatternScanner()}
}

// Scan is a convenience one-shot wrapper around m.Scanner().Scan against
// section (or the executable section if section is the zero value).
func (m *ModuleImage) Scan(pattern Pattern, section Section, start AddressValue) AddressValue {
	if !section.Valid() {
		section = m.execSection
	}
	return m.scanner.Scan(pattern, section, start)
}

// Signature binds pattern to this module as a SignatureHandle (C10).
func (m *ModuleImage) Signature(pattern Pattern) SignatureHandle {
	return SignatureHandle{module: m, pattern: pattern}
}
