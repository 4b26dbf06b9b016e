//go:build linux

package dynlibutils

import "testing"

func TestModuleLoadBase(t *testing.T) {
	regions := []mapsRegion{
		{start: 0x1000, end: 0x2000, path: "/lib/libfoo.so"},
		{start: 0x500, end: 0x800, path: "/lib/libfoo.so"},
		{start: 0x3000, end: 0x4000, path: "/lib/libbar.so"},
	}
	if got := moduleLoadBase("/lib/libfoo.so", regions); got != 0x500 {
		t.Errorf("moduleLoadBase = %#x, want 0x500", uintptr(got))
	}
	if got := moduleLoadBase("/lib/missing.so", regions); got != InvalidAddress {
		t.Errorf("moduleLoadBase(missing) = %#x, want InvalidAddress", uintptr(got))
	}
}

func TestOpenByNameMissingModule(t *testing.T) {
	if _, err := OpenByName("definitely-not-a-real-module.so", OpenDefault); err != errModuleNotFound {
		t.Errorf("OpenByName(missing) error = %v, want errModuleNotFound", err)
	}
}

func TestFindExportMissingSymbolIsInvalid(t *testing.T) {
	m := newModuleImage()
	m.path = "/proc/self/exe"
	if got := m.FindExport("definitely_not_a_real_symbol_name"); got.Valid() {
		t.Errorf("FindExport(missing) = %v, want InvalidAddress", got)
	}
}

func TestFindExportEmptyPathIsInvalid(t *testing.T) {
	m := newModuleImage()
	if got := m.FindExport("anything"); got != InvalidAddress {
		t.Errorf("FindExport with no path = %v, want InvalidAddress", got)
	}
}

func TestOpenByHandleMissingHandle(t *testing.T) {
	if _, err := OpenByHandle(0, ""); err == nil {
		t.Error("OpenByHandle(0) should fail, got nil error")
	}
}
