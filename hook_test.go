package dynlibutils

import (
	"testing"
	"unsafe"
)

// fakeVTable lays out a tiny vtable-shaped array of function pointers in
// ordinary Go memory, standing in for a real C++ object's vtable so
// VTableSlotHook/MultiHook/PerClassMultiHook can be exercised without an
// actual loaded C++ image.
func fakeVTable(fns ...interface{}) ([]uintptr, VirtualTableView, error) {
	slots := make([]uintptr, len(fns))
	for i, fn := range fns {
		addr, err := getFunctionAddress(fn)
		if err != nil {
			return nil, VirtualTableView{}, err
		}
		slots[i] = addr
	}
	base := AddressOf(unsafe.Pointer(&slots[0]))
	return slots, VirtualTableView{Address: base, Kind: RTTIItanium}, nil
}

func TestVTableSlotHookInstallAndUnhook(t *testing.T) {
	if !IsEnabled() {
		t.Skip("reflect flag subversion unavailable on this go version")
	}

	original := func(n int32) int32 { return n * 2 }
	replacement := func(n int32) int32 { return n + 1000 }

	_, view, err := fakeVTable(original)
	if err != nil {
		t.Fatalf("fakeVTable: %v", err)
	}

	hook, err := NewVTableSlotHook(view, 0)
	if err != nil {
		t.Fatalf("NewVTableSlotHook: %v", err)
	}

	replAddr, err := getFunctionAddress(replacement)
	if err != nil {
		t.Fatalf("getFunctionAddress(replacement): %v", err)
	}

	if err := hook.Install(AddressValue(replAddr)); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !hook.Installed() {
		t.Fatal("expected hook to report installed")
	}

	bound, err := view.Method(0, (func(int32) int32)(nil))
	if err != nil {
		t.Fatalf("Method: %v", err)
	}
	fn := bound.(func(int32) int32)
	if got := fn(1); got != 1001 {
		t.Errorf("hooked call = %d, want 1001", got)
	}

	if err := hook.Unhook(); err != nil {
		t.Fatalf("Unhook: %v", err)
	}
	if hook.Installed() {
		t.Error("expected hook to report not installed after Unhook")
	}

	bound2, err := view.Method(0, (func(int32) int32)(nil))
	if err != nil {
		t.Fatalf("Method after unhook: %v", err)
	}
	fn2 := bound2.(func(int32) int32)
	if got := fn2(1); got != 2 {
		t.Errorf("restored call = %d, want 2", got)
	}
}

func TestVTableSlotHookDoubleInstallPanics(t *testing.T) {
	if !IsEnabled() {
		t.Skip("reflect flag subversion unavailable on this go version")
	}
	fn := func() {}
	_, view, err := fakeVTable(fn)
	if err != nil {
		t.Fatalf("fakeVTable: %v", err)
	}
	hook, _ := NewVTableSlotHook(view, 0)
	addr, _ := getFunctionAddress(fn)
	if err := hook.Install(AddressValue(addr)); err != nil {
		t.Fatalf("Install: %v", err)
	}
	assertPanics(t, func() { hook.Install(AddressValue(addr)) })
}

func TestVTableSlotHookUnhookIdempotent(t *testing.T) {
	var hook VTableSlotHook
	if err := hook.Unhook(); err != nil {
		t.Errorf("Unhook on never-installed hook returned %v, want nil", err)
	}
}
