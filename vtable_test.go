package dynlibutils

import (
	"testing"
	"unsafe"
)

func TestVirtualTableViewSlot(t *testing.T) {
	slots := [4]uintptr{0x1000, 0x2000, 0x3000, 0x4000}
	base := AddressValue(uintptr(unsafe.Pointer(&slots[0])))

	view := VirtualTableView{Address: base, Kind: RTTIItanium}
	if got := view.Slot(2); got != AddressValue(0x3000) {
		t.Errorf("Slot(2) = %#x, want 0x3000", uintptr(got))
	}
	if addr := view.SlotAddress(2); addr != base.AddUnsigned(2*uint64(unsafe.Sizeof(uintptr(0)))) {
		t.Errorf("SlotAddress(2) mismatch")
	}
}

func TestVirtualTableViewInvalid(t *testing.T) {
	var view VirtualTableView
	if view.Valid() {
		t.Error("zero-value VirtualTableView should be invalid")
	}
	if view.Slot(0).Valid() {
		t.Error("Slot on an invalid view should return InvalidAddress")
	}
}

func TestMethodBindsSlotToCallable(t *testing.T) {
	if !IsEnabled() {
		t.Skip("reflect flag subversion unavailable on this go version")
	}

	addOne := func(n int32) int32 { return n + 1 }
	implAddr, err := getFunctionAddress(addOne)
	if err != nil {
		t.Fatalf("getFunctionAddress: %v", err)
	}

	slots := [1]uintptr{implAddr}
	base := AddressValue(uintptr(unsafe.Pointer(&slots[0])))
	view := VirtualTableView{Address: base, Kind: RTTIItanium}

	bound, err := view.Method(0, (func(int32) int32)(nil))
	if err != nil {
		t.Fatalf("Method: %v", err)
	}
	fn, ok := bound.(func(int32) int32)
	if !ok {
		t.Fatalf("Method returned %T, want func(int32) int32", bound)
	}
	if got := fn(41); got != 42 {
		t.Errorf("bound call returned %d, want 42", got)
	}
}

func TestMethodInvalidIndex(t *testing.T) {
	var view VirtualTableView
	if _, err := view.Method(0, (func())(nil)); err == nil {
		t.Error("expected error binding Method on an invalid view")
	}
}
