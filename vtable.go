package dynlibutils

import (
	"fmt"
	"reflect"
	"unsafe"
)

// RTTIKind distinguishes the object-layout family a VirtualTableView was
// resolved against (§4.5): MSVC uses a Complete Object Locator chained off
// vtable[-1]; Itanium uses a std::type_info pointer in the same slot.
type RTTIKind uint8

const (
	RTTIUnknown RTTIKind = iota
	RTTIMSVC
	RTTIItanium
)

// VirtualTableView is a resolved, read-only view over one C++ object's
// vtable (C7). It never owns the memory it points into — the backing
// ModuleImage (or the live object) must outlive it.
type VirtualTableView struct {
	Address   AddressValue
	Kind      RTTIKind
	ClassName string
}

// Valid reports whether the vtable was successfully located.
func (v VirtualTableView) Valid() bool { return v.Address.Valid() }

// Slot returns the value stored in vtable entry index (the function
// pointer, not the entry's address — i.e. *(void**)(vtable + index*ptrSize)), per
// §4.6's "five-step sequence" step 1: "read the current function pointer
// at vtable[index]".
func (v VirtualTableView) Slot(index int) AddressValue {
	if !v.Valid() || index < 0 {
		return InvalidAddress
	}
	slotAddr := v.Address.AddUnsigned(uint64(index) * uint64(unsafe.Sizeof(uintptr(0))))
	return Read[AddressValue](slotAddr)
}

// SlotAddress returns the address OF vtable entry index (not its value),
// the location hook.go patches when installing a hook.
func (v VirtualTableView) SlotAddress(index int) AddressValue {
	if !v.Valid() || index < 0 {
		return InvalidAddress
	}
	return v.Address.AddUnsigned(uint64(index) * uint64(unsafe.Sizeof(uintptr(0))))
}

// getFunctionAddress extracts the code pointer a Go func value wraps,
// exactly as kstenerud-go-subvert/function.go's getFunctionAddress did for
// its own purposes (reflecting on a live Go closure's code pointer). Here
// PerClassMultiHook.AddHook uses it to obtain the code address of its
// MakeFunc trampoline, which it then writes into the vtable slot.
func getFunctionAddress(function interface{}) (uintptr, error) {
	if !IsEnabled() {
		return 0, fmt.Errorf("dynlibutils: function address introspection unavailable: %s", failureReason)
	}
	rv := reflect.ValueOf(function)
	MakeAddressable(&rv)
	pFunc := (*unsafe.Pointer)(unsafe.Pointer(rv.UnsafeAddr()))
	return uintptr(*pFunc), nil
}

// Method builds a callable matching the shape of template (an interface
// value holding a func, e.g. (func(*C, int) int)(nil)) whose native code
// pointer is the vtable slot at index — the "pointer-to-member-function"
// resolution §4.6/§4.7's CallMethod<T> performs in the original. The
// returned value's underlying code address is patched via
// reflect.MakeFunc + unsafe.Pointer, exactly the technique
// kstenerud-go-subvert/function.go uses to splice a raw address into a
// reflect-constructed closure.
func (v VirtualTableView) Method(index int, template interface{}) (interface{}, error) {
	addr := v.Slot(index)
	if !addr.Valid() {
		return nil, errInvalidIndex
	}
	return newFunctionWithImplementation(template, uintptr(addr))
}

// newFunctionWithImplementation is kstenerud-go-subvert/function.go's
// newFunctionWithImplementation, adapted: it now returns an error instead
// of a bare ignore-on-failure path, since Method must surface a failed
// IsEnabled() check to its caller rather than silently returning a
// zero-valued, non-functional closure.
func newFunctionWithImplementation(template interface{}, implementationAddr uintptr) (interface{}, error) {
	if !IsEnabled() {
		return nil, fmt.Errorf("dynlibutils: cannot bind vtable slot to callable: %s", failureReason)
	}
	rFunc := reflect.MakeFunc(reflect.TypeOf(template), nil)
	MakeAddressable(&rFunc)
	pFunc := (*unsafe.Pointer)(unsafe.Pointer(rFunc.UnsafeAddr()))
	*pFunc = unsafe.Pointer(implementationAddr)
	return rFunc.Interface(), nil
}
