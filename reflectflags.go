// reflect.Value carries hidden flag bits (flagRO, flagAddr) that gate
// whether CanSet/CanAddr/UnsafeAddr are allowed. vtable.go's Method needs
// to treat a reflect.MakeFunc closure's code pointer as addressable and
// writable so it can be patched in place — something the reflect package
// deliberately forbids for ordinary values. This file probes reflect's
// internal flag layout at init time (the same technique
// kstenerud-go-subvert/subvert.go uses) and flips those bits directly via
// unsafe.Pointer, rather than going through reflect's public API.
//
// As this modifies internal type data, there's no guarantee it continues
// to work across future go versions. IsEnabled reports whether the probe
// at init time succeeded; Method and VTableSlotHook.CallOriginal return an error when it
// hasn't.
//
// YOU HAVE BEEN WARNED.
package dynlibutils

import (
	"fmt"
	"log"
	"reflect"
	"unsafe"
)

const reflectFlagFailureFmt = "dynlibutils: reflect flag subversion is disabled because %v; " +
	"vtable slot binding and hooking are unavailable on this go version"

type flagTester struct {
	A   int // reflect/value.go: flagAddr
	a   int // reflect/value.go: flagStickyRO
	int     // reflect/value.go: flagEmbedRO
	// flagRO = flagStickyRO | flagEmbedRO as of go 1.5
}

var (
	flagAddr   uintptr
	flagRO     uintptr
	flagOffset uintptr

	failureReason string
)

func init() {
	fail := func(reason string) {
		failureReason = reason
		log.Printf(reflectFlagFailureFmt, failureReason)
	}
	getFlag := func(v reflect.Value) uintptr {
		return uintptr(reflect.ValueOf(v).FieldByName("flag").Uint())
	}
	getFldFlag := func(v reflect.Value, fieldName string) uintptr {
		return getFlag(v.FieldByName(fieldName))
	}

	field, ok := reflect.TypeOf(reflect.Value{}).FieldByName("flag")
	if !ok {
		fail("reflect.Value no longer has a flag field")
		return
	}
	flagOffset = field.Offset

	v := flagTester{}
	rv := reflect.ValueOf(&v).Elem()
	flagRO = (getFldFlag(rv, "a") | getFldFlag(rv, "int")) ^ getFldFlag(rv, "A")
	if flagRO == 0 {
		fail("reflect.Value.flag no longer has flagEmbedRO or flagStickyRO bits")
		return
	}

	flagAddr = getFlag(reflect.ValueOf(int(1))) ^ getFldFlag(rv, "A")
	if flagAddr == 0 {
		fail("reflect.Value.flag no longer has a flagAddr bit")
		return
	}
}

func assertReflectFlagsEnabled() {
	if !IsEnabled() {
		panic(fmt.Errorf(reflectFlagFailureFmt, failureReason))
	}
}

func getFlagPtr(v *reflect.Value) *uintptr {
	return (*uintptr)(unsafe.Pointer(uintptr(unsafe.Pointer(v)) + flagOffset))
}

// IsEnabled reports whether the reflect.Value flag layout probe at init
// time succeeded. While it is false, Method, VTableSlotHook.CallOriginal
// and PerClassMultiHook.AddHook return an error, and MakeWritable and
// MakeAddressable panic; check it once at process startup (e.g. in a CI
// smoke test) as kstenerud-go-subvert recommends for its own IsEnabled.
func IsEnabled() bool { return failureReason == "" }

// MakeWritable clears the flagRO bit on v, exactly as
// kstenerud-go-subvert/subvert.go's MakeWritable does.
func MakeWritable(v *reflect.Value) {
	assertReflectFlagsEnabled()
	*getFlagPtr(v) &^= flagRO
}

// MakeAddressable sets the flagAddr bit on v, exactly as
// kstenerud-go-subvert/subvert.go's MakeAddressable does.
func MakeAddressable(v *reflect.Value) {
	assertReflectFlagsEnabled()
	*getFlagPtr(v) |= flagAddr
}
