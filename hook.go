package dynlibutils

import "unsafe"

// VTableSlotHook installs a single replacement function pointer into one
// vtable slot and can restore the original on Unhook, per spec.md §4.6's
// five-step sequence: read the current pointer, remember it, protect the
// slot writable, write the replacement, release the protector. There is
// no Go destructor, so callers `defer hook.Unhook()` themselves — the
// same RAII-by-convention shape ScopedProtector and original_source's
// CMemProtector both use.
type VTableSlotHook struct {
	view      VirtualTableView
	index     int
	slotAddr  AddressValue
	original  AddressValue
	installed bool
}

// NewVTableSlotHook prepares a hook for view's method at index without
// installing it yet.
func NewVTableSlotHook(view VirtualTableView, index int) (*VTableSlotHook, error) {
	slotAddr := view.SlotAddress(index)
	if !slotAddr.Valid() {
		return nil, errInvalidIndex
	}
	return &VTableSlotHook{view: view, index: index, slotAddr: slotAddr}, nil
}

// Installed reports whether the hook is currently active.
func (h *VTableSlotHook) Installed() bool { return h != nil && h.installed }

// Original returns the function pointer observed at the slot before
// installation. Valid once Install has succeeded.
func (h *VTableSlotHook) Original() AddressValue { return h.original }

// Install performs the five-step sequence: read+remember the current
// pointer, make the slot writable via a ScopedProtector, write
// replacement, and release the protector (restoring the slot's own
// protection — not the original function pointer).
//
// Installing an already-installed hook is a programmer error (§7.5):
// Install panics rather than returning an error, the same way
// reflectflags.go's assertReflectFlagsEnabled does for its own contract
// violation. A ScopedProtector that fails to take hold does not abort the
// write — §7.3 has the install proceed best-effort. The protector is local
// to Install, and Install does not report whether the protection change
// succeeded.
func (h *VTableSlotHook) Install(replacement AddressValue) error {
	if h.installed {
		panic(errAlreadyInstalled)
	}
	if !replacement.Valid() {
		return errInvalidIndex
	}

	h.original = Read[AddressValue](h.slotAddr)

	sp := NewScopedProtector(h.slotAddr, unsafe.Sizeof(uintptr(0)), ProtRead|ProtWrite, true)
	defer sp.Release()

	*(*AddressValue)(h.slotAddr.Ptr()) = replacement
	h.installed = true
	return nil
}

// Unhook restores the original function pointer the same way Install
// wrote the replacement: protect, write, release. Unhook is idempotent —
// calling it on a hook that was never installed, or already unhooked, is
// a no-op rather than an error, so `defer hook.Unhook()` is always safe.
func (h *VTableSlotHook) Unhook() error {
	if !h.installed {
		return nil
	}

	sp := NewScopedProtector(h.slotAddr, unsafe.Sizeof(uintptr(0)), ProtRead|ProtWrite, true)
	defer sp.Release()

	*(*AddressValue)(h.slotAddr.Ptr()) = h.original
	h.installed = false
	return nil
}

// CallOriginal binds template's shape to the remembered original
// function pointer, letting a hook's replacement call onward to the
// real implementation — the Go equivalent of storing and calling through
// a saved member-function pointer.
func (h *VTableSlotHook) CallOriginal(template interface{}) (interface{}, error) {
	if !h.original.Valid() {
		return nil, errNotInstalled
	}
	return newFunctionWithImplementation(template, uintptr(h.original))
}
