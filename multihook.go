package dynlibutils

import "sync"

// MultiHook is a multimap `VirtualTableView -> {slot hook, [callback]}`
// whose registry is owned by the MultiHook instance (§4.8): AddHook
// installs a VTableSlotHook and stores it under its vtable; Call/CallAll
// return the original function pointer (or every registered entry's
// original) for a view. They do not invoke those originals. Grounded on
// other_examples/zboralski-galago__vtable.go's VTableMap{map[uint64]*VTable}
// shape, keyed here by AddressValue instead of a raw uint64.
type MultiHook struct {
	mu      sync.Mutex
	entries map[AddressValue][]*multiHookEntry
}

type multiHookEntry struct {
	hook     *VTableSlotHook
	callback interface{}
}

// NewMultiHook builds an empty registry.
func NewMultiHook() *MultiHook {
	return &MultiHook{entries: make(map[AddressValue][]*multiHookEntry)}
}

// AddHook constructs a VTableSlotHook for view/index, installs
// replacement, and stores the handle keyed by view's address. Multiple
// calls for the same view accumulate entries rather than replacing one
// another, matching the "multimap" framing in §4.8.
func (mh *MultiHook) AddHook(view VirtualTableView, index int, replacement AddressValue) (*VTableSlotHook, error) {
	hook, err := NewVTableSlotHook(view, index)
	if err != nil {
		return nil, err
	}
	if err := hook.Install(replacement); err != nil {
		return nil, err
	}

	mh.mu.Lock()
	mh.entries[view.Address] = append(mh.entries[view.Address], &multiHookEntry{hook: hook, callback: replacement})
	mh.mu.Unlock()
	return hook, nil
}

// Call resolves view's stored entries and returns the first one's
// original function pointer without calling it.
func (mh *MultiHook) Call(view VirtualTableView) (AddressValue, bool) {
	mh.mu.Lock()
	defer mh.mu.Unlock()
	entries := mh.entries[view.Address]
	if len(entries) == 0 {
		return InvalidAddress, false
	}
	return entries[0].hook.Original(), true
}

// CallAll returns every stored entry's original function pointer for
// view, in insertion order, without calling any of them.
func (mh *MultiHook) CallAll(view VirtualTableView) []AddressValue {
	mh.mu.Lock()
	defer mh.mu.Unlock()
	entries := mh.entries[view.Address]
	out := make([]AddressValue, len(entries))
	for i, e := range entries {
		out[i] = e.hook.Original()
	}
	return out
}

// RemoveHook erases every entry stored for view, unhooking each one
// (restoring its original pointer) as it goes.
func (mh *MultiHook) RemoveHook(view VirtualTableView) {
	mh.mu.Lock()
	entries := mh.entries[view.Address]
	delete(mh.entries, view.Address)
	mh.mu.Unlock()

	for _, e := range entries {
		e.hook.Unhook()
	}
}

// Clear removes every entry across every vtable, unhooking each.
func (mh *MultiHook) Clear() {
	mh.mu.Lock()
	all := mh.entries
	mh.entries = make(map[AddressValue][]*multiHookEntry)
	mh.mu.Unlock()

	for _, entries := range all {
		for _, e := range entries {
			e.hook.Unhook()
		}
	}
}
