package dynlibutils

import (
	"reflect"
	"sync"
)

// PerClassMultiHook extends MultiHook with a per-instance
// `VirtualTableView -> [callback]` map (§4.8): the first callback
// registered for a given vtable installs one trampoline function via the
// inner MultiHook; every later callback for the same vtable just
// appends to that vtable's list, so the object being hooked only ever
// sees a single vtable-slot replacement no matter how many callbacks are
// registered against it. All callbacks and the trampoline itself must
// share the same call signature, supplied once as template when
// constructing the hook (e.g. (func(unsafe.Pointer, int) int)(nil)).
type PerClassMultiHook struct {
	mh       *MultiHook
	template interface{}

	mu        sync.Mutex
	callbacks map[AddressValue][]interface{}
}

// NewPerClassMultiHook builds an empty registry for callbacks matching
// template's function shape.
func NewPerClassMultiHook(template interface{}) *PerClassMultiHook {
	return &PerClassMultiHook{
		mh:        NewMultiHook(),
		template:  template,
		callbacks: make(map[AddressValue][]interface{}),
	}
}

// AddHook appends callback to view's list, installing the fan-out
// trampoline via the inner MultiHook the first time view is seen —
// the "exactly one slot-hook exists per (vtable, index) pair" invariant.
func (p *PerClassMultiHook) AddHook(view VirtualTableView, index int, callback interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	first := len(p.callbacks[view.Address]) == 0
	p.callbacks[view.Address] = append(p.callbacks[view.Address], callback)

	if !first {
		return nil
	}

	trampoline := p.buildTrampoline(view.Address)
	implAddr, err := getFunctionAddress(trampoline.Interface())
	if err != nil {
		p.callbacks[view.Address] = p.callbacks[view.Address][:len(p.callbacks[view.Address])-1]
		return err
	}
	if _, err := p.mh.AddHook(view, index, AddressValue(implAddr)); err != nil {
		p.callbacks[view.Address] = p.callbacks[view.Address][:len(p.callbacks[view.Address])-1]
		return err
	}
	return nil
}

// buildTrampoline makes one reflect-backed closure, matching p.template's
// shape, that looks up viewAddr's callback list at call time and invokes
// each in insertion order, returning the last one's result — discarding
// results entirely for a void-shaped template, per §4.8.
func (p *PerClassMultiHook) buildTrampoline(viewAddr AddressValue) reflect.Value {
	fnType := reflect.TypeOf(p.template)
	return reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
		p.mu.Lock()
		callbacks := append([]interface{}(nil), p.callbacks[viewAddr]...)
		p.mu.Unlock()

		var results []reflect.Value
		for _, cb := range callbacks {
			results = reflect.ValueOf(cb).Call(args)
		}
		return results
	})
}

// RemoveHook clears view's callback list and unhooks the trampoline,
// restoring the slot's original function pointer.
func (p *PerClassMultiHook) RemoveHook(view VirtualTableView) {
	p.mu.Lock()
	delete(p.callbacks, view.Address)
	p.mu.Unlock()

	p.mh.RemoveHook(view)
}

// Clear empties every callback list before delegating to the underlying
// MultiHook's Clear, per §4.8's ordering invariant: "the callback list is
// emptied before the underlying MultiHook's clear so trampolines never
// see stale callbacks."
func (p *PerClassMultiHook) Clear() {
	p.mu.Lock()
	p.callbacks = make(map[AddressValue][]interface{})
	p.mu.Unlock()

	p.mh.Clear()
}
