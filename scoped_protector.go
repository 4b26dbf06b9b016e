package dynlibutils

// ScopedProtector is an RAII-style memory-protection guard, ported from
// original_source/src/memprotector.cpp's CMemProtector. Go has no
// destructors, so the pattern is: construct with NewScopedProtector, do
// the protected operation, then `defer sp.Release()`.
type ScopedProtector struct {
	address       AddressValue
	length        uintptr
	origFlags     ProtectionFlags
	restoreOnDrop bool
	valid         bool
	accessor      Accessor
}

// NewScopedProtector coerces [addr, addr+length) to newFlags, remembering
// the prior protection so Release can restore it. If restoreOnDrop is
// false, Release is a no-op (the caller wants the new protection to stick).
func NewScopedProtector(addr AddressValue, length uintptr, newFlags ProtectionFlags, restoreOnDrop bool) *ScopedProtector {
	return newScopedProtectorWith(defaultAccessor, addr, length, newFlags, restoreOnDrop)
}

func newScopedProtectorWith(accessor Accessor, addr AddressValue, length uintptr, newFlags ProtectionFlags, restoreOnDrop bool) *ScopedProtector {
	sp := &ScopedProtector{
		address:       addr,
		length:        length,
		restoreOnDrop: restoreOnDrop,
		accessor:      accessor,
	}
	old, ok := accessor.MemProtect(addr, length, newFlags)
	sp.origFlags = old
	sp.valid = ok
	return sp
}

// Valid reports whether the protection change at construction succeeded.
// Per §7.3, callers should check this before trusting a subsequent write
// through the protected region — a failed protect does not itself
// prevent the caller from writing (and likely crashing).
func (sp *ScopedProtector) Valid() bool { return sp.valid }

// Release restores the protection observed at construction time, unless
// restoreOnDrop is false or the prior protection was never observed
// (ProtUnset) — matching CMemProtector's destructor guard
// (`if (m_origProtection == ProtFlag::UNSET || !m_unsetLater) return;`).
// Release is idempotent.
func (sp *ScopedProtector) Release() {
	if sp == nil || !sp.restoreOnDrop || !sp.origFlags.Observed() {
		return
	}
	sp.accessor.MemProtect(sp.address, sp.length, sp.origFlags)
	sp.restoreOnDrop = false
}
