package dynlibutils

import "errors"

// errAlreadyInstalled is a programmer-error sentinel (§7.5): a double
// Install is a contract violation, not a recoverable condition, so
// VTableSlotHook.Install panics with it rather than returning it.
var errAlreadyInstalled = errors.New("dynlibutils: hook already installed")

// Ordinary errors (§7.2, §7.3): reported to the caller, never panicked.
var (
	errNotInstalled = errors.New("dynlibutils: hook not installed")
	errInvalidIndex = errors.New("dynlibutils: invalid virtual-method index")
)

// Loader/protection failure errors (§7.2, §7.3): reported to the caller,
// never panicked.
var (
	errModuleNotFound  = errors.New("dynlibutils: module not found")
	errEmptyModuleName = errors.New("dynlibutils: empty module name")
	errSectionNotFound = errors.New("dynlibutils: section not found")
)
