// Package dynlibutils provides runtime introspection and modification of
// native binaries (PE/ELF/Mach-O) already mapped into the calling process:
// section enumeration, masked-byte pattern scanning, RTTI virtual-table
// resolution, and virtual-method-table hooking.
//
// This package reads and writes the calling process's own memory directly.
// Misusing it — hooking a slot that isn't really a function pointer,
// scanning outside a mapped section, holding a ScopedProtector across a
// write from another goroutine — will corrupt memory or crash the process.
// There is no sandbox here: you are given a loaded gun and the ability to
// point it at your own foot.
//
// YOU HAVE BEEN WARNED.
package dynlibutils
