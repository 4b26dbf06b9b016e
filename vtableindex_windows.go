//go:build windows

package dynlibutils

import (
	"golang.org/x/arch/x86/x86asm"
)

// MSVCPMFIndex decodes the tiny thunk an MSVC pointer-to-member-function
// targets when bound to a virtual method, extracting the vtable slot it
// dispatches through. Unlike Itanium, MSVC PMFs are themselves code
// addresses — not tagged integers — so there is no arithmetic shortcut;
// the thunk must be disassembled. The common shape compilers emit is:
//
//	mov rax, [rcx]            ; rax := *this->vtable
//	jmp qword ptr [rax+disp]  ; tail-call through the vtable slot
//
// or, more rarely, a direct `jmp qword ptr [rcx+disp]` when the compiler
// elides the intermediate load. Both are recognized; disp/8 is the slot
// index. golang.org/x/arch/x86/x86asm is the only disassembler present
// anywhere in the retrieved pack, so it is the library this decode is
// grounded on (see SPEC_FULL.md DOMAIN STACK).
func MSVCPMFIndex(thunkAddr AddressValue) (index int, ok bool) {
	code := unsafeSlice(thunkAddr, uintptr(64))

	loadedReg := x86asm.Reg(0)
	off := 0
	for iterations := 0; iterations < 8 && off < len(code); iterations++ {
		inst, err := x86asm.Decode(code[off:], 64)
		if err != nil {
			return 0, false
		}

		if inst.Op == x86asm.JMP {
			if mem, isMem := inst.Args[0].(x86asm.Mem); isMem {
				base := mem.Base
				if loadedReg != 0 && base == loadedReg || (loadedReg == 0 && isThisRegister(base)) {
					return int(mem.Disp / 8), true
				}
			}
			return 0, false
		}

		if inst.Op == x86asm.MOV {
			if mem, isMem := inst.Args[1].(x86asm.Mem); isMem && mem.Disp == 0 {
				if dst, isReg := inst.Args[0].(x86asm.Reg); isReg {
					loadedReg = dst
				}
			}
		}

		off += inst.Len
	}
	return 0, false
}

// isThisRegister reports whether reg is the Microsoft x64 calling
// convention's first integer argument register (RCX), the implicit
// `this` pointer a non-static member thunk receives.
func isThisRegister(reg x86asm.Reg) bool {
	return reg == x86asm.RCX || reg == x86asm.ECX
}
