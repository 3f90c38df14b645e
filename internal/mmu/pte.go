// Package mmu implements the four-level virtual-memory manager: the
// page-table walker (spec.md §4.A), the address-space object (§4.B),
// the fault handlers (§4.C), and the TLB shootdown coordinator (§4.D).
//
// It is grounded on biscuit's vm package (vm/as.go's PTE_* flag
// constants, Tlbshoot, Sys_pgfault) and, for the exact bit layout and
// walk/shootdown algorithms, on original_source's
// kernel-src/arch/x86-64/mmu.c -- the C implementation spec.md's MMU
// section was distilled from.
package mmu

import "github.com/desmonHak/talus/internal/mem"

// PTE is a single 64-bit page-table entry, laid out exactly as spec.md
// §6 describes: bit 0 present, bit 1 writable, bit 2 user, bit 6 dirty,
// bit 63 no-execute, bits 12..51 the physical frame address.
type PTE uint64

const (
	// FlagPresent marks a mapping readable/present.
	FlagPresent PTE = 1 << 0
	// FlagWritable marks a mapping writable.
	FlagWritable PTE = 1 << 1
	// FlagUser marks a mapping user-accessible.
	FlagUser PTE = 1 << 2
	// FlagDirty is set by a write to the page (modeled here, not by real
	// hardware, since nothing walks these tables with an MMU).
	FlagDirty PTE = 1 << 6
	// FlagNoExecute marks a mapping non-executable.
	FlagNoExecute PTE = 1 << 63
)

// addrMask extracts the physical frame address bits (12..51).
const addrMask PTE = 0x000ffffffffff000

// flagMask is the set of flag bits getFlags/FlagMask returns, matching
// spec.md §6's FLAGS_MASK (read/write/noexec/user).
const flagMask = FlagPresent | FlagWritable | FlagUser | FlagNoExecute

// intermediateFlags are the flags installed on every newly-allocated
// intermediate table: permission is decided entirely at the leaf, so
// intermediates are always present+writable+user (spec.md §4.A).
const intermediateFlags = FlagPresent | FlagWritable | FlagUser

func mkEntry(f mem.Frame, flags PTE) PTE {
	return PTE(f)&addrMask | (flags &^ addrMask)
}

func (e PTE) frame() mem.Frame { return mem.Frame(e & addrMask) }
func (e PTE) present() bool    { return e&FlagPresent != 0 }

// Flags returns the masked flag bits of an entry (spec.md §6 FLAGS_MASK).
func (e PTE) Flags() PTE { return e & flagMask }
