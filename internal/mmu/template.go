package mmu

import (
	"github.com/desmonHak/talus/internal/kernerr"
	"github.com/desmonHak/talus/internal/mem"
)

// Template is the kernel's upper-half page table: every new address
// space starts life as a copy of it (original_source's arch_mmu_init
// building `template` once and arch_mmu_newtable memcpy-ing it
// thereafter). It owns the upper 256 entries; entries 0..255 are never
// populated on the template itself.
type Template struct {
	top mem.Frame
}

// MemRegion describes one physical range that should appear identity- or
// offset-mapped in the template, e.g. a direct-map window or a kernel
// image section. It mirrors original_source's limine_memmap_entry /
// kerneladdr table collapsed to (phys, virt, len, flags).
type MemRegion struct {
	Phys  mem.Frame
	Virt  VAddr
	Bytes int
	Flags PTE
}

// NewTemplate builds the kernel template by pre-populating every upper-
// half PDPT slot (entries 256..511) with a fresh table -- matching
// arch_mmu_init's loop that allocates all 256 upper PDPTs up front so
// every address space that ever copies the template shares the same
// kernel PDPTs -- then installs regions (typically the HHDM window and
// the kernel image's text/data/rodata sections).
func NewTemplate(arena *mem.Arena, alloc mem.FrameAllocator, regions []MemRegion) (*Template, kernerr.Kind) {
	top, ok := alloc.AllocFrame()
	if !ok {
		return nil, kernerr.OutOfMemory
	}
	arena.Zero(top)
	table := arena.Table(top)
	for i := 256; i < 512; i++ {
		f, ok := alloc.AllocZeroFrame()
		if !ok {
			return nil, kernerr.OutOfMemory
		}
		table[i] = uint64(mkEntry(f, intermediateFlags))
	}

	t := &Template{top: top}
	for _, r := range regions {
		for off := 0; off < r.Bytes; off += mem.PageSize {
			va := VAddr(uintptr(r.Virt) + uintptr(off))
			entry := mkEntry(r.Phys+mem.Frame(off), r.Flags|FlagPresent)
			if !Put(alloc, arena, top, va, entry, DepthLeaf) {
				return nil, kernerr.OutOfMemory
			}
		}
	}
	return t, kernerr.OK
}

// Kernel image section permissions, matching original_source's
// kernelflags table: text is read-only+exec, data is read-write+noexec,
// rodata is read-only+noexec.
var (
	TextFlags   = FlagPresent
	DataFlags   = FlagPresent | FlagWritable | FlagNoExecute
	RodataFlags = FlagPresent | FlagNoExecute
	// HHDMFlags is applied to every direct-map page: read-write, never
	// executable.
	HHDMFlags = FlagPresent | FlagWritable | FlagNoExecute
)
