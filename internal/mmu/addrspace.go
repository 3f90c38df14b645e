package mmu

import (
	"sync"

	"github.com/desmonHak/talus/internal/kernerr"
	"github.com/desmonHak/talus/internal/mem"
)

// KernelSpaceStart is the first address owned by the upper half (entry
// 256 of the top-level table), per original_source's KERNELSPACE_START
// boundary and spec.md §4.B.
const KernelSpaceStart = VAddr(0xffff800000000000)

// AddressSpace is a single process's (or the kernel's) page tables. It
// owns the lower half exclusively; the upper half, installed once at
// construction, is always a byte-for-byte copy of the kernel template
// (original_source's arch_mmu_newtable: memcpy(template, PAGE_SIZE)),
// matching biscuit's Vm_t/Lock_pmap pairing of one mutex per address
// space (vm/as.go).
type AddressSpace struct {
	mu    sync.Mutex
	arena *mem.Arena
	alloc mem.FrameAllocator
	top   mem.Frame
}

// New allocates a fresh top-level table and copies the kernel template's
// upper half into it.
func New(arena *mem.Arena, alloc mem.FrameAllocator, tmpl *Template) (*AddressSpace, kernerr.Kind) {
	top, ok := alloc.AllocFrame()
	if !ok {
		return nil, kernerr.OutOfMemory
	}
	arena.Zero(top)
	dst := arena.Table(top)
	src := arena.Table(tmpl.top)
	copy(dst[256:], src[256:])
	return &AddressSpace{arena: arena, alloc: alloc, top: top}, kernerr.OK
}

// Top returns the physical frame backing this address space's top-level
// table, the value a CPU's CR3 would hold (Switch's argument).
func (as *AddressSpace) Top() mem.Frame { return as.top }

// Map installs a present leaf mapping paddr -> vaddr with the given
// flags, allocating any missing intermediate table (original_source's
// arch_mmu_map -> add_page(..., depth=0)).
func (as *AddressSpace) Map(vaddr VAddr, frame mem.Frame, flags PTE) kernerr.Kind {
	as.mu.Lock()
	defer as.mu.Unlock()
	entry := mkEntry(frame, flags|FlagPresent)
	if !Put(as.alloc, as.arena, as.top, vaddr, entry, DepthLeaf) {
		return kernerr.OutOfMemory
	}
	return kernerr.OK
}

// Unmap clears the leaf entry for vaddr, if any (arch_mmu_unmap). It
// does not invalidate any TLB; callers run the result through the
// shootdown coordinator themselves, matching spec.md §4.D's "unmap and
// shootdown are separate calls".
func (as *AddressSpace) Unmap(vaddr VAddr) {
	as.mu.Lock()
	defer as.mu.Unlock()
	e := Get(as.arena, as.top, vaddr)
	if e == nil {
		return
	}
	*e = 0
}

// Remap rewrites the flags (and, if replace is true, the frame) of an
// existing mapping, per arch_mmu_remap's "paddr == NULL keeps the old
// address" behavior.
func (as *AddressSpace) Remap(vaddr VAddr, frame mem.Frame, replaceFrame bool, flags PTE) kernerr.Kind {
	as.mu.Lock()
	defer as.mu.Unlock()
	e := Get(as.arena, as.top, vaddr)
	if e == nil {
		return kernerr.NotFound
	}
	f := e.frame()
	if replaceFrame {
		f = frame
	}
	*e = mkEntry(f, flags|FlagPresent)
	return kernerr.OK
}

// GetPhysical returns the physical frame mapped at vaddr, and whether a
// mapping exists at all (arch_mmu_getphysical).
func (as *AddressSpace) GetPhysical(vaddr VAddr) (mem.Frame, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()
	e := Get(as.arena, as.top, vaddr)
	if e == nil || !e.present() {
		return 0, false
	}
	return e.frame(), true
}

// IsPresent reports whether vaddr has a present mapping.
func (as *AddressSpace) IsPresent(vaddr VAddr) bool {
	as.mu.Lock()
	defer as.mu.Unlock()
	e := Get(as.arena, as.top, vaddr)
	return e != nil && e.present()
}

// IsWritable reports whether vaddr is mapped writable.
func (as *AddressSpace) IsWritable(vaddr VAddr) bool {
	as.mu.Lock()
	defer as.mu.Unlock()
	e := Get(as.arena, as.top, vaddr)
	return e != nil && *e&FlagWritable != 0
}

// IsDirty reports whether vaddr's mapping has been written to.
func (as *AddressSpace) IsDirty(vaddr VAddr) bool {
	as.mu.Lock()
	defer as.mu.Unlock()
	e := Get(as.arena, as.top, vaddr)
	return e != nil && *e&FlagDirty != 0
}

// GetFlags returns the masked flag bits of vaddr's mapping, and whether
// a mapping exists (arch_mmu_getflags).
func (as *AddressSpace) GetFlags(vaddr VAddr) (PTE, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()
	e := Get(as.arena, as.top, vaddr)
	if e == nil {
		return 0, false
	}
	return e.Flags(), true
}

// MarkDirty sets the dirty bit on vaddr's mapping, simulating the
// hardware dirty-bit update a real MMU performs on a write (spec.md §6
// notes this module models it explicitly since nothing walks these
// tables with real hardware).
func (as *AddressSpace) MarkDirty(vaddr VAddr) {
	as.mu.Lock()
	defer as.mu.Unlock()
	e := Get(as.arena, as.top, vaddr)
	if e != nil {
		*e |= FlagDirty
	}
}

// Destroy frees every frame owned by the lower half of this address
// space, then the top-level table itself (arch_mmu_destroytable). The
// upper half is shared with the template and is never freed here.
func (as *AddressSpace) Destroy() {
	as.mu.Lock()
	defer as.mu.Unlock()
	Destroy(as.alloc, as.arena, as.top)
}
