package mmu

import "github.com/desmonHak/talus/internal/mem"

// VAddr is a virtual address. Only the low 48 bits participate in the
// walk (canonical x86-64 addressing), matching original_source's
// PML4MASK/PDPTMASK/PDMASK/PTMASK decomposition.
type VAddr uintptr

// Depth selects how far a Put call descends before writing the supplied
// entry, per spec.md §4.A ("depth ∈ {L3, L2, L1, leaf}"). Only DepthLeaf
// is exercised by the public address-space API; the others exist so a
// future large-page path can install an entry higher in the tree without
// duplicating the walk.
type Depth int

const (
	DepthL3   Depth = iota // write the PML4 entry directly
	DepthL2                // write the PDPT entry directly
	DepthL1                // write the PD entry directly
	DepthLeaf              // write the PT (leaf) entry -- the common case
)

func indices(va VAddr) (l4, l3, l2, l1 int) {
	a := uintptr(va)
	l4 = int((a >> 39) & 0x1ff)
	l3 = int((a >> 30) & 0x1ff)
	l2 = int((a >> 21) & 0x1ff)
	l1 = int((a >> 12) & 0x1ff)
	return
}

// Get walks top to the leaf entry for va and returns a pointer to it, or
// nil at the first absent intermediate. It never allocates and never
// faults (spec.md §4.A).
func Get(arena *mem.Arena, top mem.Frame, va VAddr) *PTE {
	l4, l3, l2, l1 := indices(va)

	t := arena.Table(top)
	e := PTE(t[l4])
	if !e.present() {
		return nil
	}

	t = arena.Table(e.frame())
	e = PTE(t[l3])
	if !e.present() {
		return nil
	}

	t = arena.Table(e.frame())
	e = PTE(t[l2])
	if !e.present() {
		return nil
	}

	t = arena.Table(e.frame())
	return (*PTE)(&t[l1])
}

// Put descends to depth, allocating any missing intermediate table along
// the way (zero-filled, installed with {present,writable,user}), and
// overwrites the entry found there with entry. It reports false only on
// allocator exhaustion.
func Put(alloc mem.FrameAllocator, arena *mem.Arena, top mem.Frame, va VAddr, entry PTE, depth Depth) bool {
	l4, l3, l2, l1 := indices(va)

	t := arena.Table(top)
	if depth == DepthL3 {
		t[l4] = uint64(entry)
		return true
	}

	pdpt, ok := descend(alloc, arena, t, l4)
	if !ok {
		return false
	}
	if depth == DepthL2 {
		pdpt[l3] = uint64(entry)
		return true
	}

	pd, ok := descend(alloc, arena, pdpt, l3)
	if !ok {
		return false
	}
	if depth == DepthL1 {
		pd[l2] = uint64(entry)
		return true
	}

	pt, ok := descend(alloc, arena, pd, l2)
	if !ok {
		return false
	}
	pt[l1] = uint64(entry)
	return true
}

// descend returns the table referenced by table[idx], allocating and
// installing a fresh zero-filled intermediate if the slot is empty.
func descend(alloc mem.FrameAllocator, arena *mem.Arena, table *[512]uint64, idx int) (*[512]uint64, bool) {
	e := PTE(table[idx])
	if e.present() {
		return arena.Table(e.frame()), true
	}
	f, ok := alloc.AllocFrame()
	if !ok {
		return nil, false
	}
	arena.Zero(f)
	table[idx] = uint64(mkEntry(f, intermediateFlags))
	return arena.Table(f), true
}

// Destroy frees every intermediate table and leaf frame reachable from
// the lower half (entries 0..255) of top, a post-order walk, then frees
// top itself. The upper half -- the shared kernel template -- is never
// touched, matching spec.md §4.A and §9.
func Destroy(alloc mem.FrameAllocator, arena *mem.Arena, top mem.Frame) {
	destroyLevel(alloc, arena, top, 3, 256)
	alloc.FreeFrame(top)
}

// destroyLevel walks `table`'s first `count` entries; at depth 0 entries
// are leaves (freed directly); above that, each present entry is a table
// that is itself destroyed before being freed.
func destroyLevel(alloc mem.FrameAllocator, arena *mem.Arena, frameAddr mem.Frame, depth int, count int) {
	t := arena.Table(frameAddr)
	for i := 0; i < count; i++ {
		e := PTE(t[i])
		if !e.present() {
			continue
		}
		if depth > 0 {
			destroyLevel(alloc, arena, e.frame(), depth-1, 512)
		}
		alloc.FreeFrame(e.frame())
	}
}
