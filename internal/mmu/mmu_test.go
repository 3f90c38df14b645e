package mmu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/desmonHak/talus/internal/kernerr"
	"github.com/desmonHak/talus/internal/mem"
)

func newTestArena(t *testing.T, frames int) *mem.Arena {
	t.Helper()
	return mem.NewArena(frames)
}

func TestAddressSpaceMapGetUnmap(t *testing.T) {
	arena := newTestArena(t, 600)
	tmpl, k := NewTemplate(arena, arena, nil)
	require.Equal(t, kernerr.OK, k)

	as, k := New(arena, arena, tmpl)
	require.Equal(t, kernerr.OK, k)

	va := VAddr(0x1000)
	frame, ok := arena.AllocFrame()
	require.True(t, ok)

	require.Equal(t, kernerr.OK, as.Map(va, frame, FlagWritable))
	require.True(t, as.IsPresent(va))
	require.True(t, as.IsWritable(va))

	got, ok := as.GetPhysical(va)
	require.True(t, ok)
	require.Equal(t, frame, got)

	as.Unmap(va)
	require.False(t, as.IsPresent(va))
}

func TestAddressSpaceUpperHalfSharesTemplate(t *testing.T) {
	arena := newTestArena(t, 600)
	regions := []MemRegion{
		{Phys: 0, Virt: VAddr(0xffff800000000000), Bytes: mem.PageSize * 4, Flags: HHDMFlags},
	}
	tmpl, k := NewTemplate(arena, arena, regions)
	require.Equal(t, kernerr.OK, k)

	as1, k := New(arena, arena, tmpl)
	require.Equal(t, kernerr.OK, k)
	as2, k := New(arena, arena, tmpl)
	require.Equal(t, kernerr.OK, k)

	va := KernelSpaceStart
	p1, ok1 := as1.GetPhysical(va)
	p2, ok2 := as2.GetPhysical(va)
	require.True(t, ok1)
	require.True(t, ok2)
	require.Equal(t, p1, p2)
}

func TestAddressSpaceDestroyFreesOnlyLowerHalf(t *testing.T) {
	arena := newTestArena(t, 600)
	tmpl, k := NewTemplate(arena, arena, nil)
	require.Equal(t, kernerr.OK, k)

	as, k := New(arena, arena, tmpl)
	require.Equal(t, kernerr.OK, k)

	frame, ok := arena.AllocFrame()
	require.True(t, ok)
	require.Equal(t, kernerr.OK, as.Map(VAddr(0x2000), frame, FlagWritable))

	// The lower half owns the leaf frame, its PT, PD and PDPT, plus the
	// top-level table: five frames. The template's 256 upper-half PDPTs
	// stay allocated.
	before := arena.Outstanding()
	as.Destroy()
	after := arena.Outstanding()
	require.Equal(t, before-5, after)
}

func TestRemapReplacesFrame(t *testing.T) {
	arena := newTestArena(t, 600)
	tmpl, k := NewTemplate(arena, arena, nil)
	require.Equal(t, kernerr.OK, k)
	as, k := New(arena, arena, tmpl)
	require.Equal(t, kernerr.OK, k)

	f1, _ := arena.AllocFrame()
	f2, _ := arena.AllocFrame()
	va := VAddr(0x3000)
	require.Equal(t, kernerr.OK, as.Map(va, f1, FlagWritable))

	require.Equal(t, kernerr.OK, as.Remap(va, f2, true, FlagWritable))
	got, ok := as.GetPhysical(va)
	require.True(t, ok)
	require.Equal(t, f2, got)
}

func TestMarkDirty(t *testing.T) {
	arena := newTestArena(t, 600)
	tmpl, _ := NewTemplate(arena, arena, nil)
	as, _ := New(arena, arena, tmpl)
	f, _ := arena.AllocFrame()
	va := VAddr(0x4000)
	as.Map(va, f, FlagWritable)
	require.False(t, as.IsDirty(va))
	as.MarkDirty(va)
	require.True(t, as.IsDirty(va))
}
