package mmu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInvalidateRangeKernelShootsDownEveryoneElse(t *testing.T) {
	cpus := NewCPUSet(4)
	defer cpus.Stop()

	err := cpus.InvalidateRange(context.Background(), 0, VAddr(0x1000), 4096, ShootdownScope{Kernel: true})
	require.NoError(t, err)

	// No extra wait is needed: errgroup.Wait blocks until every
	// non-initiator has closed its ack channel, which each CPU does only
	// after incrementing its counter.
	for i := 1; i < cpus.Count(); i++ {
		require.Equal(t, 1, cpus.CPU(i).Invalidations())
	}
	require.Equal(t, 1, cpus.CPU(0).Invalidations())
}

func TestInvalidateRangeSingleThreadedUserSkipsShootdown(t *testing.T) {
	cpus := NewCPUSet(4)
	defer cpus.Stop()

	err := cpus.InvalidateRange(context.Background(), 0, VAddr(0x1000), 4096, ShootdownScope{})
	require.NoError(t, err)

	require.Equal(t, 1, cpus.CPU(0).Invalidations())
	for i := 1; i < cpus.Count(); i++ {
		require.Equal(t, 0, cpus.CPU(i).Invalidations())
	}
}

func TestNeedsShootdownSingleCPUNeverShoots(t *testing.T) {
	require.False(t, needsShootdown(1, ShootdownScope{Kernel: true}))
}

func TestNeedsShootdownMultiThreadedUser(t *testing.T) {
	require.True(t, needsShootdown(2, ShootdownScope{MultiThreadedUserVM: true}))
	require.False(t, needsShootdown(2, ShootdownScope{}))
}
