package mmu

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// CPUSet is the simulated multiprocessor this module shoots down TLBs
// across. It plays the role of original_source's arch_smp_cpusawake /
// smp_cpus table and spinlock_t shootdown_lock: one CPU initiates, the
// rest are sent an IPI and each acknowledges by closing that request's
// own ack channel. There is no shared remaining-acks counter and no
// spin-wait; the initiator blocks on the ack channels instead.
type CPUSet struct {
	mu   sync.Mutex // serializes concurrent shootdowns, the shootdown_lock
	cpus []*CPU
}

// NewCPUSet starts n simulated CPUs.
func NewCPUSet(n int) *CPUSet {
	s := &CPUSet{cpus: make([]*CPU, n)}
	for i := range s.cpus {
		s.cpus[i] = newCPU(i)
	}
	return s
}

// Stop shuts down every CPU's goroutine.
func (s *CPUSet) Stop() {
	for _, c := range s.cpus {
		c.stop()
	}
}

// CPU returns the i'th simulated CPU, for tests to inspect invalidation
// counts.
func (s *CPUSet) CPU(i int) *CPU { return s.cpus[i] }

// Count reports how many CPUs are online.
func (s *CPUSet) Count() int { return len(s.cpus) }

// ShootdownScope describes where the unmapped range lives, the inputs
// original_source's do_shootdown condition switches on: scheduler
// running is always true once a CPUSet exists, so the remaining
// variables are whether the range is kernel or user, and (for user
// ranges) whether the owning process has more than one running thread.
type ShootdownScope struct {
	Kernel              bool
	MultiThreadedUserVM bool
}

// needsShootdown mirrors original_source's do_shootdown predicate:
// kernel-space invalidations always shoot down every other CPU; user
// invalidations only need to when the target process has more than one
// thread running (a single-threaded process can't be running on another
// CPU to observe a stale entry).
func needsShootdown(cpus int, scope ShootdownScope) bool {
	if cpus < 2 {
		return false
	}
	return scope.Kernel || scope.MultiThreadedUserVM
}

// InvalidateRange invalidates [page, page+size) on every other online
// CPU and waits for every acknowledgment before returning, matching
// original_source's arch_mmu_invalidate_range: the initiator always
// invalidates its own TLB inline, and only additionally IPIs the rest of
// the set when needsShootdown holds. initiator identifies the calling
// CPU's index so it is excluded from the IPI fan-out.
func (s *CPUSet) InvalidateRange(ctx context.Context, initiator int, page VAddr, size int, scope ShootdownScope) error {
	full := page == 0 || size >= 128*4096

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cpus[initiator].invalidations++ // the initiator always invalidates locally

	if !needsShootdown(len(s.cpus), scope) {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range s.cpus {
		if i == initiator {
			continue
		}
		c := c
		req := shootdownRequest{page: page, size: size, full: full, ack: make(chan struct{})}
		g.Go(func() error {
			select {
			case c.ipi <- req:
			case <-gctx.Done():
				return gctx.Err()
			}
			select {
			case <-req.ack:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return g.Wait()
}
