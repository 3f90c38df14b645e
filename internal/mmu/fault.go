package mmu

// FaultAction mirrors original_source's VMM_ACTION_* bits decoded from
// the hardware error code in pfisr: what kind of access triggered the
// fault.
type FaultAction int

const (
	FaultRead FaultAction = 1 << iota
	FaultWrite
	FaultExec
)

// VMM is the external collaborator that actually resolves a fault --
// copy-on-write, demand paging, growing a stack -- named but left out of
// scope by spec.md §1. The fault handlers below only ever consult it.
type VMM interface {
	// PageFault attempts to resolve a fault at vaddr for the given
	// action. It returns true if the fault was resolved and execution
	// may resume.
	PageFault(vaddr VAddr, user bool, action FaultAction) bool
}

// RecoveryContext is the per-thread "I am doing a user-memory copy and
// know how to recover" marker, modeled on original_source's
// thread->usercopyctx: when a fault or GP occurs while one is installed,
// control returns to it with EFAULT rather than propagating the fault
// further.
type RecoveryContext struct {
	// Resume is invoked in place of further fault handling. It is
	// expected to make the faulting operation return an I/O-style error
	// to its caller (spec.md's EFAULT path).
	Resume func()
}

// Thread is the minimal thread-state view the fault handlers need: is
// this a user thread, does it have a recovery context installed, and how
// to deliver a fatal signal to it.
type Thread struct {
	User    bool
	Recover *RecoveryContext
	// Signal delivers a fatal signal (SIGSEGV) to this thread. Left nil
	// for kernel threads, which can never reach that branch.
	Signal func(sig int)
}

const sigSegv = 11

// PageFaultOutcome reports what the fault handler decided to do, so
// callers (and tests) can assert on the cascade without needing a real
// signal-delivery or panic mechanism.
type PageFaultOutcome int

const (
	FaultResolved PageFaultOutcome = iota
	FaultRecovered
	FaultSignaled
	FaultFatal
)

// HandlePageFault implements original_source's pfisr cascade: consult
// the VMM; if it can't resolve the fault, unwind to a usercopy recovery
// context if one is installed, else signal the user thread, else treat
// it as a fatal kernel fault.
func HandlePageFault(vmm VMM, th *Thread, vaddr VAddr, action FaultAction) PageFaultOutcome {
	if vmm.PageFault(vaddr, th.User, action) {
		return FaultResolved
	}
	if th.Recover != nil {
		rc := th.Recover
		th.Recover = nil
		rc.Resume()
		return FaultRecovered
	}
	if th.User {
		th.Signal(sigSegv)
		return FaultSignaled
	}
	return FaultFatal
}

// HandleGeneralProtectionFault implements original_source's gpfisr: it
// never consults the VMM (a GP fault isn't a missing mapping), only the
// recovery-context / signal / fatal cascade.
func HandleGeneralProtectionFault(th *Thread) PageFaultOutcome {
	if th.Recover != nil {
		rc := th.Recover
		th.Recover = nil
		rc.Resume()
		return FaultRecovered
	}
	if th.User {
		th.Signal(sigSegv)
		return FaultSignaled
	}
	return FaultFatal
}
