package mmu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type stubVMM struct{ resolves bool }

func (v stubVMM) PageFault(vaddr VAddr, user bool, action FaultAction) bool { return v.resolves }

func TestHandlePageFaultResolved(t *testing.T) {
	th := &Thread{User: true}
	outcome := HandlePageFault(stubVMM{resolves: true}, th, VAddr(0x1000), FaultRead)
	require.Equal(t, FaultResolved, outcome)
}

func TestHandlePageFaultRecoversUsercopy(t *testing.T) {
	resumed := false
	th := &Thread{User: true, Recover: &RecoveryContext{Resume: func() { resumed = true }}}
	outcome := HandlePageFault(stubVMM{resolves: false}, th, VAddr(0x1000), FaultWrite)
	require.Equal(t, FaultRecovered, outcome)
	require.True(t, resumed)
	require.Nil(t, th.Recover)
}

func TestHandlePageFaultSignalsUserThread(t *testing.T) {
	signaled := -1
	th := &Thread{User: true, Signal: func(sig int) { signaled = sig }}
	outcome := HandlePageFault(stubVMM{resolves: false}, th, VAddr(0x1000), FaultWrite)
	require.Equal(t, FaultSignaled, outcome)
	require.Equal(t, sigSegv, signaled)
}

func TestHandlePageFaultFatalForKernelThread(t *testing.T) {
	th := &Thread{User: false}
	outcome := HandlePageFault(stubVMM{resolves: false}, th, VAddr(0x1000), FaultWrite)
	require.Equal(t, FaultFatal, outcome)
}

func TestHandleGeneralProtectionFaultNeverConsultsVMM(t *testing.T) {
	th := &Thread{User: false}
	outcome := HandleGeneralProtectionFault(th)
	require.Equal(t, FaultFatal, outcome)
}
