package kernerr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapReturnsNilForOK(t *testing.T) {
	require.NoError(t, Wrap("open", OK))
}

func TestWrapWrapsNonOK(t *testing.T) {
	err := Wrap("open", NotFound)
	require.Error(t, err)
	require.Equal(t, "open: not found", err.Error())
}

func TestStringOfUnknownKind(t *testing.T) {
	require.Contains(t, Kind(999).String(), "999")
}
