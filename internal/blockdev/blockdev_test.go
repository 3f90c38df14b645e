package blockdev

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDeviceReadWriteRoundTrip(t *testing.T) {
	d := NewMemDevice(4096)
	data := []byte("some block contents")

	n, err := d.WriteAt(data, 100)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	buf := make([]byte, len(data))
	n, err = d.ReadAt(buf, 100)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.True(t, bytes.Equal(data, buf))
}

func TestMemDeviceGrowsOnOutOfRangeWrite(t *testing.T) {
	d := NewMemDevice(16)
	data := []byte("past the end")

	_, err := d.WriteAt(data, 32)
	require.NoError(t, err)
	require.GreaterOrEqual(t, d.Size(), int64(32+len(data)))
}
