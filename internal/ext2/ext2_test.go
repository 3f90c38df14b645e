package ext2

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/desmonHak/talus/internal/blockdev"
	"github.com/desmonHak/talus/internal/kernerr"
)

func formatted(t *testing.T, totalBlocks uint32) *Filesystem {
	t.Helper()
	dev := blockdev.NewMemDevice(int64(totalBlocks) * 1024)
	opts := DefaultMkfsOptions(totalBlocks)
	fs, k := Mkfs(dev, opts)
	require.Equal(t, kernerr.OK, k)
	return fs
}

func TestMkfsThenMountRoundTrips(t *testing.T) {
	fs := formatted(t, 4096)

	root, k := fs.Root()
	require.Equal(t, kernerr.OK, k)
	require.Equal(t, TypeDir, root.Inode().Type())
	require.Equal(t, uint16(2), root.Inode().Links())

	sb := fs.Superblock()
	require.Equal(t, uint16(Signature), sb.Signature())
	require.Equal(t, uint16(StateClean), sb.State())
}

func TestCreateWriteReadFile(t *testing.T) {
	fs := formatted(t, 4096)
	root, k := fs.Root()
	require.Equal(t, kernerr.OK, k)

	n, k := fs.Create(root, "hello.txt", TypeRegular, 0o644, 0, 0)
	require.Equal(t, kernerr.OK, k)

	data := []byte("hello, ext2")
	written, k := n.Write(data, 0)
	require.Equal(t, kernerr.OK, k)
	require.Equal(t, len(data), written)

	buf := make([]byte, len(data))
	got, k := n.Read(buf, 0)
	require.Equal(t, kernerr.OK, k)
	require.Equal(t, len(data), got)
	require.True(t, bytes.Equal(data, buf))
}

func TestCreateDuplicateNameFails(t *testing.T) {
	fs := formatted(t, 4096)
	root, _ := fs.Root()

	_, k := fs.Create(root, "dup", TypeRegular, 0o644, 0, 0)
	require.Equal(t, kernerr.OK, k)

	_, k = fs.Create(root, "dup", TypeRegular, 0o644, 0, 0)
	require.Equal(t, kernerr.Exists, k)
}

func TestLookupMissingNameNotFound(t *testing.T) {
	fs := formatted(t, 4096)
	root, _ := fs.Root()

	_, k := root.Lookup("does-not-exist")
	require.Equal(t, kernerr.NotFound, k)
}

func TestMkdirLinksParentAndCreatesDotEntries(t *testing.T) {
	fs := formatted(t, 4096)
	root, _ := fs.Root()

	dir, k := fs.Create(root, "subdir", TypeDir, 0o755, 0, 0)
	require.Equal(t, kernerr.OK, k)
	require.Equal(t, uint16(2), dir.Inode().Links())
	require.Equal(t, uint16(3), root.Inode().Links())

	self, k := dir.Lookup(".")
	require.Equal(t, kernerr.OK, k)
	require.Equal(t, dir.ID(), self.ID())

	parent, k := dir.Lookup("..")
	require.Equal(t, kernerr.OK, k)
	require.Equal(t, root.ID(), parent.ID())
}

func TestWriteGrowsFileAcrossBlocks(t *testing.T) {
	fs := formatted(t, 4096)
	root, _ := fs.Root()
	n, k := fs.Create(root, "big.bin", TypeRegular, 0o644, 0, 0)
	require.Equal(t, kernerr.OK, k)

	payload := bytes.Repeat([]byte{0xab}, int(fs.BlockSize())*3+17)
	written, k := n.Write(payload, 0)
	require.Equal(t, kernerr.OK, k)
	require.Equal(t, len(payload), written)
	require.EqualValues(t, len(payload), n.Inode().Size())

	buf := make([]byte, len(payload))
	got, k := n.Read(buf, 0)
	require.Equal(t, kernerr.OK, k)
	require.Equal(t, len(payload), got)
	require.True(t, bytes.Equal(payload, buf))
}

func TestGetDentsListsCreatedEntries(t *testing.T) {
	fs := formatted(t, 4096)
	root, _ := fs.Root()
	fs.Create(root, "a", TypeRegular, 0o644, 0, 0)
	fs.Create(root, "b", TypeRegular, 0o644, 0, 0)

	buf := make([]DirEntry, 16)
	count, k := root.GetDents(buf, 0)
	require.Equal(t, kernerr.OK, k)

	names := map[string]bool{}
	for _, d := range buf[:count] {
		names[d.Name] = true
	}
	require.True(t, names["."])
	require.True(t, names[".."])
	require.True(t, names["a"])
	require.True(t, names["b"])
}

func TestLinkAddsSecondName(t *testing.T) {
	fs := formatted(t, 4096)
	root, _ := fs.Root()
	n, k := fs.Create(root, "orig", TypeRegular, 0o644, 0, 0)
	require.Equal(t, kernerr.OK, k)

	require.Equal(t, kernerr.OK, fs.Link(root, n, "alias"))

	viaAlias, k := root.Lookup("alias")
	require.Equal(t, kernerr.OK, k)
	require.Equal(t, n.ID(), viaAlias.ID())
	require.Equal(t, uint16(2), n.Inode().Links())
}

func TestSymlinkUnsupported(t *testing.T) {
	fs := formatted(t, 4096)
	root, _ := fs.Root()
	_, k := fs.Symlink(root, "link", "target", 0, 0)
	require.Equal(t, kernerr.Unsupported, k)
}

func TestFsckStyleCountersBalance(t *testing.T) {
	fs := formatted(t, 4096)
	root, _ := fs.Root()
	fs.Create(root, "f1", TypeRegular, 0o644, 0, 0)

	sb := fs.Superblock()
	var freeBlocks, freeInodes uint32
	for bg := uint32(0); bg < fs.GroupCount(); bg++ {
		d, k := fs.Descriptor(bg)
		require.Equal(t, kernerr.OK, k)
		freeBlocks += uint32(d.FreeBlocks())
		freeInodes += uint32(d.FreeInodes())
	}
	require.Equal(t, sb.UnallocatedBlocks(), freeBlocks)
	require.Equal(t, sb.UnallocatedInodes(), freeInodes)
}
