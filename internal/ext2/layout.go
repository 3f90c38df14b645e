// Package ext2 implements the on-disk ext2 filesystem engine: superblock
// and block-group-descriptor management, bitmap allocation, the inode
// direct/indirect block tree, directory entries, and the VFS-facing
// Filesystem/Node bridge.
//
// It has no single teacher package -- biscuit's own fs package
// implements a different, simpler on-disk format -- so the on-disk
// struct layouts and every algorithm here are grounded directly on
// original_source's kernel-src/fs/ext2.c, the C engine this package's
// spec was distilled from. The Go *expression* of that format (raw byte
// slices reinterpreted through small accessor methods, one mutex per
// protected resource, `_t`-free but otherwise idiomatic) follows
// biscuit's fs/super.go fieldr/fieldw convention, adapted to ext2's
// mixed-width packed fields instead of super.go's uniform 8-byte slots.
package ext2

const (
	// SuperblockOffset is the fixed byte offset of the superblock,
	// regardless of block size (ext2.c's SUPERBLOCK_OFFSET).
	SuperblockOffset = 1024
	// SuperblockSize is the on-disk size of the superblock structure.
	SuperblockSize = 220
	// Signature is the magic value identifying an ext2 superblock.
	Signature = 0xef53

	// StateClean and StateError are the superblock's filesystem-state
	// values (ext2.c's SB_STATE_*).
	StateClean = 1
	StateError = 2

	// RootInode is the fixed inode number of the filesystem root.
	RootInode = 2

	// GroupDescSize is the on-disk size of a block group descriptor.
	GroupDescSize = 32

	// InodeDiskSize is the on-disk size of one inode record.
	InodeDiskSize = 128

	// DirentHeaderSize is the fixed portion of a directory entry, before
	// its variable-length name.
	DirentHeaderSize = 8

	// FastSymlinkMax is the largest symlink target stored inline in the
	// inode's direct-pointer array rather than in a data block.
	FastSymlinkMax = 60

	// blockPtrSize is the on-disk size of a block pointer (blockptr_t).
	blockPtrSize = 4
)

// Inode type nibbles, ext2.c's INODE_TYPE_*.
const (
	TypeFIFO    = 0x1
	TypeCharDev = 0x2
	TypeDir     = 0x4
	TypeBlkDev  = 0x6
	TypeRegular = 0x8
	TypeSymlink = 0xa
	TypeSocket  = 0xc
)

// Directory entry type tags, ext2.c's dent->type values. These are the
// standard ext2 dirent file-type codes, distinct from the inode type
// nibbles above; typeToDentType (ops.go) converts an inode type to its
// dirent tag.
const (
	DentUnknown = 0
	DentRegular = 1
	DentDir     = 2
	DentCharDev = 3
	DentBlkDev  = 4
	DentFIFO    = 5
	DentSocket  = 6
	DentSymlink = 7
)

// Required-feature incompat bits, the standard ext2 requiredfeatures
// values. ext2.c itself never checks these (left as a "// TODO features
// check"); this engine does, since it must refuse images that need
// on-disk behavior it doesn't implement rather than silently
// misinterpreting them.
const (
	FeatureIncompatCompression = 0x0001
	FeatureIncompatFileType    = 0x0002
	FeatureIncompatRecover     = 0x0004
	FeatureIncompatJournalDev  = 0x0008
	FeatureIncompatMetaBG      = 0x0010

	// knownRequiredFeatures is every required-feature bit this engine
	// understands. Dirent entries always carry a file-type byte
	// (Dirent.Type), so FileType is the only bit it can honor; every
	// other required bit implies on-disk behavior (journal replay,
	// block-group relocation, compression) this engine doesn't have.
	knownRequiredFeatures = FeatureIncompatFileType
)
