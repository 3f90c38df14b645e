package ext2

import (
	"sync"
	"time"

	"github.com/desmonHak/talus/internal/blockdev"
	"github.com/desmonHak/talus/internal/kernerr"
	"github.com/desmonHak/talus/internal/kernlog"
)

// Filesystem is one mounted ext2 instance: the superblock, the geometry
// derived from it, and the locks protecting the on-disk structures it
// shares across every open Node. Grounded on original_source's
// ext2fs_t, including its lock split (superblocklock / inodetablelock /
// rootlock / descriptorlock / inodewritelock) rather than one coarse
// filesystem-wide mutex.
type Filesystem struct {
	Backing blockdev.Device

	sbMu       sync.Mutex
	sbData     []byte
	superblock *Superblock

	bgCount   uint32
	blockSize uint32

	descMu           sync.Mutex // descriptorlock
	lowestFreeInoBG  uint32
	lowestFreeBlkBG  uint32

	inoWriteMu sync.Mutex // inodewritelock

	cacheMu sync.Mutex // inodetablelock
	cache   map[uint32]*Node

	rootMu sync.Mutex
	root   *Node

	log *kernlog.Logger
}

// Superblock exposes the mounted instance's superblock for callers that
// need to read its counters directly (e.g. an fsck tool), without
// reaching into the unexported field.
func (fs *Filesystem) Superblock() *Superblock { return fs.superblock }

// GroupCount reports how many block groups the mounted image has.
func (fs *Filesystem) GroupCount() uint32 { return fs.bgCount }

// BlockSize reports the mounted image's block size in bytes.
func (fs *Filesystem) BlockSize() uint32 { return fs.blockSize }

// Descriptor reads block group bg's descriptor, for callers outside the
// package (e.g. an fsck tool) that need to inspect per-group counters.
func (fs *Filesystem) Descriptor(bg uint32) (*GroupDescriptor, kernerr.Kind) {
	fs.descMu.Lock()
	defer fs.descMu.Unlock()
	return fs.readDescriptor(bg)
}

// geometry helpers, one-to-one with original_source's GROUP_GETINODE /
// GROUP_GETBLOCK / BLOCK_GETDISKOFFSET / BLOCK_GETGROUP / BLOCK_GETINDEX
// / INODE_GETGROUP / INODE_GETINDEX / INODE_GETDISKOFFSET /
// INODE_SECTSPERBLOCK / DESC_GETDISKOFFSET / BLOCKS_IN_INDIRECT macros.

func (fs *Filesystem) groupFirstInode(bg uint32) uint32 {
	return bg*fs.superblock.InodesPerGroup() + 1
}

func (fs *Filesystem) groupFirstBlock(bg uint32) uint32 {
	return bg*fs.superblock.BlocksPerGroup() + fs.superblock.SuperblockStart()
}

func (fs *Filesystem) blockDiskOffset(block uint32) int64 {
	return int64(fs.blockSize) * int64(block)
}

func (fs *Filesystem) blockGroupOf(block uint32) uint32 {
	return (block - fs.superblock.SuperblockStart()) / fs.superblock.BlocksPerGroup()
}

func (fs *Filesystem) blockIndexIn(block uint32) uint32 {
	return (block - fs.superblock.SuperblockStart()) % fs.superblock.BlocksPerGroup()
}

func (fs *Filesystem) inodeGroupOf(id uint32) uint32 {
	return (id - 1) / fs.superblock.InodesPerGroup()
}

func (fs *Filesystem) inodeIndexIn(id uint32) uint32 {
	return (id - 1) % fs.superblock.InodesPerGroup()
}

func (fs *Filesystem) inodeDiskOffset(table int64, id uint32) int64 {
	return table + int64(fs.inodeIndexIn(id))*int64(fs.superblock.InodeSize())
}

func (fs *Filesystem) sectorsPerBlock() uint32 {
	return fs.blockSize / 512
}

func (fs *Filesystem) descriptorDiskOffset(bg uint32) int64 {
	return fs.blockDiskOffset(fs.superblock.SuperblockStart()+1) + int64(GroupDescSize)*int64(bg)
}

func (fs *Filesystem) blocksInIndirect() uint32 {
	return fs.blockSize / blockPtrSize
}

// readFull reads exactly len(buf) bytes at offset, translating any short
// read into kernerr.IO, matching ext2.c's readc != expected checks.
func (fs *Filesystem) readFull(buf []byte, offset int64) kernerr.Kind {
	n, err := fs.Backing.ReadAt(buf, offset)
	if err != nil || n != len(buf) {
		return kernerr.IO
	}
	return kernerr.OK
}

func (fs *Filesystem) writeFull(buf []byte, offset int64) kernerr.Kind {
	n, err := fs.Backing.WriteAt(buf, offset)
	if err != nil || n != len(buf) {
		return kernerr.IO
	}
	return kernerr.OK
}

func (fs *Filesystem) readDescriptor(bg uint32) (*GroupDescriptor, kernerr.Kind) {
	buf := make([]byte, GroupDescSize)
	if k := fs.readFull(buf, fs.descriptorDiskOffset(bg)); k != kernerr.OK {
		return nil, k
	}
	return NewGroupDescriptor(buf), kernerr.OK
}

func (fs *Filesystem) writeDescriptor(bg uint32, d *GroupDescriptor) kernerr.Kind {
	return fs.writeFull(d.Data, fs.descriptorDiskOffset(bg))
}

// syncSuperblock writes the in-memory superblock back to its fixed
// offset (ext2.c's syncsuperblock). Caller must hold sbMu.
func (fs *Filesystem) syncSuperblock() kernerr.Kind {
	return fs.writeFull(fs.sbData, SuperblockOffset)
}

// Mount reads and validates the superblock on backing, returning a ready
// Filesystem. Grounded on original_source's ext2_mount: signature check,
// version-0 rejection, and the inode-count-derived vs block-count-
// derived block-group-count cross-check.
func Mount(backing blockdev.Device, log *kernlog.Logger) (*Filesystem, kernerr.Kind) {
	if log == nil {
		log = kernlog.Default
	}
	fs := &Filesystem{
		Backing: backing,
		sbData:  make([]byte, SuperblockSize),
		cache:   make(map[uint32]*Node),
		log:     log,
	}
	if k := fs.readFull(fs.sbData, SuperblockOffset); k != kernerr.OK {
		return nil, k
	}
	fs.superblock = NewSuperblock(fs.sbData)
	sb := fs.superblock

	if sb.Signature() != Signature {
		log.Warnf("bad ext2 signature")
		return nil, kernerr.BadInput
	}
	if sb.VersionMajor() == 0 {
		log.Warnf("ext2 revision 0 is not supported")
		return nil, kernerr.Unsupported
	}

	if unknown := sb.RequiredFeatures() &^ uint32(knownRequiredFeatures); unknown != 0 {
		log.Warnf("required feature bits %#x are not implemented by this engine", unknown)
		return nil, kernerr.Unsupported
	}

	inoBG := roundUpDiv(sb.InodeCount(), sb.InodesPerGroup())
	blkBG := roundUpDiv(sb.BlockCount(), sb.BlocksPerGroup())
	if inoBG != blkBG {
		log.Warnf("block group count mismatch between inode and block counts")
		return nil, kernerr.BadInput
	}

	if sb.MountsAfterCheck() == sb.MaxMountsBeforeCheck() && sb.MaxMountsBeforeCheck() != 0 {
		log.Warnf("exceeded the number of mounts allowed before a filesystem check")
	}
	if interval := sb.MaxCheckInterval(); interval != 0 {
		if now := uint32(time.Now().Unix()); now-sb.CheckTime() >= interval {
			log.Warnf("exceeded the maximum time allowed between filesystem checks")
		}
	}

	fs.bgCount = inoBG
	fs.blockSize = sb.BlockSize()

	sb.SetMountsAfterCheck(sb.MountsAfterCheck() + 1)
	sb.SetTimeOfLastMount(uint32(time.Now().Unix()))
	if k := fs.syncSuperblock(); k != kernerr.OK {
		return nil, k
	}

	return fs, kernerr.OK
}

func roundUpDiv(n, d uint32) uint32 {
	if d == 0 {
		return 0
	}
	return (n + d - 1) / d
}
