package ext2

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"

	"github.com/desmonHak/talus/internal/blockdev"
	"github.com/desmonHak/talus/internal/kernerr"
)

// MkfsOptions configures a freshly formatted image. Grounded on
// original_source's ext2_mount-time expectations of what a valid
// superblock/descriptor-table/bitmap layout looks like; this is the
// writer side of that same contract.
type MkfsOptions struct {
	TotalBlocks     uint32
	BlockSize       uint32 // must be a power of two multiple of 1024
	BlocksPerGroup  uint32
	InodesPerGroup  uint32
	VolumeName      string
}

// DefaultMkfsOptions returns sane defaults for a small image: 1 KiB
// blocks, 8192 blocks per group (the ext2 convention of one bitmap block
// covering blocksize*8 blocks), 2048 inodes per group.
func DefaultMkfsOptions(totalBlocks uint32) MkfsOptions {
	return MkfsOptions{
		TotalBlocks:    totalBlocks,
		BlockSize:      1024,
		BlocksPerGroup: 8192,
		InodesPerGroup: 2048,
	}
}

// Mkfs formats dev with a fresh ext2 filesystem containing just a root
// directory, and returns a Filesystem already mounted on it.
func Mkfs(dev blockdev.Device, opts MkfsOptions) (*Filesystem, kernerr.Kind) {
	bgCount := roundUpDiv(opts.TotalBlocks, opts.BlocksPerGroup)
	blockSizeShift := shiftFor(opts.BlockSize)

	sbData := make([]byte, SuperblockSize)
	sb := NewSuperblock(sbData)
	sb.SetInodeCount(bgCount * opts.InodesPerGroup)
	sb.SetBlockCount(opts.TotalBlocks)
	sb.SetSuperblockStart(SuperblockOffset / opts.BlockSize)
	sb.SetBlockSizeShift(blockSizeShift)
	sb.SetBlocksPerGroup(opts.BlocksPerGroup)
	sb.SetInodesPerGroup(opts.InodesPerGroup)
	sb.SetSignature(Signature)
	sb.SetState(StateClean)
	sb.SetVersionMajor(1)
	sb.SetFirstUsableInode(11)
	sb.SetInodeSize(InodeDiskSize)
	id, _ := uuid.New().MarshalBinary()
	var fsid [16]byte
	copy(fsid[:], id)
	sb.SetFSID(fsid)
	copy(sbData[120:136], opts.VolumeName) // ext2 volume name field, truncated to 16 bytes

	// Lay the descriptor table immediately after the superblock's block,
	// then the per-group bitmaps and inode tables, matching ext2.c's
	// DESC_GETDISKOFFSET(fs, 0) == first block past superblockstart+1.
	descTableBlocks := roundUpDiv(bgCount*GroupDescSize, opts.BlockSize)
	blockBitmapBlocks := uint32(1) // one bitmap block covers blocksize*8 blocks; BlocksPerGroup is sized for that
	inodeBitmapBlocks := uint32(1)
	inodeTableBlocks := roundUpDiv(opts.InodesPerGroup*InodeDiskSize, opts.BlockSize)

	nextBlock := sb.SuperblockStart() + 1 + descTableBlocks

	totalUnallocBlocks := uint32(0)
	totalUnallocInodes := uint32(0)

	descriptors := make([]*GroupDescriptor, bgCount)
	for bg := uint32(0); bg < bgCount; bg++ {
		d := NewGroupDescriptor(make([]byte, GroupDescSize))
		d.SetBlockBitmap(nextBlock)
		nextBlock += blockBitmapBlocks
		d.SetInodeBitmap(nextBlock)
		nextBlock += inodeBitmapBlocks
		d.SetInodeTable(nextBlock)
		nextBlock += inodeTableBlocks

		metaBlocksInGroup := blockBitmapBlocks + inodeBitmapBlocks + inodeTableBlocks
		if bg == 0 {
			metaBlocksInGroup += 1 + descTableBlocks // superblock + descriptor table live in group 0
		}
		freeBlocks := opts.BlocksPerGroup - metaBlocksInGroup
		if bg == 0 {
			freeBlocks-- // root inode's data block, reserved below
		}
		d.SetFreeBlocks(uint16(freeBlocks))
		d.SetFreeInodes(uint16(opts.InodesPerGroup))
		if bg == 0 {
			d.SetFreeInodes(uint16(opts.InodesPerGroup - 10)) // inodes 1..10 reserved
			d.SetDirCount(1)                                  // root directory
		}

		totalUnallocBlocks += freeBlocks
		totalUnallocInodes += uint32(d.FreeInodes())
		descriptors[bg] = d
	}

	sb.SetUnallocatedBlocks(totalUnallocBlocks)
	sb.SetUnallocatedInodes(totalUnallocInodes)
	sb.SetTimeOfLastWrite(uint32(time.Now().Unix()))

	if _, err := dev.WriteAt(sbData, SuperblockOffset); err != nil {
		return nil, kernerr.IO
	}
	for bg, d := range descriptors {
		off := int64(opts.BlockSize)*int64(sb.SuperblockStart()+1) + int64(GroupDescSize)*int64(bg)
		if _, err := dev.WriteAt(d.Data, off); err != nil {
			return nil, kernerr.IO
		}
	}

	// Zero every bitmap, then mark the reserved/used bits: block 0 is
	// never used in ext2 (block numbers are 1-based relative to
	// superblockstart), inodes 1..10 are reserved, and the root
	// directory's inode (2) and its single data block are both marked
	// used up front.
	for bg, d := range descriptors {
		blockBM := make([]byte, opts.BlockSize*8/8)
		inodeBM := make([]byte, opts.InodesPerGroup/8)
		if bg == 0 {
			for b := uint32(0); b < 1+descTableBlocks+blockBitmapBlocks+inodeBitmapBlocks+inodeTableBlocks+1; b++ {
				blockBM[b/8] |= 1 << (b % 8)
			}
			for i := uint32(0); i < 10; i++ {
				inodeBM[i/8] |= 1 << (i % 8)
			}
		}
		if _, err := dev.WriteAt(blockBM, int64(opts.BlockSize)*int64(d.BlockBitmap())); err != nil {
			return nil, kernerr.IO
		}
		if _, err := dev.WriteAt(inodeBM, int64(opts.BlockSize)*int64(d.InodeBitmap())); err != nil {
			return nil, kernerr.IO
		}
	}

	// Write the root inode (directory, 755, containing "." and "..").
	rootDataBlock := descriptors[0].InodeTable() + inodeTableBlocks
	rootInodeData := make([]byte, InodeDiskSize)
	rootInode := NewInode(rootInodeData)
	rootInode.SetType(TypeDir)
	rootInode.SetPerm(0o755)
	rootInode.SetLinks(2)
	now := uint32(time.Now().Unix())
	rootInode.SetAtime(now)
	rootInode.SetCtime(now)
	rootInode.SetMtime(now)
	rootInode.SetDirectPointer(0, rootDataBlock)
	rootInode.SetSectorCount(opts.BlockSize / 512)
	rootInode.SetSize(uint64(opts.BlockSize))

	rootTableOffset := int64(opts.BlockSize) * int64(descriptors[0].InodeTable())
	rootDiskOffset := rootTableOffset + int64(InodeGetIndex(RootInode, opts.InodesPerGroup))*int64(InodeDiskSize)
	if _, err := dev.WriteAt(rootInodeData, rootDiskOffset); err != nil {
		return nil, kernerr.IO
	}

	dirBlock := make([]byte, opts.BlockSize)
	writeBootstrapDirent(dirBlock, 0, RootInode, ".", DentDir, opts.BlockSize/2)
	writeBootstrapDirent(dirBlock, int(opts.BlockSize/2), RootInode, "..", DentDir, opts.BlockSize/2)
	if _, err := dev.WriteAt(dirBlock, int64(opts.BlockSize)*int64(rootDataBlock)); err != nil {
		return nil, kernerr.IO
	}

	return Mount(dev, nil)
}

func writeBootstrapDirent(buf []byte, off int, inode uint32, name string, typ uint8, size uint32) {
	binary.LittleEndian.PutUint32(buf[off:], inode)
	binary.LittleEndian.PutUint16(buf[off+4:], uint16(size))
	buf[off+6] = uint8(len(name))
	buf[off+7] = typ
	copy(buf[off+DirentHeaderSize:], name)
}

// InodeGetIndex mirrors Filesystem.inodeIndexIn, exported for mkfs's use
// before a Filesystem object exists to call the method on.
func InodeGetIndex(id, inodesPerGroup uint32) uint32 {
	return (id - 1) % inodesPerGroup
}

func shiftFor(blockSize uint32) uint32 {
	shift := uint32(0)
	for sz := uint32(1024); sz < blockSize; sz <<= 1 {
		shift++
	}
	return shift
}

func blockFor(byteOffset int64, blockSize uint32) uint32 {
	return uint32(roundUpDiv64(uint64(byteOffset), uint64(blockSize)))
}
