package ext2

import "github.com/desmonHak/talus/internal/kernerr"

// allocateStructure finds and marks used the lowest free block or inode,
// starting its search from the cached lowest-known-free block group, and
// updates the descriptor and superblock counters to match. Grounded
// directly on original_source's allocatestructure: same bit-inverted
// ctz-style scan (here a plain bit scan, since Go has no builtin ctz
// primitive worth reaching for over a byte loop), same "advance the
// cached lowest-free-bg hint only when a group is found to be full"
// behavior.
func (fs *Filesystem) allocateStructure(inode bool) (uint32, kernerr.Kind) {
	fs.descMu.Lock()
	defer fs.descMu.Unlock()

	bg := fs.lowestFreeBlkBG
	if inode {
		bg = fs.lowestFreeInoBG
	}

	fs.sbMu.Lock()
	exhausted := fs.superblock.UnallocatedBlocks() == 0
	if inode {
		exhausted = fs.superblock.UnallocatedInodes() == 0
	}
	fs.sbMu.Unlock()
	if exhausted {
		return 0, kernerr.NoSpace
	}

	var desc *GroupDescriptor
	for ; bg < fs.bgCount; bg++ {
		d, k := fs.readDescriptor(bg)
		if k != kernerr.OK {
			return 0, k
		}
		free := d.FreeBlocks()
		if inode {
			free = d.FreeInodes()
		}
		if free != 0 {
			desc = d
			break
		}
	}

	if inode {
		fs.lowestFreeInoBG = bg
	} else {
		fs.lowestFreeBlkBG = bg
	}
	if bg == fs.bgCount {
		return 0, kernerr.NoSpace
	}

	bmSize := fs.superblock.BlocksPerGroup() / 8
	bitmapBlock := desc.BlockBitmap()
	if inode {
		bmSize = fs.superblock.InodesPerGroup() / 8
		bitmapBlock = desc.InodeBitmap()
	}

	bm := make([]byte, bmSize)
	if k := fs.readFull(bm, fs.blockDiskOffset(bitmapBlock)); k != kernerr.OK {
		return 0, k
	}

	found := -1
	var byteIdx, bitIdx int
	for i, b := range bm {
		if b == 0xff {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) == 0 {
				byteIdx, bitIdx = i, bit
				found = i*8 + bit
				break
			}
		}
		if found >= 0 {
			break
		}
	}
	if found < 0 {
		return 0, kernerr.NoSpace
	}
	bm[byteIdx] |= 1 << bitIdx

	var id uint32
	if inode {
		id = fs.groupFirstInode(bg) + uint32(found)
	} else {
		id = fs.groupFirstBlock(bg) + uint32(found)
	}

	if k := fs.writeFull(bm, fs.blockDiskOffset(bitmapBlock)); k != kernerr.OK {
		return 0, k
	}

	if inode {
		desc.SetFreeInodes(desc.FreeInodes() - 1)
	} else {
		desc.SetFreeBlocks(desc.FreeBlocks() - 1)
	}
	if k := fs.writeDescriptor(bg, desc); k != kernerr.OK {
		return 0, k
	}

	if (inode && desc.FreeInodes() == 0) || (!inode && desc.FreeBlocks() == 0) {
		if inode {
			fs.lowestFreeInoBG++
		} else {
			fs.lowestFreeBlkBG++
		}
	}

	fs.sbMu.Lock()
	if inode {
		fs.superblock.SetUnallocatedInodes(fs.superblock.UnallocatedInodes() - 1)
	} else {
		fs.superblock.SetUnallocatedBlocks(fs.superblock.UnallocatedBlocks() - 1)
	}
	k := fs.syncSuperblock()
	fs.sbMu.Unlock()

	return id, k
}

// freeStructure clears a block or inode's bit and updates the
// descriptor and superblock counters to match. Grounded on
// original_source's freestructure.
func (fs *Filesystem) freeStructure(id uint32, inode bool) kernerr.Kind {
	var bg uint32
	if inode {
		bg = fs.inodeGroupOf(id)
	} else {
		bg = fs.blockGroupOf(id)
	}

	fs.descMu.Lock()
	defer fs.descMu.Unlock()

	desc, k := fs.readDescriptor(bg)
	if k != kernerr.OK {
		return k
	}

	bmSize := fs.superblock.BlocksPerGroup() / 8
	bitmapBlock := desc.BlockBitmap()
	index := fs.blockIndexIn(id)
	if inode {
		bmSize = fs.superblock.InodesPerGroup() / 8
		bitmapBlock = desc.InodeBitmap()
		index = fs.inodeIndexIn(id)
	}

	bm := make([]byte, bmSize)
	if k := fs.readFull(bm, fs.blockDiskOffset(bitmapBlock)); k != kernerr.OK {
		return k
	}

	bm[index/8] &^= 1 << (index % 8)

	if k := fs.writeFull(bm, fs.blockDiskOffset(bitmapBlock)); k != kernerr.OK {
		return k
	}

	if inode {
		desc.SetFreeInodes(desc.FreeInodes() + 1)
	} else {
		desc.SetFreeBlocks(desc.FreeBlocks() + 1)
	}
	if k := fs.writeDescriptor(bg, desc); k != kernerr.OK {
		return k
	}

	cur := fs.lowestFreeBlkBG
	if inode {
		cur = fs.lowestFreeInoBG
	}
	if bg < cur {
		if inode {
			fs.lowestFreeInoBG = bg
		} else {
			fs.lowestFreeBlkBG = bg
		}
	}

	fs.sbMu.Lock()
	if inode {
		fs.superblock.SetUnallocatedInodes(fs.superblock.UnallocatedInodes() + 1)
	} else {
		fs.superblock.SetUnallocatedBlocks(fs.superblock.UnallocatedBlocks() + 1)
	}
	k = fs.syncSuperblock()
	fs.sbMu.Unlock()

	return k
}
