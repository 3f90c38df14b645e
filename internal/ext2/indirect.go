package ext2

import (
	"encoding/binary"

	"github.com/desmonHak/talus/internal/kernerr"
)

// getInodeBlock resolves the physical block number backing the index'th
// logical block of node, descending through the singly/doubly/triply
// indirect pointers as needed. Grounded directly on original_source's
// getinodeblock.
func (fs *Filesystem) getInodeBlock(n *Node, index uint32) (uint32, kernerr.Kind) {
	inode := n.Inode()
	if index < 12 {
		return inode.DirectPointer(int(index)), kernerr.OK
	}
	index -= 12

	blocksInIndirect := fs.blocksInIndirect()
	singlyIdx := index % blocksInIndirect
	singlyOffset := int64(singlyIdx) * blockPtrSize
	singly := index / blocksInIndirect

	if singly == 0 {
		return fs.readBlockPtr(fs.blockDiskOffset(inode.SinglyPointer()) + singlyOffset)
	}
	singly--
	doublyIdx := singly % blocksInIndirect
	doublyOffset := int64(doublyIdx) * blockPtrSize
	doubly := singly / blocksInIndirect

	if doubly == 0 {
		singlyPtr, k := fs.readBlockPtr(fs.blockDiskOffset(inode.DoublyPointer()) + doublyOffset)
		if k != kernerr.OK {
			return 0, k
		}
		return fs.readBlockPtr(fs.blockDiskOffset(singlyPtr) + singlyOffset)
	}
	doubly--
	triplyIdx := doubly % blocksInIndirect
	triplyOffset := int64(triplyIdx) * blockPtrSize

	doublyPtr, k := fs.readBlockPtr(fs.blockDiskOffset(inode.TriplyPointer()) + triplyOffset)
	if k != kernerr.OK {
		return 0, k
	}
	singlyPtr, k := fs.readBlockPtr(fs.blockDiskOffset(doublyPtr) + doublyOffset)
	if k != kernerr.OK {
		return 0, k
	}
	return fs.readBlockPtr(fs.blockDiskOffset(singlyPtr) + singlyOffset)
}

func (fs *Filesystem) readBlockPtr(offset int64) (uint32, kernerr.Kind) {
	var buf [blockPtrSize]byte
	if k := fs.readFull(buf[:], offset); k != kernerr.OK {
		return 0, k
	}
	return binary.LittleEndian.Uint32(buf[:]), kernerr.OK
}

func (fs *Filesystem) writeBlockPtr(offset int64, v uint32) kernerr.Kind {
	var buf [blockPtrSize]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return fs.writeFull(buf[:], offset)
}

// allocateAndSetPointer allocates a fresh block and writes its number at
// setOffset, accounting the inode's sector count (ext2.c's allocandset).
func (fs *Filesystem) allocateAndSetPointer(n *Node, setOffset int64) (uint32, kernerr.Kind) {
	block, k := fs.allocateStructure(false)
	if k != kernerr.OK {
		return 0, k
	}
	if k := fs.writeBlockPtr(setOffset, block); k != kernerr.OK {
		fs.freeStructure(block, false)
		return 0, k
	}
	inode := n.Inode()
	inode.SetSectorCount(inode.SectorCount() + fs.sectorsPerBlock())
	return block, kernerr.OK
}

// allocateIndirectLevel allocates a fresh singly/doubly/triply indirect
// block and installs it in the inode, accounting the sector count
// (ext2.c's inodeallocateindirect).
func (fs *Filesystem) allocateIndirectLevel(n *Node, level int) kernerr.Kind {
	block, k := fs.allocateStructure(false)
	if k != kernerr.OK {
		return k
	}
	inode := n.Inode()
	switch level {
	case 1:
		inode.SetSinglyPointer(block)
	case 2:
		inode.SetDoublyPointer(block)
	case 3:
		inode.SetTriplyPointer(block)
	}
	inode.SetSectorCount(inode.SectorCount() + fs.sectorsPerBlock())
	return kernerr.OK
}

// setInodeBlock installs block as the index'th logical block of node,
// allocating any missing indirect level along the way, freeing whatever
// block previously occupied that slot, and persisting the inode record.
// Grounded directly on original_source's setinodeblock, including its
// "triply only past doubly-indirect range, doubly only past singly"
// cascade.
func (fs *Filesystem) setInodeBlock(n *Node, index uint32, block uint32) kernerr.Kind {
	inode := n.Inode()
	blocksInIndirect := fs.blocksInIndirect()

	useDirect := index < 12
	var directIndex uint32 = index

	var useSingly, useDoubly, useTriply bool
	var singly, doubly uint32
	var singlyOffset, doublyOffset, triplyOffset int64

	idx := index
	if !useDirect {
		idx -= 12
		useSingly = true
		singly = idx / blocksInIndirect
		singlyOffset = int64(idx%blocksInIndirect) * blockPtrSize
	}
	if useSingly && singly > 0 {
		singly--
		useDoubly = true
		doubly = singly / blocksInIndirect
		doublyOffset = int64(singly%blocksInIndirect) * blockPtrSize
	}
	if useDoubly && doubly > 0 {
		doubly--
		useTriply = true
		triplyOffset = int64(doubly%blocksInIndirect) * blockPtrSize
	}

	var oldBlock uint32
	if useDirect {
		oldBlock = inode.DirectPointer(int(directIndex))
		inode.SetDirectPointer(int(directIndex), block)
	} else {
		var doublyPtr, singlyPtr uint32
		var k kernerr.Kind

		switch {
		case useTriply && inode.TriplyPointer() == 0:
			if k = fs.allocateIndirectLevel(n, 3); k != kernerr.OK {
				return k
			}
			if doublyPtr, k = fs.allocateAndSetPointer(n, fs.blockDiskOffset(inode.TriplyPointer())+triplyOffset); k != kernerr.OK {
				return k
			}
		case useTriply:
			offset := fs.blockDiskOffset(inode.TriplyPointer()) + triplyOffset
			if doublyPtr, k = fs.readBlockPtr(offset); k != kernerr.OK {
				return k
			}
			if doublyPtr == 0 {
				if doublyPtr, k = fs.allocateAndSetPointer(n, offset); k != kernerr.OK {
					return k
				}
			}
		case useDoubly:
			if inode.DoublyPointer() == 0 {
				if k = fs.allocateIndirectLevel(n, 2); k != kernerr.OK {
					return k
				}
			}
			doublyPtr = inode.DoublyPointer()
		}

		if useDoubly {
			offset := fs.blockDiskOffset(doublyPtr) + doublyOffset
			if singlyPtr, k = fs.readBlockPtr(offset); k != kernerr.OK {
				return k
			}
			if singlyPtr == 0 {
				if singlyPtr, k = fs.allocateAndSetPointer(n, offset); k != kernerr.OK {
					return k
				}
			}
		} else {
			if inode.SinglyPointer() == 0 {
				if k = fs.allocateIndirectLevel(n, 1); k != kernerr.OK {
					return k
				}
			}
			singlyPtr = inode.SinglyPointer()
		}

		offset := fs.blockDiskOffset(singlyPtr) + singlyOffset
		if oldBlock, k = fs.readBlockPtr(offset); k != kernerr.OK {
			return k
		}
		if k = fs.writeBlockPtr(offset, block); k != kernerr.OK {
			return k
		}
	}

	if oldBlock != 0 {
		inode.SetSectorCount(inode.SectorCount() - fs.sectorsPerBlock())
		fs.freeStructure(oldBlock, false)
	}
	if block != 0 {
		inode.SetSectorCount(inode.SectorCount() + fs.sectorsPerBlock())
	}

	return fs.writeInode(n)
}

// resizeInode grows or shrinks node to newSize bytes, allocating or
// freeing whole blocks as needed (ext2.c's resizeinode).
func (fs *Filesystem) resizeInode(n *Node, newSize uint64) kernerr.Kind {
	inode := n.Inode()
	newBlocks := uint32(roundUpDiv64(newSize, uint64(fs.blockSize)))
	curBlocks := uint32(roundUpDiv64(inode.Size(), uint64(fs.blockSize)))

	if newBlocks > curBlocks {
		for i := curBlocks; i < newBlocks; i++ {
			block, k := fs.allocateStructure(false)
			if k != kernerr.OK {
				return k
			}
			if k := fs.setInodeBlock(n, i, block); k != kernerr.OK {
				return k
			}
		}
	} else if newBlocks < curBlocks {
		for i := newBlocks; i < curBlocks; i++ {
			if k := fs.setInodeBlock(n, i, 0); k != kernerr.OK {
				return k
			}
		}
	}

	inode.SetSize(newSize)
	return fs.writeInode(n)
}

func roundUpDiv64(n, d uint64) uint64 {
	if d == 0 {
		return 0
	}
	return (n + d - 1) / d
}
