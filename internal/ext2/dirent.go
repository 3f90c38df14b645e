package ext2

import (
	"encoding/binary"

	"github.com/desmonHak/talus/internal/kernerr"
)

// Dirent views a variable-length directory entry record in a byte
// buffer at the given offset, grounded on original_source's ext2dent_t:
// a fixed 8-byte header (inode, size, namelen, type) followed by an
// inline, non-NUL-terminated name.
type Dirent struct {
	Data []byte // the full buffer the entry lives in
	Off  int    // byte offset of this entry's header within Data
}

func (d Dirent) Inode() uint32 { return binary.LittleEndian.Uint32(d.Data[d.Off:]) }
func (d Dirent) SetInode(v uint32) { binary.LittleEndian.PutUint32(d.Data[d.Off:], v) }
func (d Dirent) Size() uint16  { return binary.LittleEndian.Uint16(d.Data[d.Off+4:]) }
func (d Dirent) SetSize(v uint16) { binary.LittleEndian.PutUint16(d.Data[d.Off+4:], v) }
func (d Dirent) NameLen() uint8 { return d.Data[d.Off+6] }
func (d Dirent) SetNameLen(v uint8) { d.Data[d.Off+6] = v }
func (d Dirent) Type() uint8    { return d.Data[d.Off+7] }
func (d Dirent) SetType(v uint8) { d.Data[d.Off+7] = v }
func (d Dirent) Name() []byte {
	return d.Data[d.Off+DirentHeaderSize : d.Off+DirentHeaderSize+int(d.NameLen())]
}
func (d Dirent) SetName(name string) {
	copy(d.Data[d.Off+DirentHeaderSize:], name)
}

func roundUp4(n int) int { return (n + 3) &^ 3 }

// findInDir loads node's entire data into memory and scans its
// directory entries for name, returning the inode number it names.
// Grounded on original_source's findindir -- including its "load the
// whole directory at once" approach, which that file itself flags as
// not the best idea but workable.
func (fs *Filesystem) findInDir(n *Node, name string) (uint32, kernerr.Kind) {
	size := n.Inode().Size()
	buf := make([]byte, size)
	if k := fs.rwBytes(n, buf, 0, false); k != kernerr.OK {
		return 0, k
	}

	var found uint32
	offset := 0
	for uint64(offset) < size {
		d := Dirent{Data: buf, Off: offset}
		if int(d.NameLen()) == len(name) && d.Inode() != 0 && string(d.Name()) == name {
			found = d.Inode()
		}
		if d.Size() == 0 {
			return 0, kernerr.IO
		}
		offset += int(d.Size())
	}

	if found == 0 {
		return 0, kernerr.NotFound
	}
	return found, kernerr.OK
}

// insertDent appends a new directory entry to node, splitting the first
// entry with enough slack space to hold it, or growing the directory by
// one block if none has room. Grounded on original_source's insertdent.
func (fs *Filesystem) insertDent(n *Node, name string, inode uint32, entType uint8) kernerr.Kind {
	entLen := roundUp4(DirentHeaderSize + len(name))
	entBuf := make([]byte, entLen)
	entry := Dirent{Data: entBuf, Off: 0}
	entry.SetInode(inode)
	entry.SetNameLen(uint8(len(name)))
	entry.SetType(entType)
	entry.SetName(name)

	size := n.Inode().Size()
	dirBuf := make([]byte, size)
	if size > 0 {
		if k := fs.rwBytes(n, dirBuf, 0, false); k != kernerr.OK {
			return k
		}
	}

	offset := 0
	splitFound := false
	var trueSize, freeSize int
	for uint64(offset) < size {
		d := Dirent{Data: dirBuf, Off: offset}
		trueSize = roundUp4(DirentHeaderSize + int(d.NameLen()))
		freeSize = int(d.Size()) - trueSize
		if entLen <= freeSize {
			splitFound = true
			break
		}
		if d.Size() == 0 {
			return kernerr.IO
		}
		offset += int(d.Size())
	}

	if !splitFound {
		newSize := size + uint64(fs.blockSize)
		if k := fs.resizeInode(n, newSize); k != kernerr.OK {
			return k
		}
		entry.SetSize(uint16(fs.blockSize))
		return fs.rwBytes(n, entBuf, size, true)
	}

	split := Dirent{Data: dirBuf, Off: offset}
	writeSize := int(split.Size())
	split.SetSize(uint16(trueSize))
	entry.SetSize(uint16(freeSize))
	copy(dirBuf[offset+trueSize:offset+trueSize+entLen], entBuf)
	return fs.rwBytes(n, dirBuf[offset:offset+writeSize], uint64(offset), true)
}
