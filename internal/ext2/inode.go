package ext2

import "encoding/binary"

// Inode views a 128-byte on-disk inode record, grounded on
// original_source's inode_t, including its type-in-upper-nibble /
// permission-in-lower-12-bits typeperm packing and its dir-vs-file
// 32/64-bit size split (INODE_SIZE/INODE_SETSIZE).
type Inode struct {
	Data []byte
}

func NewInode(data []byte) *Inode { return &Inode{Data: data} }

func (n *Inode) u32(off int) uint32      { return binary.LittleEndian.Uint32(n.Data[off:]) }
func (n *Inode) setU32(off int, v uint32) { binary.LittleEndian.PutUint32(n.Data[off:], v) }
func (n *Inode) u16(off int) uint16      { return binary.LittleEndian.Uint16(n.Data[off:]) }
func (n *Inode) setU16(off int, v uint16) { binary.LittleEndian.PutUint16(n.Data[off:], v) }

func (n *Inode) TypePerm() uint16     { return n.u16(0) }
func (n *Inode) SetTypePerm(v uint16) { n.setU16(0, v) }
func (n *Inode) UID() uint16          { return n.u16(2) }
func (n *Inode) SetUID(v uint16)      { n.setU16(2, v) }
func (n *Inode) SizeLow() uint32      { return n.u32(4) }
func (n *Inode) SetSizeLow(v uint32)  { n.setU32(4, v) }
func (n *Inode) Atime() uint32        { return n.u32(8) }
func (n *Inode) SetAtime(v uint32)    { n.setU32(8, v) }
func (n *Inode) Ctime() uint32        { return n.u32(12) }
func (n *Inode) SetCtime(v uint32)    { n.setU32(12, v) }
func (n *Inode) Mtime() uint32        { return n.u32(16) }
func (n *Inode) SetMtime(v uint32)    { n.setU32(16, v) }
func (n *Inode) Dtime() uint32        { return n.u32(20) }
func (n *Inode) SetDtime(v uint32)    { n.setU32(20, v) }
func (n *Inode) GID() uint16          { return n.u16(24) }
func (n *Inode) SetGID(v uint16)      { n.setU16(24, v) }
func (n *Inode) Links() uint16        { return n.u16(26) }
func (n *Inode) SetLinks(v uint16)    { n.setU16(26, v) }
func (n *Inode) SectorCount() uint32      { return n.u32(28) }
func (n *Inode) SetSectorCount(v uint32)  { n.setU32(28, v) }
func (n *Inode) Flags() uint32        { return n.u32(32) }
func (n *Inode) SetFlags(v uint32)    { n.setU32(32, v) }

const directPointerOffset = 40

// DirectPointer returns the i'th (0..11) direct block pointer.
func (n *Inode) DirectPointer(i int) uint32 {
	return n.u32(directPointerOffset + i*4)
}

// SetDirectPointer writes the i'th direct block pointer.
func (n *Inode) SetDirectPointer(i int, v uint32) {
	n.setU32(directPointerOffset+i*4, v)
}

// DirectBytes returns the raw 60-byte block-pointer area (the 12 direct
// pointers followed by the singly/doubly/triply pointers), used for
// fast symlinks stored inline instead of in a data block.
func (n *Inode) DirectBytes() []byte {
	return n.Data[directPointerOffset : directPointerOffset+FastSymlinkMax]
}

func (n *Inode) SinglyPointer() uint32     { return n.u32(88) }
func (n *Inode) SetSinglyPointer(v uint32) { n.setU32(88, v) }
func (n *Inode) DoublyPointer() uint32     { return n.u32(92) }
func (n *Inode) SetDoublyPointer(v uint32) { n.setU32(92, v) }
func (n *Inode) TriplyPointer() uint32     { return n.u32(96) }
func (n *Inode) SetTriplyPointer(v uint32) { n.setU32(96, v) }
func (n *Inode) Generation() uint32        { return n.u32(100) }
func (n *Inode) FileACL() uint32           { return n.u32(104) }
func (n *Inode) SizeHigh() uint32          { return n.u32(108) }
func (n *Inode) SetSizeHigh(v uint32)      { n.setU32(108, v) }

// Type returns the inode type nibble (TypeDir, TypeRegular, ...).
func (n *Inode) Type() int { return int((n.TypePerm() >> 12) & 0xf) }

// SetType rewrites the type nibble, preserving the permission bits
// (INODE_TYPEPERM_SETTYPE).
func (n *Inode) SetType(t int) {
	n.SetTypePerm((n.TypePerm() &^ 0xf000) | uint16(t&0xf)<<12)
}

// Perm returns the permission bits (INODE_TYPEPERM_PERM).
func (n *Inode) Perm() uint16 { return n.TypePerm() & 0xfff }

// SetPerm rewrites the permission bits, preserving the type nibble
// (INODE_TYPEPERM_SETPERM).
func (n *Inode) SetPerm(mode uint16) {
	n.SetTypePerm((n.TypePerm() &^ 0x0fff) | (mode & 0xfff))
}

// Size returns the file size: directories only ever use the 32-bit
// sizelow field, everything else concatenates sizehigh:sizelow into a
// 64-bit size (INODE_SIZE).
func (n *Inode) Size() uint64 {
	if n.Type() == TypeDir {
		return uint64(n.SizeLow())
	}
	return uint64(n.SizeHigh())<<32 | uint64(n.SizeLow())
}

// SetSize stores the file size, splitting it across sizelow/sizehigh for
// non-directories (INODE_SETSIZE).
func (n *Inode) SetSize(size uint64) {
	n.SetSizeLow(uint32(size & 0xffffffff))
	if n.Type() != TypeDir {
		n.SetSizeHigh(uint32(size >> 32))
	}
}
