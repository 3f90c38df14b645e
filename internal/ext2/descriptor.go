package ext2

import "encoding/binary"

// GroupDescriptor views a 32-byte block group descriptor record,
// grounded on original_source's blockgroupdesc_t.
type GroupDescriptor struct {
	Data []byte
}

func NewGroupDescriptor(data []byte) *GroupDescriptor { return &GroupDescriptor{Data: data} }

func (d *GroupDescriptor) BlockBitmap() uint32     { return binary.LittleEndian.Uint32(d.Data[0:]) }
func (d *GroupDescriptor) SetBlockBitmap(v uint32) { binary.LittleEndian.PutUint32(d.Data[0:], v) }
func (d *GroupDescriptor) InodeBitmap() uint32     { return binary.LittleEndian.Uint32(d.Data[4:]) }
func (d *GroupDescriptor) SetInodeBitmap(v uint32) { binary.LittleEndian.PutUint32(d.Data[4:], v) }
func (d *GroupDescriptor) InodeTable() uint32      { return binary.LittleEndian.Uint32(d.Data[8:]) }
func (d *GroupDescriptor) SetInodeTable(v uint32)  { binary.LittleEndian.PutUint32(d.Data[8:], v) }
func (d *GroupDescriptor) FreeBlocks() uint16      { return binary.LittleEndian.Uint16(d.Data[12:]) }
func (d *GroupDescriptor) SetFreeBlocks(v uint16)  { binary.LittleEndian.PutUint16(d.Data[12:], v) }
func (d *GroupDescriptor) FreeInodes() uint16      { return binary.LittleEndian.Uint16(d.Data[14:]) }
func (d *GroupDescriptor) SetFreeInodes(v uint16)  { binary.LittleEndian.PutUint16(d.Data[14:], v) }
func (d *GroupDescriptor) DirCount() uint16        { return binary.LittleEndian.Uint16(d.Data[16:]) }
func (d *GroupDescriptor) SetDirCount(v uint16)    { binary.LittleEndian.PutUint16(d.Data[16:], v) }
