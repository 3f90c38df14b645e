package ext2

import "encoding/binary"

// Superblock is a byte-level view over the 220-byte on-disk superblock
// record, field-for-field identical to original_source's
// ext2superblock_t. Accessors read/write little-endian directly into
// Data rather than copying into a Go struct, the same raw-page-plus-
// accessor idiom biscuit's Superblock_t uses (fs/super.go), adapted to
// ext2's mixed uint16/uint32 packed layout.
type Superblock struct {
	Data []byte
}

// NewSuperblock wraps an existing SuperblockSize-byte buffer.
func NewSuperblock(data []byte) *Superblock { return &Superblock{Data: data} }

func (s *Superblock) u32(off int) uint32          { return binary.LittleEndian.Uint32(s.Data[off:]) }
func (s *Superblock) setU32(off int, v uint32)     { binary.LittleEndian.PutUint32(s.Data[off:], v) }
func (s *Superblock) u16(off int) uint16          { return binary.LittleEndian.Uint16(s.Data[off:]) }
func (s *Superblock) setU16(off int, v uint16)     { binary.LittleEndian.PutUint16(s.Data[off:], v) }

func (s *Superblock) InodeCount() uint32        { return s.u32(0) }
func (s *Superblock) SetInodeCount(v uint32)    { s.setU32(0, v) }
func (s *Superblock) BlockCount() uint32        { return s.u32(4) }
func (s *Superblock) SetBlockCount(v uint32)    { s.setU32(4, v) }
func (s *Superblock) ReservedBlocks() uint32    { return s.u32(8) }
func (s *Superblock) UnallocatedBlocks() uint32     { return s.u32(12) }
func (s *Superblock) SetUnallocatedBlocks(v uint32) { s.setU32(12, v) }
func (s *Superblock) UnallocatedInodes() uint32     { return s.u32(16) }
func (s *Superblock) SetUnallocatedInodes(v uint32) { s.setU32(16, v) }
func (s *Superblock) SuperblockStart() uint32   { return s.u32(20) }
func (s *Superblock) SetSuperblockStart(v uint32) { s.setU32(20, v) }
func (s *Superblock) BlockSizeShift() uint32    { return s.u32(24) }
func (s *Superblock) SetBlockSizeShift(v uint32) { s.setU32(24, v) }
func (s *Superblock) FragmentSizeShift() uint32 { return s.u32(28) }
func (s *Superblock) BlocksPerGroup() uint32    { return s.u32(32) }
func (s *Superblock) SetBlocksPerGroup(v uint32) { s.setU32(32, v) }
func (s *Superblock) FragmentsPerGroup() uint32 { return s.u32(36) }
func (s *Superblock) InodesPerGroup() uint32    { return s.u32(40) }
func (s *Superblock) SetInodesPerGroup(v uint32) { s.setU32(40, v) }
func (s *Superblock) TimeOfLastMount() uint32   { return s.u32(44) }
func (s *Superblock) SetTimeOfLastMount(v uint32) { s.setU32(44, v) }
func (s *Superblock) TimeOfLastWrite() uint32   { return s.u32(48) }
func (s *Superblock) SetTimeOfLastWrite(v uint32) { s.setU32(48, v) }
func (s *Superblock) MountsAfterCheck() uint16  { return s.u16(52) }
func (s *Superblock) SetMountsAfterCheck(v uint16) { s.setU16(52, v) }
func (s *Superblock) MaxMountsBeforeCheck() uint16 { return s.u16(54) }
func (s *Superblock) Signature() uint16         { return s.u16(56) }
func (s *Superblock) SetSignature(v uint16)     { s.setU16(56, v) }
func (s *Superblock) State() uint16             { return s.u16(58) }
func (s *Superblock) SetState(v uint16)         { s.setU16(58, v) }
func (s *Superblock) ErrorAction() uint16       { return s.u16(60) }
func (s *Superblock) VersionMinor() uint16      { return s.u16(62) }
func (s *Superblock) CheckTime() uint32         { return s.u32(64) }
func (s *Superblock) MaxCheckInterval() uint32  { return s.u32(68) }
func (s *Superblock) OSID() uint32              { return s.u32(72) }
func (s *Superblock) VersionMajor() uint32      { return s.u32(76) }
func (s *Superblock) SetVersionMajor(v uint32)  { s.setU32(76, v) }
func (s *Superblock) ReservedUID() uint16       { return s.u16(80) }
func (s *Superblock) ReservedGID() uint16       { return s.u16(82) }
func (s *Superblock) FirstUsableInode() uint32  { return s.u32(84) }
func (s *Superblock) SetFirstUsableInode(v uint32) { s.setU32(84, v) }
func (s *Superblock) InodeSize() uint16         { return s.u16(88) }
func (s *Superblock) SetInodeSize(v uint16)     { s.setU16(88, v) }
func (s *Superblock) BlockGroup() uint16        { return s.u16(90) }
func (s *Superblock) OptionalFeatures() uint32  { return s.u32(92) }
func (s *Superblock) RequiredFeatures() uint32  { return s.u32(96) }
func (s *Superblock) ReadonlyFeatures() uint32  { return s.u32(100) }

// FSID returns the 16-byte volume identifier.
func (s *Superblock) FSID() [16]byte {
	var id [16]byte
	copy(id[:], s.Data[104:120])
	return id
}

// SetFSID stores the 16-byte volume identifier.
func (s *Superblock) SetFSID(id [16]byte) { copy(s.Data[104:120], id[:]) }

// BlockSize returns the block size in bytes, derived from
// BlockSizeShift as ext2.c's ext2_mount does: 1024 << shift.
func (s *Superblock) BlockSize() uint32 { return 1024 << s.BlockSizeShift() }
