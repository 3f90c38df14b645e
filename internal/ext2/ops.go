package ext2

import (
	"time"

	"github.com/desmonHak/talus/internal/kernerr"
)

// Attr is the subset of inode metadata the VFS bridge reads and writes,
// grounded on original_source's vattr_t fields as used by ext2_getattr /
// ext2_setattr / ext2_create.
type Attr struct {
	UID, GID   uint32
	Mode       uint16
	Type       int
	NLinks     uint16
	Size       uint64
	BlockSize  uint32
	BlocksUsed uint64
	Atime, Ctime, Mtime int64
}

// Open has nothing to do for a regular ext2 node (device-file handling
// is out of scope for this engine), matching ext2_open.
func (n *Node) Open() kernerr.Kind { return kernerr.OK }

// Close has nothing to do, matching ext2_close.
func (n *Node) Close() kernerr.Kind { return kernerr.OK }

// GetAttr fills attr from the node's on-disk inode record, grounded on
// ext2_getattr.
func (n *Node) GetAttr() Attr {
	n.mu.Lock()
	defer n.mu.Unlock()
	inode := n.Inode()
	size := inode.Size()
	bs := n.fs.blockSize
	return Attr{
		UID:        uint32(inode.UID()),
		GID:        uint32(inode.GID()),
		Mode:       inode.Perm(),
		Type:       inode.Type(),
		NLinks:     inode.Links(),
		Size:       size,
		BlockSize:  bs,
		BlocksUsed: roundUpDiv64(size, uint64(bs)),
		Atime:      int64(inode.Atime()),
		Ctime:      int64(inode.Ctime()),
		Mtime:      int64(inode.Mtime()),
	}
}

// SetAttr updates the node's mode/uid/gid and persists the inode,
// grounded on ext2_setattr.
func (n *Node) SetAttr(mode uint16, uid, gid uint32) kernerr.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	inode := n.Inode()
	inode.SetPerm(mode)
	inode.SetUID(uint16(uid))
	inode.SetGID(uint16(gid))
	return n.fs.writeInode(n)
}

// Access performs no permission checks, matching ext2_access (this
// engine leaves enforcement to its caller).
func (n *Node) Access() kernerr.Kind { return kernerr.OK }

// Lookup resolves name within directory node n, returning the (possibly
// cache-shared) Node for it. Grounded on ext2_lookup.
func (n *Node) Lookup(name string) (*Node, kernerr.Kind) {
	n.mu.Lock()
	id, k := n.fs.findInDir(n, name)
	n.mu.Unlock()
	if k != kernerr.OK {
		return nil, k
	}
	return n.fs.getOrReadNode(id)
}

// DirEntry is one entry returned by GetDents.
type DirEntry struct {
	Inode  uint32
	Offset uint64
	Type   uint8
	Name   string
}

// GetDents returns up to len(buf) directory entries starting after
// dirOffset entries have already been consumed, and the count filled.
// Grounded on ext2_getdents, including its "offset" being a count of
// dirents already returned rather than a byte offset.
func (n *Node) GetDents(buf []DirEntry, dirOffset uint64) (int, kernerr.Kind) {
	n.mu.Lock()
	defer n.mu.Unlock()

	size := n.Inode().Size()
	data := make([]byte, size)
	if k := n.fs.rwBytes(n, data, 0, false); k != kernerr.OK {
		return 0, k
	}

	var cur uint64
	offset := 0
	i := 0
	for uint64(offset) < size && i < len(buf) {
		d := Dirent{Data: data, Off: offset}
		if d.Inode() != 0 {
			if cur >= dirOffset {
				buf[i] = DirEntry{
					Inode:  d.Inode(),
					Offset: uint64(offset),
					Type:   d.Type(),
					Name:   string(d.Name()),
				}
				i++
			}
			cur++
		}
		offset += int(d.Size())
	}
	return i, kernerr.OK
}

// ReadLink returns a symlink's target, either from the inline
// direct-pointer bytes (FastSymlinkMax or fewer bytes) or from the
// node's regular data blocks. Grounded on ext2_readlink's 60-byte
// boundary.
func (n *Node) ReadLink() (string, kernerr.Kind) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Inode().Type() != TypeSymlink {
		return "", kernerr.BadInput
	}
	size := n.Inode().Size()
	buf := make([]byte, size)
	if size > FastSymlinkMax {
		if k := n.fs.rwBytes(n, buf, 0, false); k != kernerr.OK {
			return "", k
		}
	} else {
		copy(buf, n.Inode().DirectBytes()[:size])
	}
	return string(buf), kernerr.OK
}

// Read transfers up to len(buffer) bytes starting at offset, truncating
// at the current end of file. Grounded on ext2_read.
func (n *Node) Read(buffer []byte, offset uint64) (int, kernerr.Kind) {
	n.mu.Lock()
	defer n.mu.Unlock()

	size := n.Inode().Size()
	if offset >= size {
		return 0, kernerr.OK
	}
	end := offset + uint64(len(buffer))
	if end < offset { // overflow
		end = ^uint64(0)
	}
	if end > size {
		end = size
		buffer = buffer[:end-offset]
	}
	if len(buffer) == 0 {
		return 0, kernerr.OK
	}
	if k := n.fs.rwBytes(n, buffer, offset, false); k != kernerr.OK {
		return 0, k
	}
	return len(buffer), kernerr.OK
}

// Write transfers len(buffer) bytes to offset, growing the node first if
// the write extends past the current end of file. Grounded on
// ext2_write. A failed write returns 0 with the error kind; rwBytes
// reports only success or failure, so blocks written before the failing
// one are not counted in the returned value.
func (n *Node) Write(buffer []byte, offset uint64) (int, kernerr.Kind) {
	n.mu.Lock()
	defer n.mu.Unlock()

	size := n.Inode().Size()
	end := offset + uint64(len(buffer))
	if end < offset {
		end = ^uint64(0)
	}
	if end > size {
		if k := n.fs.resizeInode(n, end); k != kernerr.OK {
			return 0, k
		}
	}
	if k := n.fs.rwBytes(n, buffer, offset, true); k != kernerr.OK {
		return 0, k
	}
	n.Inode().SetMtime(uint32(time.Now().Unix()))
	n.fs.writeInode(n)
	return len(buffer), kernerr.OK
}

// Resize truncates or extends node to newSize bytes. Grounded on
// ext2_resize.
func (n *Node) Resize(newSize uint64) kernerr.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fs.resizeInode(n, newSize)
}

// Link adds a new name for an existing node inside directory dir.
// Grounded on ext2_link, including its vnode->vfs != dirvnode->vfs
// cross-device check: dir and target must belong to the same mounted
// Filesystem, or the link is rejected with CrossDevice.
func (fs *Filesystem) Link(dir, target *Node, name string) kernerr.Kind {
	if dir.fs != target.fs {
		return kernerr.CrossDevice
	}

	dir.mu.Lock()
	defer dir.mu.Unlock()
	target.mu.Lock()
	defer target.mu.Unlock()

	if _, k := fs.findInDir(dir, name); k == kernerr.OK {
		return kernerr.Exists
	} else if k != kernerr.NotFound {
		return k
	}

	if k := fs.insertDent(dir, name, target.id, typeToDentType(target.Inode().Type())); k != kernerr.OK {
		return k
	}

	inode := target.Inode()
	inode.SetLinks(inode.Links() + 1)
	return fs.writeInode(target)
}

// Create allocates a fresh inode of the given type under directory dir
// and inserts its directory entry. Grounded on ext2_create, including
// the directory-specific "starts with 2 links, gets '.' and '..'
// entries, parent's link count and dircount both increase" behavior.
func (fs *Filesystem) Create(dir *Node, name string, typ int, mode uint16, uid, gid uint32) (*Node, kernerr.Kind) {
	dir.mu.Lock()
	defer dir.mu.Unlock()

	if _, k := fs.findInDir(dir, name); k == kernerr.OK {
		return nil, kernerr.Exists
	} else if k != kernerr.NotFound {
		return nil, k
	}

	id, k := fs.allocateStructure(true)
	if k != kernerr.OK {
		return nil, k
	}

	data := make([]byte, InodeDiskSize)
	n := &Node{fs: fs, id: id, data: data, ref: 1}
	inode := n.Inode()
	now := uint32(time.Now().Unix())
	inode.SetUID(uint16(uid))
	inode.SetGID(uint16(gid))
	inode.SetAtime(now)
	inode.SetCtime(now)
	inode.SetMtime(now)
	links := uint16(1)
	if typ == TypeDir {
		links = 2
	}
	inode.SetLinks(links)
	inode.SetType(typ)
	inode.SetPerm(mode)

	if k := fs.writeInode(n); k != kernerr.OK {
		fs.freeStructure(id, true)
		return nil, k
	}
	if k := fs.insertDent(dir, name, id, typeToDentType(typ)); k != kernerr.OK {
		fs.freeStructure(id, true)
		return nil, k
	}

	fs.cacheMu.Lock()
	fs.cache[id] = n
	fs.cacheMu.Unlock()

	if typ == TypeDir {
		fs.insertDent(n, ".", id, DentDir)
		fs.insertDent(n, "..", dir.id, DentDir)
		dirInode := dir.Inode()
		dirInode.SetLinks(dirInode.Links() + 1)
		fs.writeInode(dir)
		fs.changeDirCount(fs.inodeGroupOf(id), 1)
	}

	return n, kernerr.OK
}

// Symlink is deliberately unimplemented, matching ext2_symlink's ENOSYS:
// original_source itself never finished this path, and nothing in
// SPEC_FULL.md depends on ext2-native symlink creation. Mkfs creates no
// symlinks either; ReadLink only serves symlinks already on the image.
func (fs *Filesystem) Symlink(dir *Node, name, target string, uid, gid uint32) (*Node, kernerr.Kind) {
	return nil, kernerr.Unsupported
}

// changeDirCount adjusts a block group descriptor's directory count,
// grounded on ext2.c's changedircount (called from ext2_create when a
// directory is created).
func (fs *Filesystem) changeDirCount(bg uint32, delta int) kernerr.Kind {
	fs.descMu.Lock()
	defer fs.descMu.Unlock()
	desc, k := fs.readDescriptor(bg)
	if k != kernerr.OK {
		return k
	}
	desc.SetDirCount(uint16(int(desc.DirCount()) + delta))
	return fs.writeDescriptor(bg, desc)
}

func typeToDentType(t int) uint8 {
	switch t {
	case TypeRegular:
		return DentRegular
	case TypeDir:
		return DentDir
	case TypeCharDev:
		return DentCharDev
	case TypeBlkDev:
		return DentBlkDev
	case TypeFIFO:
		return DentFIFO
	case TypeSocket:
		return DentSocket
	case TypeSymlink:
		return DentSymlink
	default:
		return DentUnknown
	}
}

// Root returns the filesystem's root node, reading and caching it on
// first access. Grounded on ext2_root.
func (fs *Filesystem) Root() (*Node, kernerr.Kind) {
	fs.rootMu.Lock()
	defer fs.rootMu.Unlock()
	if fs.root != nil {
		return fs.root, kernerr.OK
	}
	n, k := fs.getOrReadNode(RootInode)
	if k != kernerr.OK {
		return nil, k
	}
	fs.root = n
	return n, kernerr.OK
}
