package ext2

import (
	"sync"

	"github.com/desmonHak/talus/internal/kernerr"
)

// Node is one in-memory inode, the bridge object the VFS layer holds a
// reference to. Grounded on original_source's ext2node_t (an embedded
// vnode_t plus inode_t plus id); the vnode_t's lock/refcount/type fields
// are replaced here by a plain sync.Mutex and a refcount this package
// manages directly, since there is no shared vnode_t type to embed into.
type Node struct {
	mu   sync.Mutex
	fs   *Filesystem
	id   uint32
	data []byte // InodeDiskSize raw bytes, viewed through Inode
	ref  int
}

// Inode returns the byte-level accessor over this node's inode record.
func (n *Node) Inode() *Inode { return NewInode(n.data) }

// ID returns the inode number.
func (n *Node) ID() uint32 { return n.id }

// Hold increments the node's reference count (VOP_HOLD).
func (n *Node) Hold() {
	n.fs.cacheMu.Lock()
	n.ref++
	n.fs.cacheMu.Unlock()
}

// Release decrements the node's reference count, evicting it from the
// cache once it reaches zero (VOP_RELEASE).
func (n *Node) Release() {
	n.fs.cacheMu.Lock()
	defer n.fs.cacheMu.Unlock()
	n.ref--
	if n.ref <= 0 {
		delete(n.fs.cache, n.id)
	}
}

// getOrReadNode returns the cached Node for id, reading it from disk and
// inserting it into the cache on first access. Grounded on
// original_source's ext2_lookup / ext2_root hashtable-or-read-then-
// insert pattern; this package's cache is a plain mutex-guarded map
// (internal/ext2/fs.go's Filesystem.cache) rather than biscuit's lock-
// free hashtable package, since the filesystem-level inodetablelock
// already serializes every access in the original algorithm.
func (fs *Filesystem) getOrReadNode(id uint32) (*Node, kernerr.Kind) {
	fs.cacheMu.Lock()
	if n, ok := fs.cache[id]; ok {
		n.ref++
		fs.cacheMu.Unlock()
		return n, kernerr.OK
	}
	fs.cacheMu.Unlock()

	buf := make([]byte, InodeDiskSize)
	if k := fs.readInode(buf, id); k != kernerr.OK {
		return nil, k
	}

	fs.cacheMu.Lock()
	defer fs.cacheMu.Unlock()
	if n, ok := fs.cache[id]; ok {
		n.ref++
		return n, kernerr.OK
	}
	n := &Node{fs: fs, id: id, data: buf, ref: 1}
	fs.cache[id] = n
	return n, kernerr.OK
}

// readInode reads inode id's on-disk record into buf (ext2.c's
// readinode: locate the owning group's inode table, then read at the
// fixed per-inode offset within it).
func (fs *Filesystem) readInode(buf []byte, id uint32) kernerr.Kind {
	desc, k := fs.readDescriptor(fs.inodeGroupOf(id))
	if k != kernerr.OK {
		return k
	}
	table := fs.blockDiskOffset(desc.InodeTable())
	return fs.readFull(buf, fs.inodeDiskOffset(table, id))
}

// writeInode writes a node's in-memory inode record back to disk,
// serialized by inoWriteMu (ext2.c's writeinode / inodewritelock).
func (fs *Filesystem) writeInode(n *Node) kernerr.Kind {
	desc, k := fs.readDescriptor(fs.inodeGroupOf(n.id))
	if k != kernerr.OK {
		return k
	}
	table := fs.blockDiskOffset(desc.InodeTable())

	fs.inoWriteMu.Lock()
	defer fs.inoWriteMu.Unlock()
	return fs.writeFull(n.data, fs.inodeDiskOffset(table, n.id))
}
