// Package blockdev provides the backing-storage abstraction the ext2
// engine reads and writes through. Grounded on biscuit's fs.Disk_i
// (fs/blk.go) -- a narrow interface between the filesystem and whatever
// moves bytes to stable storage -- adapted from a block-request-queue
// shape to plain byte-offset ReadAt/WriteAt, since original_source's
// ext2.c talks to its backing vnode in terms of vfs_read/vfs_write at
// arbitrary byte offsets, not fixed-size block requests.
package blockdev

import (
	"io"
	"sync"

	"golang.org/x/sys/unix"
)

// Device is the storage contract the ext2 engine depends on.
type Device interface {
	ReadAt(buf []byte, offset int64) (int, error)
	WriteAt(buf []byte, offset int64) (int, error)
	Sync() error
	Size() int64
}

// FileDevice backs a Device with a regular file via positional
// pread/pwrite, grounded on gcsfuse's and vorteil's use of
// golang.org/x/sys/unix for raw positional file I/O instead of
// os.File.ReadAt's internal syscall wrapping.
type FileDevice struct {
	fd   int
	size int64
}

// OpenFile opens path for positional reads and writes.
func OpenFile(path string, create bool, size int64) (*FileDevice, error) {
	flags := unix.O_RDWR
	if create {
		flags |= unix.O_CREAT
	}
	fd, err := unix.Open(path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	if create && size > 0 {
		if err := unix.Ftruncate(fd, size); err != nil {
			unix.Close(fd)
			return nil, err
		}
	}
	st := unix.Stat_t{}
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &FileDevice{fd: fd, size: st.Size}, nil
}

func (d *FileDevice) ReadAt(buf []byte, offset int64) (int, error) {
	n, err := unix.Pread(d.fd, buf, offset)
	if err == nil && n < len(buf) {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func (d *FileDevice) WriteAt(buf []byte, offset int64) (int, error) {
	n, err := unix.Pwrite(d.fd, buf, offset)
	if err == nil && n < len(buf) {
		err = io.ErrShortWrite
	}
	if offset+int64(n) > d.size {
		d.size = offset + int64(n)
	}
	return n, err
}

func (d *FileDevice) Sync() error { return unix.Fsync(d.fd) }
func (d *FileDevice) Size() int64 { return d.size }

// Close releases the underlying file descriptor.
func (d *FileDevice) Close() error { return unix.Close(d.fd) }

// MemDevice is an in-memory Device, used by tests to format and mount
// images without touching disk.
type MemDevice struct {
	mu   sync.Mutex
	data []byte
}

// NewMemDevice allocates an in-memory device of the given size.
func NewMemDevice(size int64) *MemDevice {
	return &MemDevice{data: make([]byte, size)}
}

func (d *MemDevice) ReadAt(buf []byte, offset int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if offset < 0 || offset > int64(len(d.data)) {
		return 0, io.EOF
	}
	n := copy(buf, d.data[offset:])
	if n < len(buf) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

func (d *MemDevice) WriteAt(buf []byte, offset int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	end := offset + int64(len(buf))
	if end > int64(len(d.data)) {
		grown := make([]byte, end)
		copy(grown, d.data)
		d.data = grown
	}
	n := copy(d.data[offset:end], buf)
	return n, nil
}

func (d *MemDevice) Sync() error { return nil }
func (d *MemDevice) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.data))
}
