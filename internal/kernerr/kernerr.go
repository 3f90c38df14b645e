// Package kernerr defines the closed set of error kinds propagated by the
// MMU and filesystem layers, in place of Go's wrapped-error idiom. It plays
// the role biscuit's defs.Err_t plays: a small negative-space-free enum
// that every layer returns by value instead of constructing an error chain.
package kernerr

import "fmt"

// Kind enumerates the error categories a kernel-level caller needs to
// distinguish. Kernel code switches on Kind; it does not string-match.
type Kind int

const (
	// OK is the zero value: no error.
	OK Kind = iota
	// OutOfMemory indicates the PMM/frame allocator has no frames left.
	OutOfMemory
	// NoSpace indicates the filesystem's bitmap allocator is exhausted.
	NoSpace
	// BadInput indicates a malformed name, negative size, or bad request.
	BadInput
	// IO indicates a short or failed backing-device transfer.
	IO
	// CrossDevice indicates a link attempted across filesystem instances.
	CrossDevice
	// Exists indicates the target of a create/link already exists.
	Exists
	// NotFound indicates a lookup found no matching entry.
	NotFound
	// NotDir indicates an operation that requires a directory got one that
	// isn't.
	NotDir
	// NotSocket indicates a socket-only operation on a non-socket node.
	NotSocket
	// Fault indicates a page fault that could not be resolved.
	Fault
	// Unsupported indicates an operation this engine deliberately never
	// implements (e.g. ext2 symlink creation via this path).
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case OutOfMemory:
		return "out of memory"
	case NoSpace:
		return "no space left on device"
	case BadInput:
		return "bad input"
	case IO:
		return "i/o error"
	case CrossDevice:
		return "cross-device link"
	case Exists:
		return "already exists"
	case NotFound:
		return "not found"
	case NotDir:
		return "not a directory"
	case NotSocket:
		return "not a socket"
	case Fault:
		return "fault"
	case Unsupported:
		return "operation not supported"
	default:
		return fmt.Sprintf("kernerr.Kind(%d)", int(k))
	}
}

// Error adapts a Kind to the standard error interface for the few call
// sites (cmd/, tests) that want to use %w / errors.Is-style plumbing.
// Internal code paths pass Kind by value, never error, to stay close to
// the teacher's Err_t convention.
type Error struct {
	Kind Kind
	Op   string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String()
}

// Wrap builds an *Error for kind k, or returns nil if k is OK.
func Wrap(op string, k Kind) error {
	if k == OK {
		return nil
	}
	return &Error{Kind: k, Op: op}
}
