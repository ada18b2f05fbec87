// Package archiver defines the boundary between the synchronization core
// and value serialization. The core never encodes or decodes a value
// itself; it hands bytes to and from an Archiver and otherwise treats the
// value as opaque.
//
// An Archiver turns a value of a compile-time-known type T into a
// contiguous byte image, and turns that image back into a View[T], which
// holds a pointer to a decoded T. Whether that T is a fresh copy or refers
// into the bytes depends on the Archiver; Gob decodes a full copy.
// Validate performs structural checks before handing back a view; Access
// skips them for buffers the caller already trusts (the synchronizer's
// ReadUnvalidated path, which also skips the checksum).
package archiver

import "errors"

// ErrValidation is wrapped by any error an Archiver's Validate method
// returns when a byte image fails structural validation (bounds,
// discriminant ranges, truncated footers, and the like).
var ErrValidation = errors.New("archiver: validation failed")

// ErrSerialization is wrapped by any error an Archiver's Serialize method
// returns when it cannot produce a byte image for a value.
var ErrSerialization = errors.New("archiver: serialization failed")

// Archiver adapts values of type T to and from byte images.
//
// Implementations must be safe for concurrent use: Serialize is called
// only by the writer, but Validate/Access may be called by many
// concurrent readers.
type Archiver[T any] interface {
	// Serialize produces a self-describing byte image for value.
	Serialize(value T) ([]byte, error)

	// Validate performs structural validation of data and, on success,
	// returns a View over it. Errors must wrap ErrValidation.
	Validate(data []byte) (*View[T], error)

	// Access returns a View over data without validation. Callers must
	// only use this on data already known to be well-formed (the
	// synchronizer's validated fast-path toggle).
	Access(data []byte) *View[T]
}

// View is a borrowed accessor over a byte image produced by an Archiver.
//
// A View is only valid while the reader counter pinning its backing
// buffer remains incremented; the synchronizer package enforces this by
// construction (ReadResult releases the pin on Close, and no View escapes
// a ReadResult).
type View[T any] struct {
	value *T
}

// NewView wraps a decoded value as a View. Archiver implementations use
// this to construct their return value; callers of Validate/Access do not
// call it directly.
func NewView[T any](value *T) *View[T] {
	return &View[T]{value: value}
}

// Value returns the decoded value referenced by the view.
func (v *View[T]) Value() *T {
	return v.value
}
