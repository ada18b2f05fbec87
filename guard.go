package shmsync

import (
	"sync"

	"github.com/shmsync/shmsync/archiver"
	"github.com/shmsync/shmsync/statecell"
)

// ReadResult borrows a decoded value from a synchronizer's shared memory
// for as long as the caller holds it open.
//
// Go has no destructors, so callers must call Close explicitly when
// done — typically via defer immediately after a successful Read.
// Failing to do so leaks a pinned reader count against the buffer it
// was taken from, so the next write that targets that buffer waits out
// its full grace period and then forces the count to zero.
type ReadResult[T any] struct {
	view *archiver.View[T]
	cell *statecell.Cell
	idx  int

	once sync.Once
}

// Value returns the decoded value. It remains valid only until Close is
// called.
func (r *ReadResult[T]) Value() *T {
	return r.view.Value()
}

// Close releases the reader pin taken by the Read call that produced r. It
// is idempotent: calling it more than once has no effect after the first
// call.
func (r *ReadResult[T]) Close() {
	r.once.Do(func() {
		r.cell.ReleaseReader(r.idx)
	})
}

// Release is an alias for Close.
func (r *ReadResult[T]) Release() {
	r.Close()
}
