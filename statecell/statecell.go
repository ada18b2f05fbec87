// Package statecell wraps the fixed 16-byte shared state region: the
// instance version word plus two per-buffer reader counters.
//
// A Cell never owns a file or a mapping; it is handed a byte slice (normally
// backed by an mmap'd region shared across processes) and performs atomic
// operations at fixed offsets within it. Go's sync/atomic package requires
// 8-byte alignment for 64-bit operations on most architectures, which the
// mapped-file layout in filestore guarantees by placing the cell at the
// start of the state file.
package statecell

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Size is the fixed byte layout of a state cell:
//
//	offset 0..8   instance version, atomic uint64
//	offset 8..12  reader counter for buffer 0, atomic uint32
//	offset 12..16 reader counter for buffer 1, atomic uint32
const Size = 16

const (
	offVersion  = 0
	offCounter0 = 8
	offCounter1 = 12
)

// Cell is an accessor over a Size-byte region of shared memory.
//
// All methods are safe for concurrent use by multiple goroutines and,
// because they operate through atomics on mapped memory, by multiple
// processes sharing the same backing file.
type Cell struct {
	buf []byte
}

// New wraps buf as a Cell. buf must be at least Size bytes and 8-byte
// aligned at offset 0 (true for any mmap'd region, which the kernel always
// page-aligns).
func New(buf []byte) (*Cell, error) {
	if len(buf) < Size {
		return nil, fmt.Errorf("statecell: buffer too small: %d bytes, need %d", len(buf), Size)
	}

	return &Cell{buf: buf[:Size]}, nil
}

func (c *Cell) versionPtr() *uint64 {
	return (*uint64)(unsafe.Pointer(&c.buf[offVersion]))
}

func (c *Cell) counterPtr(idx int) *uint32 {
	off := offCounter0
	if idx == 1 {
		off = offCounter1
	}

	return (*uint32)(unsafe.Pointer(&c.buf[off]))
}

// LoadVersion performs an acquire-ordered load of the instance version.
//
// Go's sync/atomic loads are sequentially consistent, a strictly stronger
// guarantee than the acquire ordering the protocol requires.
func (c *Cell) LoadVersion() uint64 {
	return atomic.LoadUint64(c.versionPtr())
}

// StoreVersion performs a release-ordered store of a new instance version.
//
// Callers must ensure the payload bytes referenced by the new version are
// already durably written to the mapped data buffer before calling this:
// the store is the publication point readers synchronize on (I1, I3).
func (c *Cell) StoreVersion(word uint64) {
	atomic.StoreUint64(c.versionPtr(), word)
}

// AcquireReader increments the reader counter for idx and returns the
// count observed immediately before the increment.
func (c *Cell) AcquireReader(idx int) uint32 {
	return atomic.AddUint32(c.counterPtr(idx), 1) - 1
}

// ReleaseReader decrements the reader counter for idx. Every successful
// AcquireReader must be paired with exactly one ReleaseReader (I4).
func (c *Cell) ReleaseReader(idx int) {
	atomic.AddUint32(c.counterPtr(idx), ^uint32(0))
}

// ReaderCount returns the current reader counter for idx.
//
// This is a relaxed load intended only for grace-period checks and tests;
// the read path never uses it for correctness.
func (c *Cell) ReaderCount(idx int) uint32 {
	return atomic.LoadUint32(c.counterPtr(idx))
}

// ResetReaderCount forcibly zeroes the reader counter for idx. This is the
// grace-period override: it is used only when a writer's grace_duration
// has expired with straggler readers still pinning idx.
func (c *Cell) ResetReaderCount(idx int) {
	atomic.StoreUint32(c.counterPtr(idx), 0)
}
