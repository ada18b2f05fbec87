// Package shmsync implements a wait-free, single-writer/multi-reader
// publication protocol over memory-mapped files: a Synchronizer lets one
// process write a value of type T and any number of other processes read
// the most recently published value without blocking the writer, and
// without the writer ever blocking on a slow reader for longer than a
// caller-supplied grace period.
//
// The protocol double-buffers the payload across two data files and
// publishes which one is current, along with its length and a checksum,
// in a single atomically-stored 64-bit instance version (package version).
// Readers pin a buffer by incrementing a per-buffer counter (package
// statecell) before validating its bytes, and re-pin and re-check for as
// long as the version keeps changing underneath them. Writers pick the
// buffer the current version does not reference, wait up to
// grace_duration for stragglers to release it, and force the counter to
// zero on timeout rather than blocking forever.
//
// See package version, statecell, filestore and archiver for the four
// components this package composes.
package shmsync

import (
	"fmt"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/shmsync/shmsync/archiver"
	"github.com/shmsync/shmsync/filestore"
	"github.com/shmsync/shmsync/statecell"
	"github.com/shmsync/shmsync/version"
)

// Options configures a Synchronizer.
type Options struct {
	// PathPrefix is the shared filesystem path prefix under which the
	// state file and the two data files are created. Required.
	PathPrefix string

	// StateFilePermissions is the mode used when creating the state
	// file. Defaults to 0644.
	StateFilePermissions os.FileMode

	// DataFilePermissions is the mode used when creating either data
	// file. Defaults to 0644.
	DataFilePermissions os.FileMode

	// DefaultGrace is not read by Synchronizer: Write and WriteRaw always
	// take an explicit grace argument. (config.Default supplies its own
	// 10ms default_grace independently of this field.)
	DefaultGrace time.Duration
}

func (o Options) statePerm() os.FileMode {
	if o.StateFilePermissions == 0 {
		return 0o644
	}
	return o.StateFilePermissions
}

func (o Options) dataPerm() os.FileMode {
	if o.DataFilePermissions == 0 {
		return 0o644
	}
	return o.DataFilePermissions
}

// Synchronizer publishes and reads values of type T through shared memory.
//
// Read and ReadUnvalidated may be called from multiple goroutines at
// once. Write and WriteRaw are not synchronized against each other: at
// most one goroutine, in one process, may write to a path prefix at a
// time. The type does not enforce this single-writer requirement:
// nothing prevents two goroutines, or two Synchronizer values in two
// processes, from both calling Write against the same path prefix, but
// doing so races the two writers against each other's buffer selection
// and produces undefined results, exactly as with two OS processes
// racing on the same file.
type Synchronizer[T any] struct {
	arc   archiver.Archiver[T]
	store *filestore.Store
}

// New opens (creating if necessary) the state file under opts.PathPrefix
// and returns a Synchronizer that serializes and deserializes values
// through arc. The data files are opened when first written or read.
func New[T any](arc archiver.Archiver[T], opts Options) (*Synchronizer[T], error) {
	if opts.PathPrefix == "" {
		return nil, fmt.Errorf("shmsync: PathPrefix is required")
	}

	store, err := filestore.Open(opts.PathPrefix, opts.statePerm(), opts.dataPerm())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	return &Synchronizer[T]{arc: arc, store: store}, nil
}

// Close releases the underlying mappings and file descriptors. It does
// not remove the backing files.
func (s *Synchronizer[T]) Close() error {
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// graceBackoff is the spin/sleep schedule Write uses while waiting for a
// buffer's reader count to drain, quadrupling up to a ceiling so a fast
// drain costs microseconds and a slow one doesn't burn a core spinning.
var graceBackoff = []time.Duration{
	1 * time.Microsecond,
	4 * time.Microsecond,
	16 * time.Microsecond,
	64 * time.Microsecond,
	256 * time.Microsecond,
	1 * time.Millisecond,
	4 * time.Millisecond,
}

// Write serializes value with the synchronizer's archiver and publishes it,
// following the publish protocol:
//
//  1. serialize value to bytes
//  2. load the current instance version and select the buffer index it
//     does not reference (or 0 if uninitialized)
//  3. wait up to grace for that buffer's reader count to reach zero
//  4. if grace elapses with readers still pinning it, force the count to
//     zero and report wasReset=true
//  5. grow the target data file if needed and copy the payload into it
//  6. compute a checksum over the payload
//  7. encode and atomically store the new instance version, publishing
//     the write to readers
//
// It returns the number of payload bytes written and whether a grace
// timeout forced a reader-count reset.
func (s *Synchronizer[T]) Write(value T, grace time.Duration) (int, bool, error) {
	data, err := s.arc.Serialize(value)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}

	return s.WriteRaw(data, grace)
}

// WriteRaw publishes a pre-serialized payload directly, bypassing the
// archiver's Serialize step. It is the primitive Write is built on; most
// callers should use Write.
func (s *Synchronizer[T]) WriteRaw(data []byte, grace time.Duration) (int, bool, error) {
	if uint64(len(data)) > version.MaxLen {
		return 0, false, fmt.Errorf("%w: payload is %d bytes, ceiling is %d", ErrBufferTooSmall, len(data), version.MaxLen)
	}

	cell, err := s.store.StateCell()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", ErrIO, err)
	}

	current := cell.LoadVersion()
	targetIdx := version.OtherIdx(current)

	wasReset := s.awaitGrace(cell, targetIdx, grace)

	buf, err := s.store.WritableBuffer(targetIdx, uint64(len(data)))
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", ErrIO, err)
	}

	n := copy(buf, data)

	checksum := xxhash.Sum64(data) & version.MaxChecksum

	word, err := version.Encode(targetIdx, uint64(n), checksum)
	if err != nil {
		return 0, false, fmt.Errorf("shmsync: encode version: %w", err)
	}

	cell.StoreVersion(word)

	return n, wasReset, nil
}

// awaitGrace waits up to grace for idx's reader count to drop to zero,
// backing off along graceBackoff between checks. If grace elapses first
// it forces the count to zero and returns true.
func (s *Synchronizer[T]) awaitGrace(cell *statecell.Cell, idx int, grace time.Duration) bool {
	if cell.ReaderCount(idx) == 0 {
		return false
	}

	deadline := time.Now().Add(grace)
	step := 0

	for {
		if cell.ReaderCount(idx) == 0 {
			return false
		}

		if time.Now().After(deadline) {
			cell.ResetReaderCount(idx)
			return true
		}

		wait := graceBackoff[step]
		if step < len(graceBackoff)-1 {
			step++
		}

		remaining := time.Until(deadline)
		if remaining < wait {
			wait = remaining
		}
		if wait > 0 {
			time.Sleep(wait)
		}
	}
}

// Read returns the most recently published value, validating its
// checksum and structural well-formedness before returning it. Callers
// must call Close (or Release) on the returned ReadResult when done.
//
// It follows the read protocol: acquire-load the version, pin the
// referenced buffer, re-check the version hasn't moved (re-pinning and
// re-checking until it holds steady), recompute the checksum, and hand
// the validated bytes to the archiver.
func (s *Synchronizer[T]) Read() (*ReadResult[T], error) {
	return s.read(true)
}

// ReadUnvalidated is Read without the checksum recompute or archiver
// structural validation: it hands the pinned buffer's bytes straight to
// the archiver's Access method. It is faster than Read (spec scenario 4)
// but trusts the caller to know the payload is well-formed; use it only
// when the writer and reader are known to agree on the archiver and the
// checksum step's cost is not worth paying on every read.
func (s *Synchronizer[T]) ReadUnvalidated() (*ReadResult[T], error) {
	return s.read(false)
}

func (s *Synchronizer[T]) read(validate bool) (*ReadResult[T], error) {
	cell, err := s.store.StateCell()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	word := cell.LoadVersion()

	decoded, ok := version.Decode(word)
	if !ok {
		return nil, ErrUninitialized
	}

	cell.AcquireReader(decoded.Idx)

	retried := word
	for {
		current := cell.LoadVersion()
		if current == retried {
			break
		}

		cell.ReleaseReader(decoded.Idx)

		decoded, ok = version.Decode(current)
		if !ok {
			return nil, ErrUninitialized
		}

		cell.AcquireReader(decoded.Idx)
		retried = current
	}

	buf, err := s.store.ReadableBuffer(decoded.Idx, decoded.Len)
	if err != nil {
		cell.ReleaseReader(decoded.Idx)
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	if uint64(len(buf)) < decoded.Len {
		cell.ReleaseReader(decoded.Idx)
		return nil, fmt.Errorf("%w: mapped %d bytes, version declares %d", ErrIO, len(buf), decoded.Len)
	}

	payload := buf[:decoded.Len]

	if validate {
		checksum := xxhash.Sum64(payload) & version.MaxChecksum
		if checksum != decoded.Checksum {
			cell.ReleaseReader(decoded.Idx)
			return nil, fmt.Errorf("%w: got %#x, want %#x", ErrChecksumMismatch, checksum, decoded.Checksum)
		}

		view, err := s.arc.Validate(payload)
		if err != nil {
			cell.ReleaseReader(decoded.Idx)
			return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
		}

		return &ReadResult[T]{view: view, cell: cell, idx: decoded.Idx}, nil
	}

	view := s.arc.Access(payload)

	return &ReadResult[T]{view: view, cell: cell, idx: decoded.Idx}, nil
}
