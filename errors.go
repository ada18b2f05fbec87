package shmsync

import "errors"

// ErrUninitialized is returned by Read/ReadUnvalidated when no write has
// ever published a version.
var ErrUninitialized = errors.New("shmsync: uninitialized")

// ErrBufferTooSmall is returned by Write/WriteRaw when the serialized
// payload exceeds the length field's ceiling (version.MaxLen bytes).
var ErrBufferTooSmall = errors.New("shmsync: buffer too small")

// ErrChecksumMismatch is returned by Read when the payload's recomputed
// checksum does not match the one published in the instance version.
var ErrChecksumMismatch = errors.New("shmsync: checksum mismatch")

// ErrValidationFailed is returned by Read when the archiver rejects the
// payload bytes as structurally invalid. It wraps the archiver's own
// ErrValidation.
var ErrValidationFailed = errors.New("shmsync: validation failed")

// ErrSerializationFailed is returned by Write when the archiver cannot
// produce a byte image for the value (WriteRaw bypasses the archiver). It wraps the archiver's own
// ErrSerialization.
var ErrSerializationFailed = errors.New("shmsync: serialization failed")

// ErrIO is wrapped by errors surfaced from the underlying file store
// (open, truncate, mmap failures).
var ErrIO = errors.New("shmsync: io error")
