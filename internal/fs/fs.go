// Package fs provides a small filesystem abstraction used to write a
// config file atomically (see internal/config). The package ships no fake
// implementation; internal/config uses [Real] directly.
//
// The main types are:
//   - [FS]: interface for filesystem operations
//   - [Real]: production implementation using [os] package
//
// Example usage:
//
//	fsys := fs.NewReal()
//	if err := fsys.WriteFileAtomic(path, data, 0o644); err != nil {
//	    return err
//	}
package fs

import "os"

// FS defines the filesystem operations config.Save needs.
//
// The only implementation in this package is [Real], which wraps the
// [os] package. config.Save constructs a [Real] itself rather than taking
// an FS.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// WriteFileAtomic writes data to path via a temp-file-plus-rename swap,
	// so concurrent readers never observe a partially written file. [Real]
	// does not apply perm; callers needing a specific mode should chmod
	// afterward.
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)
}
