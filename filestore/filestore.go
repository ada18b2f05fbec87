// Package filestore owns the three files behind a synchronizer: the state
// file and the two data buffer files. It grows data files on demand and
// memory-maps all three for in-place atomic access.
//
// A Store never interprets the bytes it maps; it is a thin, typed
// convenience over open/truncate/mmap so the synchronizer package can focus
// on the publication protocol.
package filestore

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/shmsync/shmsync/statecell"
)

const (
	stateSuffix = "_state"
	data0Suffix = "_data_0"
	data1Suffix = "_data_1"
)

// Store holds the open files and current mappings for one synchronizer
// path prefix. A Store is safe for concurrent use by multiple goroutines
// within one process; coordination across processes happens entirely
// through the mapped bytes (statecell, instance version), not through this
// type.
type Store struct {
	statePath string
	dataPaths [2]string

	statePerm os.FileMode
	dataPerm  os.FileMode

	stateFile *os.File
	stateMap  []byte

	data [2]dataBuffer
}

type dataBuffer struct {
	mu   sync.RWMutex // guards file/mapped swap during growth/remap
	file *os.File
	mmap []byte // current mapping; len(mmap) is the mapped capacity
}

// Open creates or opens the state file under pathPrefix and maps it
// read-write. Data files are opened lazily by EnsureDataCapacity and
// ReadableBuffer.
//
// If the state file already exists with the correct size, its contents
// (a previously published instance version, if any) are preserved — this
// is what lets a freshly started process recover the last write (spec P9).
func Open(pathPrefix string, statePerm, dataPerm os.FileMode) (*Store, error) {
	s := &Store{
		statePath: pathPrefix + stateSuffix,
		dataPaths: [2]string{pathPrefix + data0Suffix, pathPrefix + data1Suffix},
		statePerm: statePerm,
		dataPerm:  dataPerm,
	}

	if err := s.mapState(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) mapState() error {
	file, err := os.OpenFile(s.statePath, os.O_RDWR|os.O_CREATE, s.statePerm)
	if err != nil {
		return fmt.Errorf("filestore: open state file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("filestore: stat state file: %w", err)
	}

	if info.Size() != statecell.Size {
		if err := file.Truncate(statecell.Size); err != nil {
			_ = file.Close()
			return fmt.Errorf("filestore: truncate state file: %w", err)
		}
	}

	mapped, err := unix.Mmap(int(file.Fd()), 0, statecell.Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("filestore: mmap state file: %w", err)
	}

	s.stateFile = file
	s.stateMap = mapped

	return nil
}

// StateCell returns the statecell.Cell backed by the mapped state file.
func (s *Store) StateCell() (*statecell.Cell, error) {
	return statecell.New(s.stateMap)
}

// EnsureDataCapacity guarantees the data file for idx is at least length
// bytes, opening it if necessary and truncating+remapping it if it is
// currently smaller. It never shrinks a file.
func (s *Store) EnsureDataCapacity(idx int, length uint64) error {
	buf := &s.data[idx]

	buf.mu.Lock()
	defer buf.mu.Unlock()

	if buf.file == nil {
		file, err := os.OpenFile(s.dataPaths[idx], os.O_RDWR|os.O_CREATE, s.dataPerm)
		if err != nil {
			return fmt.Errorf("filestore: open data file %d: %w", idx, err)
		}

		buf.file = file
	}

	if uint64(len(buf.mmap)) >= length {
		return nil
	}

	info, err := buf.file.Stat()
	if err != nil {
		return fmt.Errorf("filestore: stat data file %d: %w", idx, err)
	}

	if uint64(info.Size()) < length {
		if err := buf.file.Truncate(int64(length)); err != nil {
			return fmt.Errorf("filestore: grow data file %d to %d bytes: %w", idx, length, err)
		}
	}

	return s.remapLocked(buf, idx, length)
}

// remapLocked replaces buf.mmap with a fresh mapping covering at least
// length bytes. Callers must hold buf.mu.
func (s *Store) remapLocked(buf *dataBuffer, idx int, length uint64) error {
	if buf.mmap != nil {
		if err := unix.Munmap(buf.mmap); err != nil {
			return fmt.Errorf("filestore: munmap data file %d: %w", idx, err)
		}

		buf.mmap = nil
	}

	mapped, err := unix.Mmap(int(buf.file.Fd()), 0, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("filestore: mmap data file %d: %w", idx, err)
	}

	buf.mmap = mapped

	return nil
}

// WritableBuffer returns a writable view into data file idx with capacity
// at least length, growing and remapping it first if needed. Only the
// writer ever calls this, and only for the buffer it is about to publish
// into (I2).
func (s *Store) WritableBuffer(idx int, length uint64) ([]byte, error) {
	if err := s.EnsureDataCapacity(idx, length); err != nil {
		return nil, err
	}

	buf := &s.data[idx]

	buf.mu.RLock()
	defer buf.mu.RUnlock()

	return buf.mmap, nil
}

// ReadableBuffer returns a view into data file idx for reading. It reopens
// and remaps the file if it has never been mapped by this Store, or if the
// requested length exceeds what is currently mapped — another process may
// have grown the file since this Store last looked. The file is opened
// read-write, because the shared mapping it creates is the same one
// WritableBuffer later hands out.
func (s *Store) ReadableBuffer(idx int, length uint64) ([]byte, error) {
	buf := &s.data[idx]

	buf.mu.RLock()
	if buf.file != nil && uint64(len(buf.mmap)) >= length {
		view := buf.mmap
		buf.mu.RUnlock()

		return view, nil
	}
	buf.mu.RUnlock()

	buf.mu.Lock()
	defer buf.mu.Unlock()

	if buf.file == nil {
		file, err := os.OpenFile(s.dataPaths[idx], os.O_RDWR, s.dataPerm)
		if err != nil {
			return nil, fmt.Errorf("filestore: open data file %d for read: %w", idx, err)
		}

		buf.file = file
	}

	if uint64(len(buf.mmap)) >= length {
		return buf.mmap, nil
	}

	info, err := buf.file.Stat()
	if err != nil {
		return nil, fmt.Errorf("filestore: stat data file %d: %w", idx, err)
	}

	mapLen := length
	if uint64(info.Size()) < mapLen {
		mapLen = uint64(info.Size())
	}

	if mapLen == 0 {
		return nil, nil
	}

	if err := s.remapLocked(buf, idx, mapLen); err != nil {
		return nil, err
	}

	return buf.mmap, nil
}

// Close unmaps and closes every open file. It is safe to call more than
// once.
func (s *Store) Close() error {
	var firstErr error

	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.stateMap != nil {
		note(unix.Munmap(s.stateMap))
		s.stateMap = nil
	}

	if s.stateFile != nil {
		note(s.stateFile.Close())
		s.stateFile = nil
	}

	for i := range s.data {
		buf := &s.data[i]

		buf.mu.Lock()
		if buf.mmap != nil {
			note(unix.Munmap(buf.mmap))
			buf.mmap = nil
		}

		if buf.file != nil {
			note(buf.file.Close())
			buf.file = nil
		}
		buf.mu.Unlock()
	}

	return firstErr
}
