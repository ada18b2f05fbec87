package filestore_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/shmsync/shmsync/filestore"
)

func TestOpenCreatesZeroInitializedStateFile(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "t1")

	store, err := filestore.Open(prefix, 0o660, 0o640)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	cell, err := store.StateCell()
	if err != nil {
		t.Fatalf("StateCell: %v", err)
	}

	if got := cell.LoadVersion(); got != 0 {
		t.Fatalf("initial version = %d, want 0", got)
	}
}

func TestEnsureDataCapacityGrowsAndNeverShrinks(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "t2")

	store, err := filestore.Open(prefix, 0o660, 0o640)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	buf, err := store.WritableBuffer(0, 36)
	if err != nil {
		t.Fatalf("WritableBuffer: %v", err)
	}

	if len(buf) < 36 {
		t.Fatalf("writable buffer len = %d, want >= 36", len(buf))
	}

	copy(buf, bytes.Repeat([]byte{0xAA}, 36))

	// Growing to a smaller length must not shrink the mapping.
	buf2, err := store.WritableBuffer(0, 10)
	if err != nil {
		t.Fatalf("WritableBuffer (smaller): %v", err)
	}

	if len(buf2) < 36 {
		t.Fatalf("writable buffer shrank to %d bytes", len(buf2))
	}
}

func TestReadableBufferSeesWriterGrowth(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "t3")

	writer, err := filestore.Open(prefix, 0o660, 0o640)
	if err != nil {
		t.Fatalf("Open writer: %v", err)
	}
	defer writer.Close()

	reader, err := filestore.Open(prefix, 0o660, 0o640)
	if err != nil {
		t.Fatalf("Open reader: %v", err)
	}
	defer reader.Close()

	payload := []byte("hello world, this is a published payload")

	wbuf, err := writer.WritableBuffer(0, uint64(len(payload)))
	if err != nil {
		t.Fatalf("WritableBuffer: %v", err)
	}

	copy(wbuf, payload)

	rbuf, err := reader.ReadableBuffer(0, uint64(len(payload)))
	if err != nil {
		t.Fatalf("ReadableBuffer: %v", err)
	}

	if !bytes.Equal(rbuf[:len(payload)], payload) {
		t.Fatalf("reader buffer = %q, want %q", rbuf[:len(payload)], payload)
	}
}

func TestReopenRecoversExistingStateFile(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "t4")

	store1, err := filestore.Open(prefix, 0o660, 0o640)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	cell1, err := store1.StateCell()
	if err != nil {
		t.Fatalf("StateCell: %v", err)
	}

	cell1.StoreVersion(0x1234)

	if err := store1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store2, err := filestore.Open(prefix, 0o660, 0o640)
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	defer store2.Close()

	cell2, err := store2.StateCell()
	if err != nil {
		t.Fatalf("StateCell: %v", err)
	}

	if got := cell2.LoadVersion(); got != 0x1234 {
		t.Fatalf("recovered version = %#x, want %#x", got, 0x1234)
	}
}
