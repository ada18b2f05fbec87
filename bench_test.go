package shmsync_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shmsync/shmsync"
	"github.com/shmsync/shmsync/archiver"
)

func BenchmarkWrite(b *testing.B) {
	prefix := filepath.Join(b.TempDir(), "bench")

	s, err := shmsync.New[msg](archiver.NewGob[msg](), shmsync.Options{PathPrefix: prefix})
	if err != nil {
		b.Fatalf("New: %v", err)
	}
	defer s.Close()

	value := msg{Version: 1, Messages: []string{"Hello", "World", "!"}}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, _, err := s.Write(value, 10*time.Millisecond); err != nil {
			b.Fatalf("Write: %v", err)
		}
	}
}

func BenchmarkRead(b *testing.B) {
	prefix := filepath.Join(b.TempDir(), "bench")

	s, err := shmsync.New[msg](archiver.NewGob[msg](), shmsync.Options{PathPrefix: prefix})
	if err != nil {
		b.Fatalf("New: %v", err)
	}
	defer s.Close()

	if _, _, err := s.Write(msg{Version: 1, Messages: []string{"Hello", "World", "!"}}, time.Second); err != nil {
		b.Fatalf("Write: %v", err)
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		result, err := s.Read()
		if err != nil {
			b.Fatalf("Read: %v", err)
		}
		result.Close()
	}
}

// BenchmarkReadUnvalidated substantiates end-to-end scenario 4's claim
// that the unvalidated read path is never slower than the validated one.
func BenchmarkReadUnvalidated(b *testing.B) {
	prefix := filepath.Join(b.TempDir(), "bench")

	s, err := shmsync.New[msg](archiver.NewGob[msg](), shmsync.Options{PathPrefix: prefix})
	if err != nil {
		b.Fatalf("New: %v", err)
	}
	defer s.Close()

	if _, _, err := s.Write(msg{Version: 1, Messages: []string{"Hello", "World", "!"}}, time.Second); err != nil {
		b.Fatalf("Write: %v", err)
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		result, err := s.ReadUnvalidated()
		if err != nil {
			b.Fatalf("ReadUnvalidated: %v", err)
		}
		result.Close()
	}
}
