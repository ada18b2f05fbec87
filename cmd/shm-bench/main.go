// Command shm-bench drives a writer and reader against the same path
// prefix for a fixed duration and reports throughput. go test -bench
// against package shmsync covers the same ground with testing.B and is
// the preferred way to benchmark in CI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/shmsync/shmsync"
	"github.com/shmsync/shmsync/archiver"
	"github.com/shmsync/shmsync/internal/demo"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "shm-bench: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("shm-bench", pflag.ContinueOnError)

	prefix := fs.StringP("prefix", "p", filepath.Join(os.TempDir(), "shm-bench"), "shared memory path prefix")
	duration := fs.DurationP("duration", "d", 2*time.Second, "how long to run each phase")
	grace := fs.DurationP("grace", "g", 10*time.Millisecond, "writer grace period")

	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := shmsync.New[demo.Message](archiver.NewGob[demo.Message](), shmsync.Options{PathPrefix: *prefix})
	if err != nil {
		return fmt.Errorf("open synchronizer: %w", err)
	}
	defer s.Close()

	value := demo.Message{Version: 1, Messages: []string{"Hello", "World", "!"}}
	if _, _, err := s.Write(value, *grace); err != nil {
		return fmt.Errorf("seed write: %w", err)
	}

	writes := runPhase(*duration, func() error {
		_, _, err := s.Write(value, *grace)
		return err
	})
	fmt.Printf("write: %d ops in %s (%.0f ops/s)\n", writes, *duration, float64(writes)/duration.Seconds())

	validatedReads := runPhase(*duration, func() error {
		result, err := s.Read()
		if err != nil {
			return err
		}
		result.Close()
		return nil
	})
	fmt.Printf("read (validated):   %d ops in %s (%.0f ops/s)\n", validatedReads, *duration, float64(validatedReads)/duration.Seconds())

	unvalidatedReads := runPhase(*duration, func() error {
		result, err := s.ReadUnvalidated()
		if err != nil {
			return err
		}
		result.Close()
		return nil
	})
	fmt.Printf("read (unvalidated): %d ops in %s (%.0f ops/s)\n", unvalidatedReads, *duration, float64(unvalidatedReads)/duration.Seconds())

	return nil
}

func runPhase(duration time.Duration, op func() error) int {
	deadline := time.Now().Add(duration)

	n := 0
	for time.Now().Before(deadline) {
		if err := op(); err != nil {
			fmt.Fprintf(os.Stderr, "op failed: %v\n", err)
			continue
		}
		n++
	}

	return n
}
