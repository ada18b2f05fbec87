// Command shm-reader reads the most recently published Message from
// shared memory and exits.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/shmsync/shmsync"
	"github.com/shmsync/shmsync/archiver"
	"github.com/shmsync/shmsync/internal/demo"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "shm-reader: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("shm-reader", pflag.ContinueOnError)

	prefix := fs.StringP("prefix", "p", "/tmp/hello_world", "shared memory path prefix")
	unvalidated := fs.BoolP("unvalidated", "u", false, "skip checksum and archiver validation")

	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := shmsync.New[demo.Message](archiver.NewGob[demo.Message](), shmsync.Options{PathPrefix: *prefix})
	if err != nil {
		return fmt.Errorf("open synchronizer: %w", err)
	}
	defer s.Close()

	var result *shmsync.ReadResult[demo.Message]
	if *unvalidated {
		result, err = s.ReadUnvalidated()
	} else {
		result, err = s.Read()
	}
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	defer result.Close()

	data := result.Value()

	fmt.Printf("version: %d | messages: %v\n", data.Version, data.Messages)

	return nil
}
