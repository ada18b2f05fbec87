// Command shm-writer publishes a single Message into shared memory and
// exits.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/shmsync/shmsync"
	"github.com/shmsync/shmsync/archiver"
	"github.com/shmsync/shmsync/internal/demo"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "shm-writer: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("shm-writer", pflag.ContinueOnError)

	prefix := fs.StringP("prefix", "p", "/tmp/hello_world", "shared memory path prefix")
	grace := fs.DurationP("grace", "g", time.Second, "writer grace period")
	version := fs.Uint32P("version", "v", 7, "message version field")
	messages := fs.StringSliceP("message", "m", []string{"Hello", "World", "!"}, "message text (repeatable)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := shmsync.New[demo.Message](archiver.NewGob[demo.Message](), shmsync.Options{PathPrefix: *prefix})
	if err != nil {
		return fmt.Errorf("open synchronizer: %w", err)
	}
	defer s.Close()

	data := demo.Message{Version: *version, Messages: *messages}

	written, wasReset, err := s.Write(data, *grace)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	fmt.Printf("written: %d bytes | reset: %v | messages: %s\n", written, wasReset, strings.Join(*messages, ", "))

	return nil
}
