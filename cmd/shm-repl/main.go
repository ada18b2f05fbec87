// shm-repl is an interactive CLI for writing and reading a Message
// through a Synchronizer, with a liner-based prompt and command history.
//
// Usage:
//
//	shm-repl <path-prefix>
//
// Commands:
//
//	write <version> <msg1,msg2,...> [grace]   Publish a message
//	read                                      Validated read of the latest message
//	read-fast                                 Unvalidated read of the latest message
//	info                                      Show path prefix and file sizes
//	help                                      Show this help
//	exit / quit / q                           Exit
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/shmsync/shmsync"
	"github.com/shmsync/shmsync/archiver"
	"github.com/shmsync/shmsync/internal/demo"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "shm-repl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return errors.New("usage: shm-repl <path-prefix>")
	}

	prefix := os.Args[1]

	s, err := shmsync.New[demo.Message](archiver.NewGob[demo.Message](), shmsync.Options{PathPrefix: prefix})
	if err != nil {
		return fmt.Errorf("open synchronizer: %w", err)
	}
	defer s.Close()

	repl := &REPL{prefix: prefix, sync: s}

	return repl.Run()
}

// REPL is the interactive command loop.
type REPL struct {
	prefix string
	sync   *shmsync.Synchronizer[demo.Message]
	liner  *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".shm_repl_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("shm-repl - shmsync CLI (prefix=%s)\n", r.prefix)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("shm> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()

			return nil

		case "help", "?":
			r.printHelp()

		case "write":
			r.cmdWrite(args)

		case "read":
			r.cmdRead(validated)

		case "read-fast":
			r.cmdRead(unvalidated)

		case "info":
			r.cmdInfo()

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) printHelp() {
	fmt.Println(`Commands:
  write <version> <msg1,msg2,...> [grace]   Publish a message (grace defaults to 1s)
  read                                      Validated read of the latest message
  read-fast                                 Unvalidated read of the latest message
  info                                      Show path prefix and file sizes
  help                                      Show this help
  exit / quit / q                           Exit`)
}

func (r *REPL) cmdWrite(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: write <version> <msg1,msg2,...> [grace]")
		return
	}

	version, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		fmt.Printf("invalid version: %v\n", err)
		return
	}

	messages := strings.Split(args[1], ",")

	grace := time.Second
	if len(args) >= 3 {
		parsed, err := time.ParseDuration(args[2])
		if err != nil {
			fmt.Printf("invalid grace duration: %v\n", err)
			return
		}

		grace = parsed
	}

	written, wasReset, err := r.sync.Write(demo.Message{Version: uint32(version), Messages: messages}, grace)
	if err != nil {
		fmt.Printf("write failed: %v\n", err)
		return
	}

	fmt.Printf("written: %d bytes | reset: %v\n", written, wasReset)
}

type readMode int

const (
	validated readMode = iota
	unvalidated
)

func (r *REPL) cmdRead(mode readMode) {
	var result *shmsync.ReadResult[demo.Message]

	var err error

	if mode == unvalidated {
		result, err = r.sync.ReadUnvalidated()
	} else {
		result, err = r.sync.Read()
	}

	if err != nil {
		fmt.Printf("read failed: %v\n", err)
		return
	}
	defer result.Close()

	data := result.Value()

	fmt.Printf("version: %d | messages: %v\n", data.Version, data.Messages)
}

func (r *REPL) cmdInfo() {
	fmt.Printf("prefix: %s\n", r.prefix)

	for _, suffix := range []string{"_state", "_data_0", "_data_1"} {
		path := r.prefix + suffix
		if info, err := os.Stat(path); err == nil {
			fmt.Printf("  %s: %d bytes\n", path, info.Size())
		} else {
			fmt.Printf("  %s: not yet created\n", path)
		}
	}
}
