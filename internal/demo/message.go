// Package demo holds the example payload type the shm-writer, shm-reader
// and shm-repl commands publish and read, standing in for whatever value
// type a real application would publish.
package demo

// Message is a small, gob-friendly example value.
type Message struct {
	Version  uint32
	Messages []string
}
