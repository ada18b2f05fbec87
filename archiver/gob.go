package archiver

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Gob is a reference Archiver implementation built on encoding/gob.
//
// It is the archiver the synchronizer's own test suite and example
// programs use; it is not part of the synchronization core and is
// provided purely as a working default so the rest of the library is
// exercisable without a hand-written codec per value type.
//
// Gob is not zero-copy: Validate/Access fully decode the gob stream into a
// heap-allocated T. Implementations pursuing in-place, zero-copy layouts
// would replace this with a generated accessor over a fixed binary
// layout; nothing in the core depends on Gob specifically.
type Gob[T any] struct{}

// NewGob returns a Gob archiver for T.
func NewGob[T any]() *Gob[T] {
	return &Gob[T]{}
}

// Serialize gob-encodes value.
func (*Gob[T]) Serialize(value T) ([]byte, error) {
	var buf bytes.Buffer

	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return nil, fmt.Errorf("%w: gob encode: %w", ErrSerialization, err)
	}

	return buf.Bytes(), nil
}

// Validate gob-decodes data, returning ErrValidation if the stream is
// truncated or malformed.
func (*Gob[T]) Validate(data []byte) (*View[T], error) {
	var value T

	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: gob decode: %w", ErrValidation, err)
	}

	return NewView(&value), nil
}

// Access decodes data the same way Validate does. Gob has no unchecked
// decode path faster than its checked one, so the two are identical for
// this archiver; implementations with true zero-copy layouts are where
// Access earns its keep.
func (g *Gob[T]) Access(data []byte) *View[T] {
	view, err := g.Validate(data)
	if err != nil {
		var zero T
		return NewView(&zero)
	}

	return view
}
