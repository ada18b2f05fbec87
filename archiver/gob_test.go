package archiver_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shmsync/shmsync/archiver"
)

type msg struct {
	Version  int
	Messages []string
}

func TestGobRoundTrip(t *testing.T) {
	a := archiver.NewGob[msg]()

	want := msg{Version: 7, Messages: []string{"Hello", "World", "!"}}

	data, err := a.Serialize(want)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	view, err := a.Validate(data)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if diff := cmp.Diff(want, *view.Value()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestGobValidateRejectsCorruptData(t *testing.T) {
	a := archiver.NewGob[msg]()

	data, err := a.Serialize(msg{Version: 1, Messages: []string{"a"}})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	corrupt := append([]byte(nil), data...)
	for i := range corrupt {
		corrupt[i] ^= 0xFF
	}

	if _, err := a.Validate(corrupt); !errors.Is(err, archiver.ErrValidation) {
		t.Fatalf("Validate(corrupt) error = %v, want wrapping ErrValidation", err)
	}
}

func TestGobAccessRoundTrip(t *testing.T) {
	a := archiver.NewGob[msg]()

	want := msg{Version: 2, Messages: []string{"x"}}

	data, err := a.Serialize(want)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	view := a.Access(data)

	if diff := cmp.Diff(want, *view.Value()); diff != "" {
		t.Fatalf("Access mismatch (-want +got):\n%s", diff)
	}
}
