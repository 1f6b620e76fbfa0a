package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"impractical.co/resumable"
)

func TestStorerRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storer, err := NewStorer()
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}

	exists, err := storer.Exists(ctx, "greeting")
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
	if exists {
		t.Errorf("Expected blob to not exist yet")
	}

	assigned, err := storer.Save(ctx, "greeting", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
	if assigned != "greeting" {
		t.Errorf("Expected assigned name to be %q, got %q", "greeting", assigned)
	}

	size, err := storer.Size(ctx, "greeting")
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
	if size != 5 {
		t.Errorf("Expected size to be 5, got %d", size)
	}

	in, err := storer.Open(ctx, "greeting")
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
	defer in.Close()
	contents, err := io.ReadAll(in)
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
	if string(contents) != "hello" {
		t.Errorf("Expected contents to be %q, got %q", "hello", contents)
	}

	err = storer.Delete(ctx, "greeting")
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
	_, err = storer.Open(ctx, "greeting")
	if !errors.Is(err, resumable.ErrFileNotFound) {
		t.Errorf("Expected %q, got %q", resumable.ErrFileNotFound, err)
	}

	// deleting again is a no-op
	err = storer.Delete(ctx, "greeting")
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
}

func TestStorerSaveOverwrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storer, err := NewStorer()
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}

	if _, err := storer.Save(ctx, "greeting", strings.NewReader("hello")); err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
	if _, err := storer.Save(ctx, "greeting", strings.NewReader("hi")); err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}

	size, err := storer.Size(ctx, "greeting")
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
	if size != 2 {
		t.Errorf("Expected size to be 2, got %d", size)
	}
}

func TestStorerList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storer, err := NewStorer()
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}

	for _, name := range []string{"a_part_0002", "a_part_0001", "b_part_0001"} {
		if _, err := storer.Save(ctx, name, strings.NewReader("x")); err != nil {
			t.Fatalf("Unexpected error: %+v", err)
		}
	}

	names, err := storer.List(ctx, "a_part_")
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
	expected := []string{"a_part_0001", "a_part_0002"}
	if len(names) != len(expected) {
		t.Fatalf("Expected names to be %v, got %v", expected, names)
	}
	for pos, name := range names {
		if name != expected[pos] {
			t.Errorf("Expected name %d to be %q, got %q", pos, expected[pos], name)
		}
	}
}

func TestStorerSizeMissing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storer, err := NewStorer()
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
	_, err = storer.Size(ctx, "missing")
	if !errors.Is(err, resumable.ErrFileNotFound) {
		t.Errorf("Expected %q, got %q", resumable.ErrFileNotFound, err)
	}
}
