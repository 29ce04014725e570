package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStoreSaveLoad(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(filepath.Join(root, "outputs"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	if err := store.Save("task-1/images/0.jpg", []byte("jpeg")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := store.Load("task-1/images/0.jpg")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "jpeg" {
		t.Fatalf("unexpected data %q", data)
	}
	if _, err := os.Stat(filepath.Join(root, "outputs", "task-1", "images", "0.jpg")); err != nil {
		t.Fatalf("file not on disk: %v", err)
	}
}

func TestLocalStoreMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	if _, err := store.Load("nope.mmd"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalStoreRejectsEscapes(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	for _, p := range []string{"", "../x", "/etc/passwd", "a/../../b", `a\..\b`} {
		if err := store.Save(p, []byte("x")); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("%q: expected ErrInvalidPath, got %v", p, err)
		}
	}
}
