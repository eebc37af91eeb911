package blobstore

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	digest "github.com/opencontainers/go-digest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), digest.SHA256)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	content := []byte("hello blob store")
	dgst, err := s.Put(ctx, content)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if dgst != digest.SHA256.FromBytes(content) {
		t.Fatalf("Put returned unexpected digest: %s", dgst)
	}

	got, err := s.Get(ctx, dgst)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("Get returned %q, want %q", got, content)
	}
}

func TestPutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	content := []byte("deduplicate me")
	first, err := s.Put(ctx, content)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	second, err := s.Put(ctx, content)
	if err != nil {
		t.Fatalf("Put (second): %v", err)
	}
	if first != second {
		t.Fatalf("Put returned different digests for identical content: %s != %s", first, second)
	}
}

func TestGetNotExist(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, digest.SHA256.FromBytes([]byte("never stored")))
	if err == nil {
		t.Fatalf("expected error for missing blob")
	}
}

func TestHas(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	content := []byte("present")
	dgst, err := s.Put(ctx, content)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	has, err := s.Has(ctx, dgst)
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !has {
		t.Fatalf("Has returned false for a stored blob")
	}

	has, err = s.Has(ctx, digest.SHA256.FromBytes([]byte("absent")))
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if has {
		t.Fatalf("Has returned true for a blob never stored")
	}
}

func TestPathFanout(t *testing.T) {
	s := newTestStore(t)
	content := []byte("fanout check")
	dgst := digest.SHA256.FromBytes(content)

	p, err := s.Path(dgst)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}

	hex := dgst.Encoded()
	want := s.root + "/blobs/" + hex[:2] + "/" + hex[2:]
	if p != want {
		t.Fatalf("Path = %q, want %q", p, want)
	}
}

func TestNoWriteLeftBehindOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Put(ctx, []byte("tidy")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var tmpFound bool
	filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.HasSuffix(path, ".tmp") {
			tmpFound = true
		}
		return nil
	})
	if tmpFound {
		t.Fatalf("temp file left behind after successful Put")
	}
}
