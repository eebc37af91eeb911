// Package blobstore implements the content-addressed Blob Store (spec
// §4.2): immutable byte blobs, deduplicated by content hash, written
// atomically via a temp-file-then-rename discipline modeled on the
// teacher's filesystem storage driver.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	digest "github.com/opencontainers/go-digest"

	"github.com/SiestaCat/dep-cache-proxy-server/internal/dcontext"
	"github.com/SiestaCat/dep-cache-proxy-server/internal/uuid"
	"github.com/SiestaCat/dep-cache-proxy-server/metrics"
)

// Store is a content-addressed blob store rooted at a directory on the
// local filesystem. A Store has no shared mutable state beyond the
// directory tree itself; safety under concurrent writers comes from
// rename-atomicity and content-addressing, not locks (spec §5).
type Store struct {
	root      string
	algorithm digest.Algorithm
}

// New returns a Store rooted at root, content-addressing blobs under
// algorithm. root is created if it does not already exist.
func New(root string, algorithm digest.Algorithm) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, "blobs"), 0o755); err != nil {
		return nil, &Error{Op: "new", Err: err}
	}
	return &Store{root: root, algorithm: algorithm}, nil
}

// Put stores content, returning its digest. Put is idempotent: if a blob
// with the same digest already exists, its bytes are assumed identical
// (content-addressing guarantees it) and no write occurs.
func (s *Store) Put(ctx context.Context, content []byte) (digest.Digest, error) {
	dgst := s.algorithm.FromBytes(content)

	has, err := s.Has(ctx, dgst)
	if err != nil {
		return "", err
	}
	if has {
		metrics.RecordBlobDeduplicated()
		return dgst, nil
	}

	target := s.path(dgst)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", &Error{Op: "put", Digest: dgst, Err: err}
	}

	tmp := target + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return "", &Error{Op: "put", Digest: dgst, Err: err}
	}

	if err := os.Rename(tmp, target); err != nil {
		// Another writer may have raced us into place; since the path is
		// content-addressed, whatever is at target now has the same bytes
		// we were about to write, so this is not a failure.
		_ = os.Remove(tmp)
		if _, statErr := os.Stat(target); statErr == nil {
			dcontext.GetLogger(ctx).Debugf("blobstore: rename race on %s, existing blob accepted", dgst)
			metrics.RecordBlobDeduplicated()
			return dgst, nil
		}
		return "", &Error{Op: "put", Digest: dgst, Err: err}
	}

	metrics.RecordBlobWritten()
	return dgst, nil
}

// Get returns the contents of the blob addressed by dgst. Returns
// ErrNotExist if no such blob exists.
func (s *Store) Get(ctx context.Context, dgst digest.Digest) ([]byte, error) {
	p, err := s.Path(dgst)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{Op: "get", Digest: dgst, Err: ErrNotExist}
		}
		return nil, &Error{Op: "get", Digest: dgst, Err: err}
	}
	return content, nil
}

// Path validates dgst and returns its on-disk path without reading it or
// checking that the blob exists. Get and Open both locate blobs through
// it.
func (s *Store) Path(dgst digest.Digest) (string, error) {
	if err := dgst.Validate(); err != nil {
		return "", &Error{Op: "get", Digest: dgst, Err: err}
	}
	return s.path(dgst), nil
}

// Open returns a reader for the blob addressed by dgst. Callers must
// Close it.
func (s *Store) Open(ctx context.Context, dgst digest.Digest) (io.ReadCloser, error) {
	p, err := s.Path(dgst)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{Op: "open", Digest: dgst, Err: ErrNotExist}
		}
		return nil, &Error{Op: "open", Digest: dgst, Err: err}
	}
	return f, nil
}

// Has reports whether a blob with the given digest is present.
func (s *Store) Has(ctx context.Context, dgst digest.Digest) (bool, error) {
	if err := dgst.Validate(); err != nil {
		return false, &Error{Op: "has", Digest: dgst, Err: err}
	}

	_, err := os.Stat(s.path(dgst))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, &Error{Op: "has", Digest: dgst, Err: err}
}

// path returns the two-level fanout path for dgst: blobs/<first 2 hex
// chars>/<rest>. The fanout caps any single directory's width at 256
// entries.
func (s *Store) path(dgst digest.Digest) string {
	hex := dgst.Encoded()
	return filepath.Join(s.root, "blobs", hex[:2], hex[2:])
}

// ErrNotExist is returned (wrapped in Error) when a requested blob is not
// present in the store.
var ErrNotExist = fmt.Errorf("blob does not exist")

// Error records a storage fault from a specific blob store operation.
// Implementations upstream map Error to the spec's StorageFault error
// kind, except when Err is ErrNotExist.
type Error struct {
	Op     string
	Digest digest.Digest
	Err    error
}

func (e *Error) Error() string {
	if e.Digest == "" {
		return fmt.Sprintf("blobstore: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("blobstore: %s %s: %v", e.Op, e.Digest, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
