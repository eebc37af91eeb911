// Package archiver implements the Bundle Archiver (spec §4.4): it
// materializes a bundle's index into a single deterministic zip archive,
// streaming each entry's bytes out of the Blob Store rather than
// buffering the whole bundle in memory.
package archiver

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	digest "github.com/opencontainers/go-digest"
	"github.com/klauspost/compress/flate"

	"github.com/SiestaCat/dep-cache-proxy-server/index"
	"github.com/SiestaCat/dep-cache-proxy-server/internal/uuid"
)

// epoch is the fixed modification time stamped on every zip entry.
// Pinning it, rather than using time.Now, is what makes two builds of the
// same index byte-identical (spec §4.4, §9).
var epoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

func init() {
	// klauspost/compress's flate implementation is deterministic for a
	// fixed compression level and byte-identical input, unlike some
	// platforms' zlib bindings; registering it as the zip package's
	// Deflate compressor is what makes archive bytes reproducible across
	// machines, not just within one process.
	zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})
}

// BlobReader opens blobs by digest. blobstore.Store satisfies this.
type BlobReader interface {
	Open(ctx context.Context, dgst digest.Digest) (io.ReadCloser, error)
}

// Archiver builds and locates bundle archives on the local filesystem.
type Archiver struct {
	root  string
	blobs BlobReader
}

// New returns an Archiver rooted at root, reading blob content through
// blobs. root/bundles is created if absent.
func New(root string, blobs BlobReader) (*Archiver, error) {
	if err := os.MkdirAll(filepath.Join(root, "bundles"), 0o755); err != nil {
		return nil, &Error{Op: "new", Err: err}
	}
	return &Archiver{root: root, blobs: blobs}, nil
}

// Build materializes idx as a deterministic zip archive at
// bundles/<bundle_id>.zip. Build is idempotent: if the archive already
// exists it is left untouched and returned without being rewritten,
// since its content is wholly determined by idx.
func (a *Archiver) Build(ctx context.Context, idx index.Index) (string, error) {
	target := a.path(idx.BundleID)
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	tmp := target + "." + uuid.NewString() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", &Error{Op: "build", BundleID: idx.BundleID, Err: err}
	}

	if err := a.write(ctx, f, idx); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", &Error{Op: "build", BundleID: idx.BundleID, Err: err}
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		if _, statErr := os.Stat(target); statErr == nil {
			return target, nil
		}
		return "", &Error{Op: "build", BundleID: idx.BundleID, Err: err}
	}

	return target, nil
}

func (a *Archiver) write(ctx context.Context, f *os.File, idx index.Index) error {
	zw := zip.NewWriter(f)

	paths := make([]string, 0, len(idx.Files))
	for p := range idx.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		dgst := idx.Files[p]

		header := &zip.FileHeader{
			Name:     p,
			Method:   zip.Deflate,
			Modified: epoch,
		}
		header.SetMode(0o644)

		w, err := zw.CreateHeader(header)
		if err != nil {
			zw.Close()
			return &Error{Op: "build", BundleID: idx.BundleID, Err: err}
		}

		r, err := a.blobs.Open(ctx, dgst)
		if err != nil {
			zw.Close()
			return &Error{Op: "build", BundleID: idx.BundleID, Err: err}
		}

		_, copyErr := io.Copy(w, r)
		closeErr := r.Close()
		if copyErr != nil {
			zw.Close()
			return &Error{Op: "build", BundleID: idx.BundleID, Err: copyErr}
		}
		if closeErr != nil {
			zw.Close()
			return &Error{Op: "build", BundleID: idx.BundleID, Err: closeErr}
		}
	}

	if err := zw.Close(); err != nil {
		return &Error{Op: "build", BundleID: idx.BundleID, Err: err}
	}
	return nil
}

// Path returns the on-disk path of bundleID's archive and whether it
// exists.
func (a *Archiver) Path(bundleID digest.Digest) (path string, exists bool) {
	p := a.path(bundleID)
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

func (a *Archiver) path(bundleID digest.Digest) string {
	return filepath.Join(a.root, "bundles", bundleID.Encoded()+".zip")
}

// Error records a failure building or locating a bundle archive.
type Error struct {
	Op       string
	BundleID digest.Digest
	Err      error
}

func (e *Error) Error() string {
	return "archiver: " + e.Op + " " + e.BundleID.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
