// Package index implements the Index Store (spec §4.3): a per-bundle
// JSON record mapping logical paths to blob hashes, written atomically
// and never mutated once written.
package index

import (
	"encoding/json"
	"os"
	"path/filepath"

	digest "github.com/opencontainers/go-digest"

	"github.com/SiestaCat/dep-cache-proxy-server/depset"
	"github.com/SiestaCat/dep-cache-proxy-server/internal/uuid"
)

// Index is the bundle-scoped record persisted at indexes/<bundle_id>.json.
// Every digest in Files is guaranteed, by construction, to resolve in the
// Blob Store by the time an Index is saved (spec §3 invariant).
type Index struct {
	BundleID       digest.Digest            `json:"bundle_hash"`
	Manager        depset.Manager           `json:"manager"`
	ManagerVersion string                   `json:"manager_version"`
	Files          map[string]digest.Digest `json:"files"`
}

// Store persists and retrieves Index records under a directory on the
// local filesystem.
type Store struct {
	root string
}

// New returns a Store rooted at root. root/indexes is created if absent.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, "indexes"), 0o755); err != nil {
		return nil, &Error{Op: "new", Err: err}
	}
	return &Store{root: root}, nil
}

// Save writes idx to disk atomically (temp file + rename), overwriting
// nothing: indexes are created once and never mutated, so a second Save
// for the same bundle id is expected to produce byte-identical content.
func (s *Store) Save(idx Index) error {
	payload, err := json.Marshal(idx)
	if err != nil {
		return &Error{Op: "save", BundleID: idx.BundleID, Err: err}
	}

	target := s.path(idx.BundleID)
	tmp := target + "." + uuid.NewString() + ".tmp"

	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return &Error{Op: "save", BundleID: idx.BundleID, Err: err}
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return &Error{Op: "save", BundleID: idx.BundleID, Err: err}
	}

	return nil
}

// Load returns the Index for bundleID, or ErrNotExist if none has been
// saved.
func (s *Store) Load(bundleID digest.Digest) (Index, error) {
	payload, err := os.ReadFile(s.path(bundleID))
	if err != nil {
		if os.IsNotExist(err) {
			return Index{}, &Error{Op: "load", BundleID: bundleID, Err: ErrNotExist}
		}
		return Index{}, &Error{Op: "load", BundleID: bundleID, Err: err}
	}

	var idx Index
	if err := json.Unmarshal(payload, &idx); err != nil {
		return Index{}, &Error{Op: "load", BundleID: bundleID, Err: err}
	}
	return idx, nil
}

// Exists reports whether an index file exists for bundleID. It does not,
// by itself, imply a cache hit: callers must additionally check archive
// presence (spec §4.3, §4.8 invariants).
func (s *Store) Exists(bundleID digest.Digest) (bool, error) {
	_, err := os.Stat(s.path(bundleID))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, &Error{Op: "exists", BundleID: bundleID, Err: err}
}

func (s *Store) path(bundleID digest.Digest) string {
	return filepath.Join(s.root, "indexes", bundleID.Encoded()+".json")
}

// ManagerVersionDescriptor derives the short diagnostic string stored
// alongside an index (spec §4.3). It is never part of bundle identity;
// the full version tuple is, via the Hasher.
func ManagerVersionDescriptor(manager depset.Manager, versions depset.VersionTuple) string {
	switch manager {
	case depset.NPM, depset.Yarn:
		runtime, hasRuntime := versions["node"]
		pm, hasPM := versions[string(manager)]
		if hasRuntime && hasPM {
			return runtime + "_" + pm
		}
		return "unknown"
	case depset.Composer:
		if runtime, ok := versions["php"]; ok {
			return runtime
		}
		return "unknown"
	default:
		return "unknown"
	}
}

// ErrNotExist is returned (wrapped in Error) when a requested index has
// not been saved.
var ErrNotExist = &notExistError{}

type notExistError struct{}

func (*notExistError) Error() string { return "index does not exist" }

// Error records a storage fault from a specific index store operation.
type Error struct {
	Op       string
	BundleID digest.Digest
	Err      error
}

func (e *Error) Error() string {
	return "index: " + e.Op + " " + e.BundleID.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
