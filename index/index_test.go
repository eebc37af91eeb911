package index

import (
	"testing"

	digest "github.com/opencontainers/go-digest"

	"github.com/SiestaCat/dep-cache-proxy-server/depset"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	bundleID := digest.SHA256.FromBytes([]byte("bundle"))
	idx := Index{
		BundleID:       bundleID,
		Manager:        depset.NPM,
		ManagerVersion: "20.1.0_10.0.0",
		Files: map[string]digest.Digest{
			"node_modules/foo/index.js": digest.SHA256.FromBytes([]byte("content")),
		},
	}

	if err := s.Save(idx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(bundleID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.BundleID != idx.BundleID || got.ManagerVersion != idx.ManagerVersion {
		t.Fatalf("Load returned %+v, want %+v", got, idx)
	}
	if len(got.Files) != len(idx.Files) {
		t.Fatalf("Load returned %d files, want %d", len(got.Files), len(idx.Files))
	}
}

func TestLoadMissing(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = s.Load(digest.SHA256.FromBytes([]byte("never saved")))
	if err == nil {
		t.Fatalf("expected error loading an unsaved index")
	}
}

func TestExists(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	bundleID := digest.SHA256.FromBytes([]byte("exists check"))

	exists, err := s.Exists(bundleID)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatalf("Exists returned true before Save")
	}

	if err := s.Save(Index{BundleID: bundleID, Files: map[string]digest.Digest{}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	exists, err = s.Exists(bundleID)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Fatalf("Exists returned false after Save")
	}
}

func TestManagerVersionDescriptor(t *testing.T) {
	cases := []struct {
		manager  depset.Manager
		versions depset.VersionTuple
		want     string
	}{
		{depset.NPM, depset.VersionTuple{"node": "20.1.0", "npm": "10.0.0"}, "20.1.0_10.0.0"},
		{depset.NPM, depset.VersionTuple{"node": "20.1.0"}, "unknown"},
		{depset.Yarn, depset.VersionTuple{"node": "20.1.0", "yarn": "4.0.0"}, "20.1.0_4.0.0"},
		{depset.Composer, depset.VersionTuple{"php": "8.2.0"}, "8.2.0"},
		{depset.Composer, depset.VersionTuple{}, "unknown"},
		{depset.Manager("pip"), depset.VersionTuple{"python": "3.12"}, "unknown"},
	}

	for _, c := range cases {
		if got := ManagerVersionDescriptor(c.manager, c.versions); got != c.want {
			t.Errorf("ManagerVersionDescriptor(%s, %v) = %q, want %q", c.manager, c.versions, got, c.want)
		}
	}
}
