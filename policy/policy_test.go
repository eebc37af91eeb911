package policy

import (
	"testing"

	"github.com/SiestaCat/dep-cache-proxy-server/depset"
)

func TestSupportedWithEmptyListAlwaysSupported(t *testing.T) {
	p := New(nil)
	if !p.Supported(depset.NPM, depset.VersionTuple{"node": "99.0.0"}) {
		t.Fatalf("empty policy should support every version")
	}
}

func TestSupportedMatchesAfterAliasNormalization(t *testing.T) {
	entries := map[depset.Manager][]Entry{
		depset.NPM: {
			{"runtime": "20.1.0", "package_manager": "10.0.0"},
		},
	}
	p := New(entries)

	versions := depset.VersionTuple{"node": "20.1.0", "npm": "10.0.0"}
	if !p.Supported(depset.NPM, versions) {
		t.Fatalf("expected raw role names to match via alias normalization")
	}
}

func TestSupportedRejectsNonMatchingVersion(t *testing.T) {
	entries := map[depset.Manager][]Entry{
		depset.NPM: {
			{"runtime": "20.1.0"},
		},
	}
	p := New(entries)

	versions := depset.VersionTuple{"node": "18.0.0"}
	if p.Supported(depset.NPM, versions) {
		t.Fatalf("expected mismatched version to be rejected")
	}
}

func TestSupportedFirstMatchWins(t *testing.T) {
	entries := map[depset.Manager][]Entry{
		depset.NPM: {
			{"runtime": "18.0.0"},
			{}, // wildcard entry: any tuple matches
		},
	}
	p := New(entries)

	if !p.Supported(depset.NPM, depset.VersionTuple{"node": "20.1.0"}) {
		t.Fatalf("expected wildcard entry to match after the first entry fails")
	}
}

func TestSupportedEntryRoleAbsentFromRequestFails(t *testing.T) {
	entries := map[depset.Manager][]Entry{
		depset.NPM: {
			{"runtime": "20.1.0"},
		},
	}
	p := New(entries)

	if p.Supported(depset.NPM, depset.VersionTuple{}) {
		t.Fatalf("expected a request missing a required role to be rejected")
	}
}

func TestNormalizeNPMAliases(t *testing.T) {
	got := Normalize(depset.NPM, depset.VersionTuple{"node": "20.1.0", "npm": "10.0.0"})
	want := depset.VersionTuple{"runtime": "20.1.0", "package_manager": "10.0.0"}

	if len(got) != len(want) {
		t.Fatalf("Normalize returned %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Normalize()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestNormalizeComposerAliases(t *testing.T) {
	got := Normalize(depset.Composer, depset.VersionTuple{"php": "8.2.0"})
	if got["runtime"] != "8.2.0" {
		t.Fatalf("Normalize did not alias php to runtime: %v", got)
	}
}

func TestNormalizeUnknownManagerPassesThrough(t *testing.T) {
	versions := depset.VersionTuple{"python": "3.12"}
	got := Normalize(depset.Manager("pip"), versions)

	if got["python"] != "3.12" {
		t.Fatalf("Normalize altered roles for an unaliased manager: %v", got)
	}
}

func TestNormalizeCanonicalRoleWinsOverCollidingAlias(t *testing.T) {
	versions := depset.VersionTuple{"node": "18.0.0", "runtime": "20.1.0"}

	for i := 0; i < 20; i++ {
		got := Normalize(depset.NPM, versions)
		if got["runtime"] != "20.1.0" {
			t.Fatalf("Normalize()[\"runtime\"] = %q, want the explicit canonical value 20.1.0 on every call", got["runtime"])
		}
	}
}
