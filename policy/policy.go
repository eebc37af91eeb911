// Package policy implements the Version Policy (spec §4.6): whether a
// requested version tuple is supported for native installation, judged
// against a configured allow-list after role-alias normalization.
package policy

import (
	"sort"

	"github.com/SiestaCat/dep-cache-proxy-server/depset"
)

// Entry is one allow-listed version tuple. Roles present in an Entry
// must match the request's corresponding (normalized) role exactly;
// roles absent from an Entry are wildcards.
type Entry map[string]string

// Policy decides whether a manager's version tuple is supported, per a
// configured list of Entries. An empty or absent list means "always
// supported", matching the spec's default-permissive stance.
type Policy struct {
	entries map[depset.Manager][]Entry
}

// New returns a Policy configured with entries per manager. A nil or
// empty entries map means every manager and tuple is supported.
func New(entries map[depset.Manager][]Entry) *Policy {
	return &Policy{entries: entries}
}

// Supported reports whether versions is supported for manager. Matching
// is first-match-wins against the manager's configured Entry list, after
// normalizing versions' role names via Normalize.
func (p *Policy) Supported(manager depset.Manager, versions depset.VersionTuple) bool {
	list := p.entries[manager]
	if len(list) == 0 {
		return true
	}

	normalized := Normalize(manager, versions)
	for _, entry := range list {
		if matches(entry, normalized) {
			return true
		}
	}
	return false
}

func matches(entry Entry, normalized depset.VersionTuple) bool {
	for role, want := range entry {
		got, ok := normalized[role]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// aliases maps each manager's role synonyms to the canonical role name
// used by policy matching. This normalization applies only here: bundle
// fingerprinting (package fingerprint) always uses the request's raw
// role names, never these aliases, so policy configuration can evolve
// without changing bundle identity.
var aliases = map[depset.Manager]map[string]string{
	depset.NPM: {
		"node": "runtime",
		"npm":  "package_manager",
	},
	depset.Yarn: {
		"node": "runtime",
		"yarn": "package_manager",
	},
	depset.Composer: {
		"php": "runtime",
	},
}

// Normalize returns a copy of versions with manager-specific role
// synonyms rewritten to their canonical names. Managers with no
// registered aliases (or roles with no alias) pass through unchanged.
//
// A role already spelled as its own canonical name always wins over an
// alias that targets the same name (a request carrying both "node" and
// "runtime" keeps the "runtime" value), and among colliding aliases the
// one sorted first by role name wins. Either way the result depends only
// on versions' contents, never on Go's randomized map iteration order.
func Normalize(manager depset.Manager, versions depset.VersionTuple) depset.VersionTuple {
	table := aliases[manager]

	out := make(depset.VersionTuple, len(versions))
	if table == nil {
		for role, value := range versions {
			out[role] = value
		}
		return out
	}

	var aliasRoles []string
	for role, value := range versions {
		if _, isAlias := table[role]; isAlias {
			aliasRoles = append(aliasRoles, role)
			continue
		}
		out[role] = value
	}

	sort.Strings(aliasRoles)
	for _, role := range aliasRoles {
		canonical := table[role]
		if _, already := out[canonical]; !already {
			out[canonical] = versions[role]
		}
	}
	return out
}
