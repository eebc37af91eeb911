// Package configuration defines the cache proxy's configuration schema
// and its YAML-plus-environment-override parser, modeled on the
// teacher's versioned registry configuration, simplified to a single
// schema version since this project has no compatibility history to
// carry forward yet.
package configuration

// Configuration is the top-level schema loaded from a YAML file and
// optionally overridden by environment variables (see Parse).
//
// Field names deliberately avoid underscores: the environment override
// scheme uses "_" as its path separator, so a field named "Foo_Bar"
// would be indistinguishable from nested "Foo.Bar".
type Configuration struct {
	// Log configures the logging subsystem.
	Log Log `yaml:"log"`

	// HTTP configures the cache proxy's HTTP listener.
	HTTP HTTP `yaml:"http"`

	// Storage configures where blobs, indexes and archives are kept.
	Storage Storage `yaml:"storage"`

	// Hash selects the content-addressing algorithm (spec §4.1). Changing
	// it invalidates every previously cached bundle.
	Hash Hash `yaml:"hash,omitempty"`

	// Policy configures, per package manager, which version tuples are
	// supported for native installation (spec §4.6).
	Policy map[string][]map[string]string `yaml:"policy,omitempty"`

	// Isolation configures the fallback execution path for version
	// tuples the Policy rejects.
	Isolation Isolation `yaml:"isolation,omitempty"`

	// Metrics configures the Prometheus metrics endpoint.
	Metrics Metrics `yaml:"metrics,omitempty"`
}

// Log configures leveled logging.
type Log struct {
	// Level is the minimum severity logged: error, warn, info or debug.
	Level string `yaml:"level,omitempty"`

	// Formatter selects the logrus formatter: text or json.
	Formatter string `yaml:"formatter,omitempty"`

	// Fields are static key/value pairs attached to every log entry, e.g.
	// environment or instance identifiers.
	Fields map[string]interface{} `yaml:"fields,omitempty"`
}

// HTTP configures the cache proxy's HTTP interface.
type HTTP struct {
	// Addr is the host:port the server listens on.
	Addr string `yaml:"addr"`

	// Prefix is parsed from configuration but not read by the server
	// package: routes are always registered at the root path.
	Prefix string `yaml:"prefix,omitempty"`
}

// Storage configures the local filesystem root the cache engine uses.
// Distributed or cloud-backed storage is explicitly out of scope (spec
// Non-goals); every component reads and writes under a single root.
type Storage struct {
	// RootDirectory is the filesystem path under which blobs/, indexes/,
	// bundles/ and the install staging area live.
	RootDirectory string `yaml:"rootdirectory"`
}

// Hash configures bundle and blob content-addressing.
type Hash struct {
	// Algorithm names the digest algorithm, e.g. "sha256". Empty selects
	// fingerprint.DefaultAlgorithm.
	Algorithm string `yaml:"algorithm,omitempty"`
}

// Isolation configures the fallback path for version tuples the native
// Version Policy rejects.
type Isolation struct {
	// Enabled turns on isolated execution. When false, an unsupported
	// version always fails fast regardless of isolation availability.
	Enabled bool `yaml:"enabled,omitempty"`

	// Image names a container image for isolated installs. It is parsed
	// from configuration but not read by the isolator cmd/cacheproxyd
	// wires in.
	Image string `yaml:"image,omitempty"`
}

// Metrics configures the Prometheus metrics endpoint.
type Metrics struct {
	// Enabled turns on the /metrics endpoint.
	Enabled bool `yaml:"enabled,omitempty"`
}
