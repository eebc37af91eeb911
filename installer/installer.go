// Package installer implements the Installer Registry (spec §4.5): a
// name-keyed registry of package-manager capabilities, modeled on the
// teacher's storage driver factory.
package installer

import (
	"context"
	"fmt"

	"github.com/SiestaCat/dep-cache-proxy-server/depset"
)

// Result is the outcome of running an Installer against a staged work
// directory.
type Result struct {
	// Success is false when the package manager ran but reported a
	// failure (missing package, unresolved constraint, network fetch
	// error inside the sandbox, etc). Success=false is a normal outcome,
	// not a Go error: it is distinct from the Installer itself failing to
	// start.
	Success bool

	// Message carries the installer's own diagnostic output when
	// Success is false. It is surfaced to callers as the InstallFailure
	// error's Detail.
	Message string

	// Files is the full set of output files discovered under work_dir's
	// dependency output tree after the manager finishes, keyed by
	// logical path relative to work_dir (so each path starts with the
	// output directory's name, e.g. "node_modules/").
	Files []depset.File
}

// Installer is the capability contract a package manager integration
// must satisfy (spec §4.5).
type Installer interface {
	// ManifestName is the filename an installer expects its manifest
	// input staged as (e.g. "package.json").
	ManifestName() string

	// LockfileName is the filename an installer expects its lockfile
	// input staged as, if any (e.g. "package-lock.json"). Empty if the
	// manager has no separate lockfile concept.
	LockfileName() string

	// Install runs the package manager against workDir, which already
	// contains the manifest (and lockfile, if any) staged under the
	// names ManifestName/LockfileName report.
	Install(ctx context.Context, workDir string) (Result, error)
}

// Factory creates an Installer given the requested version tuple and any
// custom arguments the request carried. Parameters beyond the manager
// name itself vary by package manager and may be ignored.
type Factory interface {
	Create(versions depset.VersionTuple, customArgs []string) (Installer, error)
}

// Registry resolves a manager tag to a Factory. A Registry has no
// default entries; callers register the managers they support at
// startup (see cmd/cacheproxyd).
type Registry struct {
	factories map[depset.Manager]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[depset.Manager]Factory)}
}

// Register makes a Factory available under manager. Register panics if
// manager is already registered or factory is nil, matching the
// fail-fast startup-time discipline the teacher's storage driver
// registry uses.
func (r *Registry) Register(manager depset.Manager, factory Factory) {
	if factory == nil {
		panic("installer: nil Factory for manager " + string(manager))
	}
	if _, exists := r.factories[manager]; exists {
		panic("installer: factory already registered for manager " + string(manager))
	}
	r.factories[manager] = factory
}

// Resolve returns an Installer for manager given the request's version
// tuple and custom arguments. ErrUnknownManager is returned if no
// Factory is registered for manager.
func (r *Registry) Resolve(manager depset.Manager, versions depset.VersionTuple, customArgs []string) (Installer, error) {
	factory, ok := r.factories[manager]
	if !ok {
		return nil, &UnknownManagerError{Manager: manager}
	}
	return factory.Create(versions, customArgs)
}

// UnknownManagerError is returned when no Installer Factory has been
// registered for a requested manager tag.
type UnknownManagerError struct {
	Manager depset.Manager
}

func (e *UnknownManagerError) Error() string {
	return fmt.Sprintf("installer: no factory registered for manager %q", e.Manager)
}
