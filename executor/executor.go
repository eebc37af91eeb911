// Package executor implements the Install Executor (spec §4.7): it
// stages a manifest and lockfile into a scratch directory, dispatches to
// a native or isolated installer depending on the Version Policy, and
// guarantees the scratch directory is removed on every exit path.
package executor

import (
	"context"
	"os"
	"path/filepath"

	"github.com/SiestaCat/dep-cache-proxy-server/depset"
	"github.com/SiestaCat/dep-cache-proxy-server/installer"
	"github.com/SiestaCat/dep-cache-proxy-server/internal/dcontext"
	"github.com/SiestaCat/dep-cache-proxy-server/internal/uuid"
	"github.com/SiestaCat/dep-cache-proxy-server/policy"
)

// Isolator runs an Installer inside an isolated environment (container,
// VM, restricted subprocess) for requests the native Version Policy
// rejects. A nil Isolator means isolation is unavailable; such requests
// fail with ErrUnsupportedVersion instead of falling back.
type Isolator interface {
	Install(ctx context.Context, inst installer.Installer, workDir string) (installer.Result, error)
}

// Executor runs installs end-to-end against a staging root on the local
// filesystem.
type Executor struct {
	stagingRoot string
	policy      *policy.Policy
	isolator    Isolator
	isolationOn bool
}

// Option configures an Executor at construction time.
type Option func(*Executor)

// WithIsolation enables dispatch to isolator for requests the Version
// Policy rejects. Without this option, unsupported versions always fail
// fast regardless of whether an Isolator would have been available.
func WithIsolation(isolator Isolator) Option {
	return func(e *Executor) {
		e.isolator = isolator
		e.isolationOn = true
	}
}

// New returns an Executor staging installs under stagingRoot.
func New(stagingRoot string, pol *policy.Policy, opts ...Option) (*Executor, error) {
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return nil, &Error{Op: "new", Err: err}
	}
	e := &Executor{stagingRoot: stagingRoot, policy: pol}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Request is the fully resolved input to a single install run. Installer
// is resolved once by the caller (the orchestrator already resolves it
// to learn ManifestName/LockfileName); Run never re-resolves it.
type Request struct {
	Manager    depset.Manager
	Versions   depset.VersionTuple
	CustomArgs []string
	Installer  installer.Installer
	Manifest   depset.File
	Lockfile   depset.File // Lockfile.Content is nil/empty when the manager has no lockfile input
}

// Run stages req into a fresh scratch directory, runs the resolved
// Installer (natively or via the configured Isolator, per the Version
// Policy), and removes the scratch directory before returning,
// regardless of outcome.
//
// ctx is detached from the inbound request's cancellation before the
// installer runs (spec §5): a client disconnect must not abort an
// install that is already populating the cache.
func (e *Executor) Run(ctx context.Context, req Request) (installer.Result, error) {
	inst := req.Installer

	native := e.policy.Supported(req.Manager, req.Versions)
	if !native && (!e.isolationOn || e.isolator == nil) {
		return installer.Result{}, ErrUnsupportedVersion
	}

	workDir, err := e.stage(inst, req)
	if err != nil {
		return installer.Result{}, err
	}
	defer e.cleanup(ctx, workDir)

	runCtx := dcontext.DetachedContext(ctx)

	var result installer.Result
	if native {
		result, err = inst.Install(runCtx, workDir)
	} else {
		result, err = e.isolator.Install(runCtx, inst, workDir)
	}
	if err != nil {
		return installer.Result{}, &InstallerError{Err: err}
	}
	return result, nil
}

func (e *Executor) stage(inst installer.Installer, req Request) (string, error) {
	workDir := filepath.Join(e.stagingRoot, uuid.NewString())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", &Error{Op: "stage", Err: err}
	}

	manifestPath := filepath.Join(workDir, inst.ManifestName())
	if err := os.WriteFile(manifestPath, req.Manifest.Content, 0o644); err != nil {
		os.RemoveAll(workDir)
		return "", &Error{Op: "stage", Err: err}
	}

	if lockName := inst.LockfileName(); lockName != "" && len(req.Lockfile.Content) > 0 {
		lockPath := filepath.Join(workDir, lockName)
		if err := os.WriteFile(lockPath, req.Lockfile.Content, 0o644); err != nil {
			os.RemoveAll(workDir)
			return "", &Error{Op: "stage", Err: err}
		}
	}

	return workDir, nil
}

func (e *Executor) cleanup(ctx context.Context, workDir string) {
	if err := os.RemoveAll(workDir); err != nil {
		dcontext.GetLogger(ctx).WithError(err).Warnf("executor: failed to remove scratch directory %s", workDir)
	}
}

// ErrUnsupportedVersion is returned when the Version Policy rejects a
// request's version tuple and no Isolator is configured to fall back to.
var ErrUnsupportedVersion = &unsupportedVersionError{}

type unsupportedVersionError struct{}

func (*unsupportedVersionError) Error() string { return "executor: unsupported version" }

// Error records a failure creating the staging root or staging an install
// run's scratch directory: a local filesystem fault, not an installer or
// environment failure. A failure removing the scratch directory is
// logged, not returned.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "executor: " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// InstallerError wraps a failure from the Installer itself: it started
// but could not run to completion (e.g. its binary is missing from
// PATH, or its output tree could not be read back). It is distinct from
// Result.Success=false, which means the installer ran and reported a
// normal failure, and from Error, which means the scratch directory
// itself could not be staged.
type InstallerError struct {
	Err error
}

func (e *InstallerError) Error() string { return "executor: installer: " + e.Err.Error() }
func (e *InstallerError) Unwrap() error { return e.Err }
