// Package orchestrator implements the Request Orchestrator (spec §4.8):
// the state machine that ties the Hasher, Blob Store, Index Store,
// Bundle Archiver and Install Executor together into a single
// idempotent "resolve this dependency set" operation.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/go-humanize"
	digest "github.com/opencontainers/go-digest"

	"github.com/SiestaCat/dep-cache-proxy-server/api/errcode"
	"github.com/SiestaCat/dep-cache-proxy-server/archiver"
	"github.com/SiestaCat/dep-cache-proxy-server/blobstore"
	"github.com/SiestaCat/dep-cache-proxy-server/depset"
	"github.com/SiestaCat/dep-cache-proxy-server/executor"
	"github.com/SiestaCat/dep-cache-proxy-server/fingerprint"
	"github.com/SiestaCat/dep-cache-proxy-server/index"
	"github.com/SiestaCat/dep-cache-proxy-server/installer"
	"github.com/SiestaCat/dep-cache-proxy-server/internal/dcontext"
	"github.com/SiestaCat/dep-cache-proxy-server/metrics"
)

// Result is the orchestrator's outcome for a fully resolved request: the
// bundle id and the on-disk path of its archive, ready to be streamed to
// a client.
type Result struct {
	BundleID    digest.Digest
	ArchivePath string
	CacheHit    bool
}

// Orchestrator resolves dependency sets to cached bundles, running an
// install only when no complete cached bundle already exists.
type Orchestrator struct {
	hasher   *fingerprint.Hasher
	blobs    *blobstore.Store
	indexes  *index.Store
	archives *archiver.Archiver
	registry *installer.Registry
	exec     *executor.Executor
}

// New assembles an Orchestrator from its component dependencies. All
// arguments are required; the Orchestrator owns no lifecycle of its own
// beyond wiring calls between them.
func New(
	hasher *fingerprint.Hasher,
	blobs *blobstore.Store,
	indexes *index.Store,
	archives *archiver.Archiver,
	registry *installer.Registry,
	exec *executor.Executor,
) *Orchestrator {
	return &Orchestrator{
		hasher:   hasher,
		blobs:    blobs,
		indexes:  indexes,
		archives: archives,
		registry: registry,
		exec:     exec,
	}
}

// Resolve runs the full request lifecycle for set: fingerprint, probe
// the cache, and on a miss run the install and populate the cache in
// blob -> index -> archive order before returning.
//
// The bundle id is computed exactly once, from set, and is never
// recomputed from anything the installer produces. Concurrent identical
// requests are not coordinated: each one that misses the probe runs its
// own install, blob writes are idempotent, and Build leaves an archive
// that already exists in place.
func (o *Orchestrator) Resolve(ctx context.Context, set depset.Set, customArgs []string) (Result, error) {
	bundleID := o.hasher.Fingerprint(set)

	if hit, path := o.probe(bundleID); hit {
		metrics.RecordCacheHit()
		return Result{BundleID: bundleID, ArchivePath: path, CacheHit: true}, nil
	}
	metrics.RecordCacheMiss()

	inst, err := o.registry.Resolve(set.Manager, set.Versions, customArgs)
	if err != nil {
		return Result{}, errcode.ErrorCodeBadRequest.WithDetail(err.Error())
	}

	manifest, ok := findFile(set.Files, inst.ManifestName())
	if !ok {
		return Result{}, errcode.ErrorCodeBadRequest.WithDetail("manifest not staged under " + inst.ManifestName())
	}
	lockfile, _ := findFile(set.Files, inst.LockfileName())

	req := executor.Request{
		Manager:    set.Manager,
		Versions:   set.Versions,
		CustomArgs: customArgs,
		Installer:  inst,
		Manifest:   manifest,
		Lockfile:   lockfile,
	}

	installStart := time.Now()
	installResult, err := o.exec.Run(ctx, req)
	metrics.ObserveInstall(string(set.Manager), installStart)
	if err != nil {
		switch {
		case err == executor.ErrUnsupportedVersion:
			return Result{}, errcode.ErrorCodeUnsupportedVersion.WithDetail(nil)
		case isInstallerError(err):
			return Result{}, errcode.ErrorCodeInstallerFault.WithDetail(err.Error())
		default:
			return Result{}, errcode.ErrorCodeStorageFault.WithDetail(err.Error())
		}
	}
	if !installResult.Success {
		return Result{}, errcode.ErrorCodeInstallFailure.WithDetail(installResult.Message)
	}

	idx, err := o.populate(ctx, bundleID, set, installResult)
	if err != nil {
		return Result{}, err
	}

	path, err := o.archives.Build(ctx, idx)
	if err != nil {
		return Result{}, errcode.ErrorCodeStorageFault.WithDetail(err.Error())
	}

	var totalBytes uint64
	for _, f := range installResult.Files {
		totalBytes += uint64(len(f.Content))
	}
	dcontext.GetLogger(ctx).Infof("orchestrator: populated bundle %s (%d files, %s)", bundleID, len(idx.Files), humanize.Bytes(totalBytes))

	return Result{BundleID: bundleID, ArchivePath: path, CacheHit: false}, nil
}

// Archive returns the on-disk path of bundleID's archive, for serving a
// download of a bundle resolved in a prior request.
func (o *Orchestrator) Archive(bundleID digest.Digest) (path string, exists bool) {
	return o.archives.Path(bundleID)
}

// ManifestNames resolves manager's installer and reports the conventional
// filenames it expects its manifest and (if any) lockfile staged as.
// Callers that assemble a depset.Set from an inbound request (the HTTP
// surface) must use these names as File.Path rather than any
// caller-supplied filename, since §4.1 fingerprints by logical path and
// §4.7 stages by these same conventional names.
func (o *Orchestrator) ManifestNames(manager depset.Manager, versions depset.VersionTuple, customArgs []string) (manifestName, lockfileName string, err error) {
	inst, err := o.registry.Resolve(manager, versions, customArgs)
	if err != nil {
		return "", "", err
	}
	return inst.ManifestName(), inst.LockfileName(), nil
}

// probe reports whether bundleID is already fully cached. An index
// without a materialized archive (e.g. the process died between Save
// and Build) is treated as a miss, not a hit: the request re-runs rather
// than serving a nonexistent archive.
func (o *Orchestrator) probe(bundleID digest.Digest) (hit bool, archivePath string) {
	hasIndex, err := o.indexes.Exists(bundleID)
	if err != nil || !hasIndex {
		return false, ""
	}

	path, exists := o.archives.Path(bundleID)
	if !exists {
		return false, ""
	}

	return true, path
}

// populate writes every installer output file to the Blob Store, then
// saves the resulting Index. Blobs are always written before the index
// that references them, so an index is never observable while any of
// its referenced blobs are missing.
func (o *Orchestrator) populate(ctx context.Context, bundleID digest.Digest, set depset.Set, result installer.Result) (index.Index, error) {
	files := make(map[string]digest.Digest, len(result.Files))
	for _, f := range result.Files {
		dgst, err := o.blobs.Put(ctx, f.Content)
		if err != nil {
			return index.Index{}, errcode.ErrorCodeStorageFault.WithDetail(err.Error())
		}
		files[f.Path] = dgst
	}

	idx := index.Index{
		BundleID:       bundleID,
		Manager:        set.Manager,
		ManagerVersion: index.ManagerVersionDescriptor(set.Manager, set.Versions),
		Files:          files,
	}

	if err := o.indexes.Save(idx); err != nil {
		return index.Index{}, errcode.ErrorCodeStorageFault.WithDetail(err.Error())
	}

	return idx, nil
}

// findFile looks up name among files by exact logical path. An empty
// name (a manager with no lockfile concept) always reports a miss
// without searching, since "" is never a meaningful file identity.
func findFile(files []depset.File, name string) (depset.File, bool) {
	if name == "" {
		return depset.File{}, false
	}
	for _, f := range files {
		if f.Path == name {
			return f, true
		}
	}
	return depset.File{}, false
}

// isInstallerError reports whether err originated from the Installer
// itself failing to run (not a staging I/O fault).
func isInstallerError(err error) bool {
	var instErr *executor.InstallerError
	return errors.As(err, &instErr)
}
