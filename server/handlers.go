package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"

	digest "github.com/opencontainers/go-digest"
	"github.com/gorilla/mux"

	"github.com/SiestaCat/dep-cache-proxy-server/api/errcode"
	"github.com/SiestaCat/dep-cache-proxy-server/depset"
	"github.com/SiestaCat/dep-cache-proxy-server/internal/dcontext"
	"github.com/SiestaCat/dep-cache-proxy-server/orchestrator"
)

// maxManifestSize bounds the multipart form the /v1/resolve handler will
// buffer in memory before spilling to temp files.
const maxManifestSize = 32 << 20 // 32 MiB

type api struct {
	ctx          context.Context
	orchestrator *orchestrator.Orchestrator
	algorithm    digest.Algorithm
}

type resolveResponse struct {
	BundleID    string `json:"bundle_id"`
	CacheHit    bool   `json:"cache_hit"`
	DownloadURL string `json:"download_url"`
}

// resolve accepts a multipart form carrying the manager tag, version
// tuple, manifest and (optional) lockfile, and any custom installer
// arguments, and returns the resolved bundle's id and download URL.
func (h *api) resolve(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxManifestSize); err != nil {
		errcode.ServeJSON(w, errcode.ErrorCodeBadRequest.WithDetail(err.Error()))
		return
	}

	manager := depset.Manager(r.FormValue("manager"))
	if manager == "" {
		errcode.ServeJSON(w, errcode.ErrorCodeBadRequest.WithDetail("manager is required"))
		return
	}

	var versions depset.VersionTuple
	if raw := r.FormValue("versions"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &versions); err != nil {
			errcode.ServeJSON(w, errcode.ErrorCodeBadRequest.WithDetail("versions must be a JSON object: "+err.Error()))
			return
		}
	}

	var customArgs []string
	if raw := r.FormValue("custom_args"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &customArgs); err != nil {
			errcode.ServeJSON(w, errcode.ErrorCodeBadRequest.WithDetail("custom_args must be a JSON array: "+err.Error()))
			return
		}
	}

	manifestName, lockfileName, err := h.orchestrator.ManifestNames(manager, versions, customArgs)
	if err != nil {
		errcode.ServeJSON(w, errcode.ErrorCodeBadRequest.WithDetail(err.Error()))
		return
	}

	manifest, err := readFormFile(r, "manifest")
	if err != nil {
		errcode.ServeJSON(w, errcode.ErrorCodeBadRequest.WithDetail("manifest: "+err.Error()))
		return
	}

	var files []depset.File
	files = append(files, depset.File{Path: manifestName, Content: manifest})

	if lockfile, err := readFormFile(r, "lockfile"); err == nil && lockfileName != "" {
		files = append(files, depset.File{Path: lockfileName, Content: lockfile})
	}

	set := depset.Set{Manager: manager, Versions: versions, Files: files}

	result, err := h.orchestrator.Resolve(r.Context(), set, customArgs)
	if err != nil {
		errcode.ServeJSON(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resolveResponse{
		BundleID:    result.BundleID.Encoded(),
		CacheHit:    result.CacheHit,
		DownloadURL: "/download/" + result.BundleID.Encoded() + ".zip",
	})
}

// download streams a previously resolved bundle's archive.
func (h *api) download(w http.ResponseWriter, r *http.Request) {
	bundleID, err := digest.Parse(string(h.algorithm) + ":" + mux.Vars(r)["bundleID"])
	if err != nil {
		errcode.ServeJSON(w, errcode.ErrorCodeBadRequest.WithDetail(err.Error()))
		return
	}

	path, exists := h.orchestrator.Archive(bundleID)
	if !exists {
		errcode.ServeJSON(w, errcode.ErrorCodeNotFound.WithDetail(nil))
		return
	}

	f, err := os.Open(path)
	if err != nil {
		errcode.ServeJSON(w, errcode.ErrorCodeStorageFault.WithDetail(err.Error()))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/zip")
	if _, err := io.Copy(w, f); err != nil {
		dcontext.GetLogger(h.ctx).WithError(err).Errorf("server: download: failed streaming archive %s", path)
	}
}

func (h *api) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readFormFile(r *http.Request, field string) (content []byte, err error) {
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
