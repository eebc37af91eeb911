package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SiestaCat/dep-cache-proxy-server/archiver"
	"github.com/SiestaCat/dep-cache-proxy-server/blobstore"
	"github.com/SiestaCat/dep-cache-proxy-server/depset"
	"github.com/SiestaCat/dep-cache-proxy-server/executor"
	"github.com/SiestaCat/dep-cache-proxy-server/fingerprint"
	"github.com/SiestaCat/dep-cache-proxy-server/index"
	"github.com/SiestaCat/dep-cache-proxy-server/installer"
	"github.com/SiestaCat/dep-cache-proxy-server/orchestrator"
	"github.com/SiestaCat/dep-cache-proxy-server/policy"
)

type fakeInstallerFactory struct{}

func (fakeInstallerFactory) Create(_ depset.VersionTuple, _ []string) (installer.Installer, error) {
	return fakeInstaller{}, nil
}

type fakeInstaller struct{}

func (fakeInstaller) ManifestName() string { return "package.json" }
func (fakeInstaller) LockfileName() string { return "package-lock.json" }

func (fakeInstaller) Install(ctx context.Context, workDir string) (installer.Result, error) {
	return installer.Result{
		Success: true,
		Files:   []depset.File{{Path: "node_modules/foo/index.js", Content: []byte("module.exports = 1;")}},
	}, nil
}

func newTestRouter(t *testing.T) *httptest.Server {
	t.Helper()
	root := t.TempDir()

	hasher := fingerprint.New(fingerprint.DefaultAlgorithm)
	blobs, err := blobstore.New(root, fingerprint.DefaultAlgorithm)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	indexes, err := index.New(root)
	if err != nil {
		t.Fatalf("index.New: %v", err)
	}
	archives, err := archiver.New(root, blobs)
	if err != nil {
		t.Fatalf("archiver.New: %v", err)
	}
	registry := installer.NewRegistry()
	registry.Register(depset.NPM, fakeInstallerFactory{})
	exec, err := executor.New(root+"/staging", policy.New(nil))
	if err != nil {
		t.Fatalf("executor.New: %v", err)
	}
	orch := orchestrator.New(hasher, blobs, indexes, archives, registry, exec)

	router := newRouter(context.Background(), orch, fingerprint.DefaultAlgorithm)
	return httptest.NewServer(router)
}

func multipartResolveBody(t *testing.T) (body *bytes.Buffer, contentType string) {
	t.Helper()
	return multipartResolveBodyNamed(t, "package.json")
}

// multipartResolveBodyNamed builds a resolve request carrying the same
// manifest content, uploaded under uploadFilename. The upload filename is
// a transport detail only: the orchestrator stages and fingerprints the
// manifest under the installer's conventional name, never the client's.
func multipartResolveBodyNamed(t *testing.T, uploadFilename string) (body *bytes.Buffer, contentType string) {
	t.Helper()
	body = &bytes.Buffer{}
	w := multipart.NewWriter(body)

	if err := w.WriteField("manager", "npm"); err != nil {
		t.Fatalf("WriteField(manager): %v", err)
	}
	if err := w.WriteField("versions", `{"node":"20.1.0","npm":"10.0.0"}`); err != nil {
		t.Fatalf("WriteField(versions): %v", err)
	}

	manifest, err := w.CreateFormFile("manifest", uploadFilename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	manifest.Write([]byte(`{"name":"a"}`))

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return body, w.FormDataContentType()
}

func TestResolveEndpoint(t *testing.T) {
	srv := newTestRouter(t)
	defer srv.Close()

	body, contentType := multipartResolveBody(t)
	resp, err := http.Post(srv.URL+"/v1/resolve", contentType, body)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var decoded resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.BundleID == "" {
		t.Fatalf("response carried no bundle id")
	}
	if strings.Contains(decoded.BundleID, ":") {
		t.Fatalf("bundle id %q carries an algorithm prefix, want bare hex", decoded.BundleID)
	}
	if decoded.DownloadURL != "/download/"+decoded.BundleID+".zip" {
		t.Fatalf("DownloadURL = %q, want /download/%s.zip", decoded.DownloadURL, decoded.BundleID)
	}
}

func TestResolveBundleIDIndependentOfUploadFilename(t *testing.T) {
	srv := newTestRouter(t)
	defer srv.Close()

	resolve := func(uploadFilename string) resolveResponse {
		t.Helper()
		body, contentType := multipartResolveBodyNamed(t, uploadFilename)
		resp, err := http.Post(srv.URL+"/v1/resolve", contentType, body)
		if err != nil {
			t.Fatalf("Post: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var decoded resolveResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		return decoded
	}

	first := resolve("package.json")
	second := resolve("manifest.upload")

	if first.BundleID != second.BundleID {
		t.Fatalf("bundle id depends on the client's upload filename: %q != %q", first.BundleID, second.BundleID)
	}
	if !second.CacheHit {
		t.Fatalf("second resolve under a different upload filename should have hit the same cached bundle")
	}
}

func TestResolveThenDownload(t *testing.T) {
	srv := newTestRouter(t)
	defer srv.Close()

	body, contentType := multipartResolveBody(t)
	resp, err := http.Post(srv.URL+"/v1/resolve", contentType, body)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	var decoded resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	resp.Body.Close()

	dl, err := http.Get(srv.URL + decoded.DownloadURL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer dl.Body.Close()

	if dl.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d, want 200", dl.StatusCode)
	}
	if dl.Header.Get("Content-Type") != "application/zip" {
		t.Fatalf("Content-Type = %q, want application/zip", dl.Header.Get("Content-Type"))
	}
}

const zeroDigestHex = "0000000000000000000000000000000000000000000000000000000000000000"

func TestDownloadMissingBundle(t *testing.T) {
	srv := newTestRouter(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/download/" + zeroDigestHex + ".zip")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestResolveMissingManagerIsBadRequest(t *testing.T) {
	srv := newTestRouter(t)
	defer srv.Close()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	w.Close()

	resp, err := http.Post(srv.URL+"/v1/resolve", w.FormDataContentType(), body)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestRouter(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
