package installer

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/SiestaCat/dep-cache-proxy-server/depset"
)

// nodeInstaller runs npm or yarn against a staged package.json and
// lockfile. The two managers differ only in binary name, lockfile
// filename and install arguments, so one type serves both Factories.
type nodeInstaller struct {
	binary       string
	lockfileName string
	args         []string
}

// NPMFactory constructs Installers that run npm ci against staged
// manifests. Custom args are appended verbatim after the base "ci"
// invocation.
type NPMFactory struct{}

func (NPMFactory) Create(_ depset.VersionTuple, customArgs []string) (Installer, error) {
	return &nodeInstaller{
		binary:       "npm",
		lockfileName: "package-lock.json",
		args:         append([]string{"ci"}, customArgs...),
	}, nil
}

// YarnFactory constructs Installers that run yarn install --frozen-lockfile
// against staged manifests.
type YarnFactory struct{}

func (YarnFactory) Create(_ depset.VersionTuple, customArgs []string) (Installer, error) {
	return &nodeInstaller{
		binary:       "yarn",
		lockfileName: "yarn.lock",
		args:         append([]string{"install", "--frozen-lockfile"}, customArgs...),
	}, nil
}

func (n *nodeInstaller) ManifestName() string { return "package.json" }
func (n *nodeInstaller) LockfileName() string { return n.lockfileName }

func (n *nodeInstaller) Install(ctx context.Context, workDir string) (Result, error) {
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, n.binary, n.args...)
	cmd.Dir = workDir
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return Result{Success: false, Message: stderr.String()}, nil
		}
		return Result{}, err
	}

	files, err := collectOutput(workDir, "node_modules")
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, Files: files}, nil
}

// collectOutput walks relDir under workDir and returns every regular
// file found, keyed by its path relative to workDir.
func collectOutput(workDir, relDir string) ([]depset.File, error) {
	root := filepath.Join(workDir, relDir)

	var files []depset.File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if filepath.Clean(path) == filepath.Clean(root) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(workDir, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, depset.File{Path: filepath.ToSlash(rel), Content: content})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
