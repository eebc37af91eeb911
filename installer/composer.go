package installer

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/SiestaCat/dep-cache-proxy-server/depset"
)

// ComposerFactory constructs Installers that run composer install
// against staged manifests.
type ComposerFactory struct{}

func (ComposerFactory) Create(_ depset.VersionTuple, customArgs []string) (Installer, error) {
	return &composerInstaller{
		args: append([]string{"install", "--no-interaction", "--no-progress"}, customArgs...),
	}, nil
}

type composerInstaller struct {
	args []string
}

func (c *composerInstaller) ManifestName() string { return "composer.json" }
func (c *composerInstaller) LockfileName() string { return "composer.lock" }

func (c *composerInstaller) Install(ctx context.Context, workDir string) (Result, error) {
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, "composer", c.args...)
	cmd.Dir = workDir
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return Result{Success: false, Message: stderr.String()}, nil
		}
		return Result{}, err
	}

	files, err := collectOutput(workDir, "vendor")
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, Files: files}, nil
}
