package installer

import (
	"testing"

	"github.com/SiestaCat/dep-cache-proxy-server/depset"
)

func TestRegistryResolveUnknownManager(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve(depset.Manager("pip"), nil, nil)
	if err == nil {
		t.Fatalf("expected an error resolving an unregistered manager")
	}
}

func TestRegistryRegisterPanicsOnDuplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic registering a manager twice")
		}
	}()

	r := NewRegistry()
	r.Register(depset.NPM, NPMFactory{})
	r.Register(depset.NPM, NPMFactory{})
}

func TestRegistryRegisterPanicsOnNilFactory(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic registering a nil factory")
		}
	}()

	r := NewRegistry()
	r.Register(depset.NPM, nil)
}

func TestNPMFactoryManifestNames(t *testing.T) {
	inst, err := (NPMFactory{}).Create(nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inst.ManifestName() != "package.json" {
		t.Errorf("ManifestName() = %q", inst.ManifestName())
	}
	if inst.LockfileName() != "package-lock.json" {
		t.Errorf("LockfileName() = %q", inst.LockfileName())
	}
}

func TestYarnFactoryManifestNames(t *testing.T) {
	inst, err := (YarnFactory{}).Create(nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inst.ManifestName() != "package.json" {
		t.Errorf("ManifestName() = %q", inst.ManifestName())
	}
	if inst.LockfileName() != "yarn.lock" {
		t.Errorf("LockfileName() = %q", inst.LockfileName())
	}
}

func TestComposerFactoryManifestNames(t *testing.T) {
	inst, err := (ComposerFactory{}).Create(nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inst.ManifestName() != "composer.json" {
		t.Errorf("ManifestName() = %q", inst.ManifestName())
	}
	if inst.LockfileName() != "composer.lock" {
		t.Errorf("LockfileName() = %q", inst.LockfileName())
	}
}
