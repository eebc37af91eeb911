package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	digest "github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/SiestaCat/dep-cache-proxy-server/archiver"
	"github.com/SiestaCat/dep-cache-proxy-server/blobstore"
	"github.com/SiestaCat/dep-cache-proxy-server/configuration"
	"github.com/SiestaCat/dep-cache-proxy-server/depset"
	"github.com/SiestaCat/dep-cache-proxy-server/executor"
	"github.com/SiestaCat/dep-cache-proxy-server/fingerprint"
	"github.com/SiestaCat/dep-cache-proxy-server/index"
	"github.com/SiestaCat/dep-cache-proxy-server/installer"
	"github.com/SiestaCat/dep-cache-proxy-server/internal/dcontext"
	"github.com/SiestaCat/dep-cache-proxy-server/metrics"
	"github.com/SiestaCat/dep-cache-proxy-server/orchestrator"
	"github.com/SiestaCat/dep-cache-proxy-server/policy"
	"github.com/SiestaCat/dep-cache-proxy-server/server"
	"github.com/SiestaCat/dep-cache-proxy-server/version"
)

// ServeCmd is the cobra command for running the cache proxy's HTTP
// server.
var ServeCmd = &cobra.Command{
	Use:   "serve <config>",
	Short: "`serve` runs the dependency cache proxy's HTTP server",
	Long:  "`serve` runs the dependency cache proxy's HTTP server.",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := resolveConfiguration(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			// nolint:errcheck
			cmd.Usage()
			os.Exit(1)
		}

		ctx, err := configureLogging(dcontext.WithVersion(dcontext.Background(), version.Version), config)
		if err != nil {
			logrus.Fatalln(err)
		}

		orch, algorithm, err := buildOrchestrator(config)
		if err != nil {
			logrus.Fatalln(err)
		}

		if config.Metrics.Enabled {
			go serveMetrics(ctx)
		}

		srv := server.New(ctx, config.HTTP.Addr, orch, algorithm, true)
		dcontext.GetLogger(ctx).Infof("listening on %s", config.HTTP.Addr)
		if err := srv.ListenAndServe(15 * time.Second); err != nil {
			dcontext.GetLogger(ctx).Fatalln(err)
		}
	},
}

func resolveConfiguration(args []string) (*configuration.Configuration, error) {
	var path string
	if len(args) > 0 {
		path = args[0]
	} else if env := os.Getenv("CACHEPROXY_CONFIGURATION_PATH"); env != "" {
		path = env
	}

	if path == "" {
		return nil, fmt.Errorf("configuration path unspecified")
	}

	in, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config configuration.Configuration
	if err := configuration.NewParser("CACHEPROXY").Parse(in, &config); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}

	return &config, nil
}

// configureLogging prepares ctx with a logger configured per config,
// mirroring the teacher's registry entrypoint.
func configureLogging(ctx context.Context, config *configuration.Configuration) (context.Context, error) {
	level, err := logrus.ParseLevel(orDefault(config.Log.Level, "info"))
	if err != nil {
		return ctx, fmt.Errorf("unsupported log level %q: %w", config.Log.Level, err)
	}
	logrus.SetLevel(level)

	switch config.Log.Formatter {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{})
	default:
		return ctx, fmt.Errorf("unsupported logging formatter: %q", config.Log.Formatter)
	}

	if len(config.Log.Fields) > 0 {
		ctx = dcontext.WithValues(ctx, config.Log.Fields)
		fields := make([]interface{}, 0, len(config.Log.Fields))
		for k := range config.Log.Fields {
			fields = append(fields, k)
		}
		ctx = dcontext.WithLogger(ctx, dcontext.GetLogger(ctx, fields...))
	}

	return ctx, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// buildOrchestrator wires every cache engine component from config.
func buildOrchestrator(config *configuration.Configuration) (*orchestrator.Orchestrator, digest.Algorithm, error) {
	algorithm := fingerprint.DefaultAlgorithm
	if config.Hash.Algorithm != "" {
		algorithm = digest.Algorithm(config.Hash.Algorithm)
	}

	root := config.Storage.RootDirectory
	if root == "" {
		return nil, "", fmt.Errorf("storage.rootdirectory must be set")
	}

	hasher := fingerprint.New(algorithm)

	blobs, err := blobstore.New(root, algorithm)
	if err != nil {
		return nil, "", err
	}

	indexes, err := index.New(root)
	if err != nil {
		return nil, "", err
	}

	archives, err := archiver.New(root, blobs)
	if err != nil {
		return nil, "", err
	}

	registry := installer.NewRegistry()
	registry.Register(depset.NPM, installer.NPMFactory{})
	registry.Register(depset.Yarn, installer.YarnFactory{})
	registry.Register(depset.Composer, installer.ComposerFactory{})

	entries := make(map[depset.Manager][]policy.Entry, len(config.Policy))
	for manager, rules := range config.Policy {
		list := make([]policy.Entry, 0, len(rules))
		for _, rule := range rules {
			entry := make(policy.Entry, len(rule))
			for k, v := range rule {
				entry[k] = v
			}
			list = append(list, entry)
		}
		entries[depset.Manager(manager)] = list
	}
	pol := policy.New(entries)

	stagingRoot := root + "/staging"
	var execOpts []executor.Option
	if config.Isolation.Enabled {
		execOpts = append(execOpts, executor.WithIsolation(unavailableIsolator{}))
	}
	exec, err := executor.New(stagingRoot, pol, execOpts...)
	if err != nil {
		return nil, "", err
	}

	return orchestrator.New(hasher, blobs, indexes, archives, registry, exec), algorithm, nil
}

// unavailableIsolator is wired in when isolation is enabled in
// configuration but no concrete sandbox backend has been built yet; it
// fails every request explicitly rather than silently falling back to
// native execution.
type unavailableIsolator struct{}

func (unavailableIsolator) Install(ctx context.Context, inst installer.Installer, workDir string) (installer.Result, error) {
	return installer.Result{}, fmt.Errorf("isolation is enabled but no isolation backend is configured")
}

func serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	dcontext.GetLogger(ctx).Infof("metrics listening on :5001")
	if err := http.ListenAndServe(":5001", mux); err != nil {
		dcontext.GetLogger(ctx).WithError(err).Error("metrics server failed")
	}
}
