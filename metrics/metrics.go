// Package metrics declares the cache proxy's Prometheus metric
// namespaces, modeled on the teacher's docker/go-metrics wiring.
package metrics

import (
	"net/http"

	gometrics "github.com/docker/go-metrics"
)

// NamespacePrefix is the namespace prefix for every metric this process
// exports.
const NamespacePrefix = "cacheproxy"

// OrchestratorNamespace covers request-resolution metrics: cache
// hit/miss counts and install duration.
var OrchestratorNamespace = gometrics.NewNamespace(NamespacePrefix, "orchestrator", nil)

// StorageNamespace covers blob/index/archive write metrics, including
// blob deduplication.
var StorageNamespace = gometrics.NewNamespace(NamespacePrefix, "storage", nil)

func init() {
	gometrics.Register(OrchestratorNamespace)
	gometrics.Register(StorageNamespace)
}

// Handler returns the HTTP handler serving the registered namespaces in
// Prometheus exposition format.
func Handler() http.Handler {
	return gometrics.Handler()
}
