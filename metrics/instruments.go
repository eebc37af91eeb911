package metrics

import "time"

var (
	// requestsTotal counts resolve requests by outcome: "hit" or "miss".
	requestsTotal = OrchestratorNamespace.NewLabeledCounter("requests_total", "number of resolve requests by cache outcome", "outcome")

	// installDuration times install runs by manager.
	installDuration = OrchestratorNamespace.NewLabeledTimer("install_duration_seconds", "time spent running a package manager install", "manager")

	// blobsWritten counts blobs actually written to disk, as opposed to
	// deduplicated against an existing blob of the same digest.
	blobsWritten = StorageNamespace.NewCounter("blobs_written_total", "number of blobs written to the blob store")

	// blobsDeduplicated counts Put calls that found a matching blob
	// already present and skipped the write.
	blobsDeduplicated = StorageNamespace.NewCounter("blobs_deduplicated_total", "number of blob writes skipped because the content was already stored")
)

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() { requestsTotal.WithValues("hit").Inc() }

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() { requestsTotal.WithValues("miss").Inc() }

// ObserveInstall records how long an install for manager took, measured
// from start.
func ObserveInstall(manager string, start time.Time) {
	installDuration.WithValues(manager).UpdateSince(start)
}

// RecordBlobWritten increments the blob-written counter.
func RecordBlobWritten() { blobsWritten.Inc() }

// RecordBlobDeduplicated increments the blob-deduplicated counter.
func RecordBlobDeduplicated() { blobsDeduplicated.Inc() }
