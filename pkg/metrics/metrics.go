// Package metrics provides the Prometheus registry shared by the harvester.
// All metrics are defined in their respective packages (client, cache, pagination)
// to maintain modularity and avoid circular dependencies.
//
// A harvest is a batch job with no listening port, so metrics are exported
// through the node_exporter textfile collector rather than scraped.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the harvester.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects everything registered on Registry.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes all harvester metrics to path in the text exposition format.
func WriteTextfile(path string) error {
	return WriteTextfileFrom(path, Gatherer)
}

// WriteTextfileFrom writes the metrics gathered from g to path. The file is
// replaced atomically so a collector never reads a partial snapshot.
func WriteTextfileFrom(path string, g prometheus.Gatherer) error {
	if path == "" {
		return fmt.Errorf("metrics file path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - plos_requests_total{status} (Counter): Attempts by HTTP status code, or by failure class when no response arrived
//   - plos_request_duration_seconds (Histogram): Duration of a single attempt
//   - plos_fetch_failures_total{class} (Counter): Failed attempts by class (dns, timeout, io, http_status, circuit_open, cancelled)
//
// Retry Metrics (pkg/client):
//   - plos_retries_total (Counter): Attempts beyond the first
//   - plos_retry_exhausted_total (Counter): Fetches that used every attempt without success
//
// Cache Metrics (pkg/cache):
//   - plos_cache_hits_total{layer="memory"|"redis"} (Counter): Cache hits by layer
//   - plos_cache_misses_total (Counter): Cache misses
//   - plos_cache_size_bytes{layer="redis"} (Gauge): Bytes written to Redis
//   - plos_cache_errors_total{operation} (Counter): Cache operation errors
//
// Pagination Metrics (pkg/pagination):
//   - plos_pages_fetched_total (Counter): Result pages written to output
//   - plos_documents_written_total (Counter): Documents written to output
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(plos_cache_hits_total) /
//   (sum(plos_cache_hits_total) + plos_cache_misses_total)
//
//   # Attempts per fetched page
//   (plos_retries_total + plos_pages_fetched_total) / plos_pages_fetched_total
//
//   # Timeouts during the last run
//   plos_fetch_failures_total{class="timeout"}
