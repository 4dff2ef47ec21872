// Package metrics registers the service's Prometheus collectors.
//
// Instrumented areas:
//   - Connection counts, supersessions and active rooms
//   - Publish throughput and delivery/drop rates
//   - HTTP request counts and latencies
//   - History archive insert and error counts
package metrics
