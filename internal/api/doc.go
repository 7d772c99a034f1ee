// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/sources lists the configured sources.
//   - POST /v1/window runs a window crawl of one source listing.
//   - POST /v1/fanout resolves groups and standalone candidates of a source.
package api
