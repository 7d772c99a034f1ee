// Package main hosts the crawlcoord service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics and the run endpoints. Requests are decoded into
//     app.WindowRequest or app.FanoutRequest and executed synchronously against a configured source.
//   - Engine: internal/crawlwindow pages through a listing in concurrent windows; internal/fanout resolves groups
//     first, then fetches unclaimed candidates in bounded chunks. Both are built on internal/waitable and
//     internal/coordinator.
//   - Sources: internal/source/jsonapi reads JSON listings with gjson paths, throttled per host by
//     internal/policy/ratelimit and fetched through the Colly-based fetcher.
//   - Diagnostics: every page, group and chunk outcome is emitted to the progress Hub, which batches events to a
//     zap log sink and a Prometheus sink.
//
// Operational notes:
//   - Each run is bounded by server.run_timeout; cancelling the request context cancels in-flight fetches.
//   - SIGINT/SIGTERM flips /readyz to 503, drains the HTTP server within server.shutdown_timeout and flushes the
//     progress Hub.
//
// Quick checklist:
//   - Configure env vars: CRAWLCOORD_SERVER_PORT (or PORT), CRAWLCOORD_RATELIMIT_DEFAULT_RPS,
//     CRAWLCOORD_WINDOW_WINDOW_SIZE, CRAWLCOORD_FANOUT_BATCH_SIZE. Sources are only read from the config file.
//   - Run locally: go run ./cmd/crawlcoord -config config.yaml
package main
