// Package progress carries the structured diagnostics emitted by the crawl
// engine. Every recovered failure, data-loss warning and duplicate claim is an
// Event with the operation, phase and error kind that produced it. Events are
// delivered through the Emitter interface: the Hub batches them on a
// background goroutine for sinks such as logs and Prometheus, while the
// Recorder keeps them in memory so tests can assert on what was reported.
package progress
