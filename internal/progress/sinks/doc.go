// Package sinks implements concrete progress consumers: structured logging via
// zap and Prometheus collectors. Each sink satisfies progress.Sink and is safe
// for repeated Consume/Close cycles.
package sinks
