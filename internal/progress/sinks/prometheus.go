package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/crawlcoord/internal/progress"
)

// PrometheusSink exports crawl diagnostics via Prometheus. It owns all
// collectors for crawl outcomes, per-operation results and dedup drops.
type PrometheusSink struct {
	crawlsStarted   *prometheus.CounterVec
	crawlsCompleted *prometheus.CounterVec
	crawlRuntime    *prometheus.HistogramVec

	operations        *prometheus.CounterVec
	operationItems    *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	warnings          *prometheus.CounterVec
	duplicates        *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		crawlsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawlcoord_crawls_started_total",
			Help: "Crawls that have started, partitioned by source.",
		}, []string{"source"}),
		crawlsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawlcoord_crawls_completed_total",
			Help: "Crawls completed partitioned by source and result.",
		}, []string{"source", "result"}),
		crawlRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawlcoord_crawl_runtime_seconds",
			Help:    "Wall time per completed crawl.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"source", "result"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawlcoord_operations_total",
			Help: "Page, group and batch operations partitioned by phase and error kind.",
		}, []string{"phase", "kind"}),
		operationItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawlcoord_operation_items_total",
			Help: "Items contributed by successful operations per phase.",
		}, []string{"phase"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawlcoord_operation_duration_seconds",
			Help:    "Operation latency partitioned by phase.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"phase"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawlcoord_warnings_total",
			Help: "Data-loss, inconclusive, bound and missing-item warnings.",
		}, []string{"stage"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawlcoord_duplicate_claims_total",
			Help: "Entities dropped because their canonical id was already claimed.",
		}, []string{"phase"}),
	}
	for _, collector := range []prometheus.Collector{
		s.crawlsStarted,
		s.crawlsCompleted,
		s.crawlRuntime,
		s.operations,
		s.operationItems,
		s.operationDuration,
		s.warnings,
		s.duplicates,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageCrawlStart:
		s.crawlsStarted.WithLabelValues(evt.Source).Inc()
	case progress.StageCrawlDone:
		s.completeCrawl(evt, "success")
	case progress.StageCrawlError:
		s.completeCrawl(evt, "error")
	case progress.StageOpDone:
		phase := string(evt.Phase)
		s.operations.WithLabelValues(phase, "none").Inc()
		if evt.Items > 0 {
			s.operationItems.WithLabelValues(phase).Add(float64(evt.Items))
		}
		if evt.Dur > 0 {
			s.operationDuration.WithLabelValues(phase).Observe(evt.Dur.Seconds())
		}
	case progress.StageOpError:
		s.operations.WithLabelValues(string(evt.Phase), string(evt.Kind)).Inc()
		if evt.Dur > 0 {
			s.operationDuration.WithLabelValues(string(evt.Phase)).Observe(evt.Dur.Seconds())
		}
	case progress.StageDuplicate:
		s.duplicates.WithLabelValues(string(evt.Phase)).Inc()
	case progress.StageDataLoss, progress.StageInconclusive, progress.StageBoundReached, progress.StageMissing:
		s.warnings.WithLabelValues(string(evt.Stage)).Inc()
	}
}

func (s *PrometheusSink) completeCrawl(evt progress.Event, result string) {
	s.crawlsCompleted.WithLabelValues(evt.Source, result).Inc()
	if evt.Dur > 0 {
		s.crawlRuntime.WithLabelValues(evt.Source, result).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
