// Package metrics exposes prometheus collectors for the filter engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 필터 판정 수
	FilterDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_filter_decisions_total",
			Help: "Filter decisions by action, deciding rule tier and category",
		},
		[]string{"action", "source", "category"},
	)

	// 필터 판정 지연 (밀리초)
	FilterLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sms_filter_latency_ms",
			Help:    "Time to answer one filter request in milliseconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5ms to ~1s
		},
	)

	// 저장소 오류
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_store_errors_total",
			Help: "Shared store failures by operation",
		},
		[]string{"operation"},
	)

	// 저장소 폴백
	StoreFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_store_fallbacks_total",
			Help: "Operations served by the local fallback store",
		},
		[]string{"operation"},
	)

	HistorySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sms_classification_history_size",
			Help: "Number of records in the classification history after the last append or load",
		},
	)

	SyncMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sms_sync_merged_total",
			Help: "Messages merged from the classification history",
		},
	)

	Reclassified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sms_reclassified_total",
			Help: "Messages processed by reclassification passes",
		},
	)
)

// RecordFilterDecision 판정 결과 기록
func RecordFilterDecision(action, source, category string, duration time.Duration) {
	FilterDecisions.WithLabelValues(action, source, category).Inc()
	FilterLatency.Observe(float64(duration.Microseconds()) / 1000.0)
}

// RecordStoreError 저장소 오류 기록
func RecordStoreError(operation string) {
	StoreErrors.WithLabelValues(operation).Inc()
}

// RecordStoreFallback 폴백 사용 기록
func RecordStoreFallback(operation string) {
	StoreFallbacks.WithLabelValues(operation).Inc()
}

// SetHistorySize 히스토리 크기 기록
func SetHistorySize(n int) {
	HistorySize.Set(float64(n))
}

// AddSyncMerged 동기화 병합 수 기록
func AddSyncMerged(n int) {
	SyncMerged.Add(float64(n))
}

// AddReclassified 재분류 수 기록
func AddReclassified(n int) {
	Reclassified.Add(float64(n))
}
