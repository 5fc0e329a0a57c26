package models

import "time"

// GatewayMetricsSnapshot summarises gateway instrumentation for the console status panel.
type GatewayMetricsSnapshot struct {
	RequestsTotal             uint64    `json:"requests_total"`
	AverageRequestDurationMs  float64   `json:"average_request_duration_ms"`
	UpstreamCallsTotal        uint64    `json:"upstream_calls_total"`
	UpstreamFailuresTotal     uint64    `json:"upstream_failures_total"`
	AverageUpstreamDurationMs float64   `json:"average_upstream_duration_ms"`
	CacheHitRatio             float64   `json:"cache_hit_ratio"`
	CacheHits                 uint64    `json:"cache_hits"`
	CacheMisses               uint64    `json:"cache_misses"`
	ActiveWorkflows           int64     `json:"active_workflows"`
	Goroutines                int       `json:"goroutines"`
	GeneratedAt               time.Time `json:"generated_at"`
}
