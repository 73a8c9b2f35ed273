package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SealsAdmitted counts deposits admitted into the pipeline
	SealsAdmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_seals_admitted_total",
			Help: "Total number of seal deposits admitted into the pipeline",
		},
	)

	// SealsFinished counts workflows by terminal outcome
	SealsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_seals_finished_total",
			Help: "Total number of seal workflows finished, by outcome",
		},
		[]string{"outcome"},
	)

	// StageDuration tracks per-stage processing time
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// EventsDetected counts deposit events seen on the origin ledger
	EventsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_origin_events_total",
			Help: "Total number of origin deposit events, by disposition",
		},
		[]string{"disposition"},
	)

	// QueueDepth tracks items queued or in flight
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_queue_depth",
			Help: "Number of seal workflows queued or in flight",
		},
	)

	// RetriesTotal counts stage retries scheduled by the queue
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_retries_total",
			Help: "Total number of workflow retries scheduled",
		},
	)

	// SigningSessions counts signing-network sessions by phase and result
	SigningSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_signing_sessions_total",
			Help: "Total number of signing-network sessions, by phase and result",
		},
		[]string{"phase", "result"},
	)

	// ErrorsTotal counts errors by component and class
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "class"},
	)

	// OriginCursor tracks the last persisted origin event sequence
	OriginCursor = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_origin_cursor",
			Help: "Last persisted origin event sequence number",
		},
	)
)
