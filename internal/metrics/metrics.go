package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchesTotal counts trigger events handed to the dispatcher.
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaycrm_automation_dispatches_total",
			Help: "Total number of trigger events dispatched, by trigger type and source",
		},
		[]string{"trigger_type", "source"},
	)

	// RuleExecutionsTotal counts rule evaluations that reached a terminal status.
	RuleExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaycrm_automation_rule_executions_total",
			Help: "Total number of rule executions, by action type and outcome",
		},
		[]string{"action_type", "status"},
	)

	// InboundRequestsTotal counts inbound webhook requests by gateway outcome.
	InboundRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaycrm_webhook_inbound_requests_total",
			Help: "Total number of inbound webhook requests, by outcome",
		},
		[]string{"outcome"},
	)

	// DeliveryDuration observes outbound webhook delivery latency.
	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relaycrm_webhook_delivery_duration_seconds",
			Help:    "Outbound webhook delivery duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// SweepRunsTotal counts periodic sweep iterations.
	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaycrm_sweeper_runs_total",
			Help: "Total number of sweep iterations, by kind",
		},
		[]string{"kind"},
	)
)
