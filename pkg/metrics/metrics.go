package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "faucet"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	RPC    = "rpc"
	Bridge = "bridge"
	HTTP   = "http"
	Events = "events"
)

// Asset label values for the balance gauge.
const (
	AssetNative = "native"
	AssetToken  = "token"
)

// Labels holds constant labels applied to all metrics.
// These distinguish metrics from multiple faucet replicas.
type Labels struct {
	Environment   string // Deployment environment (e.g., "production", "staging")
	Region        string // Cloud region (e.g., "us-east-1")
	CloudProvider string // Cloud provider (e.g., "aws", "gcp")
	Instance      string // Replica name, usually the pod name
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	if l.Region != "" {
		labels["region"] = l.Region
	}
	if l.CloudProvider != "" {
		labels["cloud_provider"] = l.CloudProvider
	}
	if l.Instance != "" {
		labels["instance_name"] = l.Instance
	}
	return labels
}

var latencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

type Metrics struct {
	// Claims
	claims        *prometheus.CounterVec   // by chain, outcome
	claimDuration *prometheus.HistogramVec // by chain
	errors        *prometheus.CounterVec   // by type

	// RPC metrics
	rpcCalls    *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	rpcInFlight prometheus.Gauge

	// Bridge
	bridgeOps      *prometheus.CounterVec   // by operation, status
	bridgeDuration *prometheus.HistogramVec // by operation

	// Faucet wallet balances in whole units
	balance *prometheus.GaugeVec // by chain, asset

	// HTTP surface
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	rateLimited  *prometheus.CounterVec

	// Event publishing
	eventsPublished *prometheus.CounterVec
}

// New creates a new Metrics instance and registers all metrics with the provided registerer.
// For metrics with constant labels, use NewWithLabels instead.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied to all metrics.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}

	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "claims_total",
			Help:      "Total claim attempts by chain and outcome",
		}, []string{"chain", "outcome"}),
		claimDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "claim_duration_seconds",
			Help:      "End-to-end claim duration including the transfer broadcast",
			Buckets:   latencyBuckets,
		}, []string{"chain"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"type"}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "calls_total",
			Help:      "Total RPC calls by chain, method and status",
		}, []string{"chain", "method", "status"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "duration_seconds",
			Help:      "RPC call duration in seconds",
			Buckets:   latencyBuckets,
		}, []string{"chain", "method"}),
		rpcInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "in_flight",
			Help:      "Number of RPC calls currently in progress",
		}),
		bridgeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Bridge,
			Name:      "operations_total",
			Help:      "Total bridge operations by operation and status",
		}, []string{"operation", "status"}),
		bridgeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Bridge,
			Name:      "duration_seconds",
			Help:      "Bridge operation duration, receipt waits included",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 240},
		}, []string{"operation"}),
		balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "wallet_balance",
			Help:      "Faucet wallet balance in whole units by chain and asset",
		}, []string{"chain", "asset"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: HTTP,
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route and status class",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: HTTP,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   latencyBuckets,
		}, []string{"method", "path"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: HTTP,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-IP limiter",
		}, []string{"path"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Events,
			Name:      "published_total",
			Help:      "Domain events published by type and status",
		}, []string{"type", "status"}),
	}

	err := errors.Join(
		reg.Register(m.claims),
		reg.Register(m.claimDuration),
		reg.Register(m.errors),
		reg.Register(m.rpcCalls),
		reg.Register(m.rpcDuration),
		reg.Register(m.rpcInFlight),
		reg.Register(m.bridgeOps),
		reg.Register(m.bridgeDuration),
		reg.Register(m.balance),
		reg.Register(m.httpRequests),
		reg.Register(m.httpDuration),
		reg.Register(m.rateLimited),
		reg.Register(m.eventsPublished),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Error type constants for errors_total.
const (
	ErrTypeLedgerWrite    = "ledger_write"
	ErrTypeBalanceRefresh = "balance_refresh"
	ErrTypeJournal        = "journal"
)

// IncError increments the error counter for the given error type.
func (m *Metrics) IncError(errType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errType).Inc()
}

// RecordClaim records a claim outcome ("success", "cooldown", "failed").
func (m *Metrics) RecordClaim(chain, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(chain, outcome).Inc()
	m.claimDuration.WithLabelValues(chain).Observe(durationSeconds)
}

// IncRPCInFlight increments the in-flight RPC gauge.
func (m *Metrics) IncRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Inc()
}

// DecRPCInFlight decrements the in-flight RPC gauge.
func (m *Metrics) DecRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Dec()
}

// RecordRPCCall records an RPC call outcome.
func (m *Metrics) RecordRPCCall(chain, method string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.rpcCalls.WithLabelValues(chain, method, status).Inc()
	m.rpcDuration.WithLabelValues(chain, method).Observe(durationSeconds)
}

// RecordBridgeOperation records a bridge read or execution.
func (m *Metrics) RecordBridgeOperation(operation string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.bridgeOps.WithLabelValues(operation, status).Inc()
	m.bridgeDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// SetBalance sets the wallet balance gauge.
func (m *Metrics) SetBalance(chain, asset string, value float64) {
	if m == nil {
		return
	}
	m.balance.WithLabelValues(chain, asset).Set(value)
}

// RecordHTTPRequest records a served request. status is a class such as "2xx".
func (m *Metrics) RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

// IncRateLimited counts a request rejected by the IP limiter.
func (m *Metrics) IncRateLimited(path string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(path).Inc()
}

// RecordEventPublished records a publish attempt for an event type.
func (m *Metrics) RecordEventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.eventsPublished.WithLabelValues(eventType, status).Inc()
}
