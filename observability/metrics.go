package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// HUB METRICS
// =============================================================================

var (
	deviceAttachTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_device_attach_total",
			Help: "Total device attach attempts",
		},
		[]string{"status"}, // status: success, error
	)

	deviceCountGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meridian_devices_attached",
			Help: "Number of devices currently attached to this hub",
		},
	)

	actionDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_action_duration_seconds",
			Help:    "Device action invocation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"blueprint", "action", "status"},
	)
)

// =============================================================================
// LOCK METRICS
// =============================================================================

var (
	lockAcquireTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_lock_acquire_total",
			Help: "Total lease lock acquisition attempts",
		},
		[]string{"mode", "status"}, // mode: shared_read, exclusive_write; status: granted, contended, expired
	)

	lockForceReleaseTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meridian_lock_force_release_total",
			Help: "Total admin-initiated forced lease releases",
		},
	)
)

// =============================================================================
// RECONCILE METRICS
// =============================================================================

var (
	planExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_plan_executions_total",
			Help: "Total transaction plan executions",
		},
		[]string{"status"},
	)

	planStepDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_plan_step_duration_seconds",
			Help:    "Plan action-spec step duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"kind"},
	)
)

// =============================================================================
// PEER METRICS
// =============================================================================

var (
	peerCircuitStateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "meridian_peer_circuit_breaker_state",
			Help: "Current gobreaker state per peer (0=closed, 1=half-open, 2=open)",
		},
		[]string{"peer"},
	)

	peerCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_peer_call_total",
			Help: "Total outbound peer connection calls",
		},
		[]string{"peer", "method", "status"},
	)
)

// =============================================================================
// GRPC METRICS
// =============================================================================

var (
	grpcRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_grpc_requests_total",
			Help: "Total gRPC control-plane requests",
		},
		[]string{"method", "status"},
	)

	grpcRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_grpc_request_duration_seconds",
			Help:    "gRPC control-plane request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method"},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordDeviceAttach records the outcome of one Hub.Attach call and
// updates the live device gauge.
func RecordDeviceAttach(status string, delta int) {
	deviceAttachTotal.WithLabelValues(status).Inc()
	deviceCountGauge.Add(float64(delta))
}

// RecordAction records one device action invocation.
func RecordAction(blueprintID, action, status string, durationSeconds float64) {
	actionDurationSeconds.WithLabelValues(blueprintID, action, status).Observe(durationSeconds)
}

// RecordLockAcquire records one lease lock acquisition attempt.
func RecordLockAcquire(mode, status string) {
	lockAcquireTotal.WithLabelValues(mode, status).Inc()
}

// RecordLockForceRelease records one admin-initiated forced release.
func RecordLockForceRelease() {
	lockForceReleaseTotal.Inc()
}

// RecordPlanExecution records the terminal outcome of one TransactionPlan
// run by reconcile.Execute.
func RecordPlanExecution(status string) {
	planExecutionsTotal.WithLabelValues(status).Inc()
}

// RecordPlanStep records one ActionSpec step's execution duration.
func RecordPlanStep(kind string, durationSeconds float64) {
	planStepDurationSeconds.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordPeerCircuitState mirrors a gobreaker.State transition into the
// peer circuit breaker gauge; callers pass the numeric gobreaker.State
// value directly (Closed=0, HalfOpen=1, Open=2).
func RecordPeerCircuitState(peer string, state int) {
	peerCircuitStateGauge.WithLabelValues(peer).Set(float64(state))
}

// RecordPeerCall records one outbound peer.PeerConnection call.
func RecordPeerCall(peer, method, status string) {
	peerCallTotal.WithLabelValues(peer, method, status).Inc()
}

// RecordGRPCRequest records one inbound control-plane gRPC request.
func RecordGRPCRequest(method, status string, durationSeconds float64) {
	grpcRequestsTotal.WithLabelValues(method, status).Inc()
	grpcRequestDurationSeconds.WithLabelValues(method).Observe(durationSeconds)
}
