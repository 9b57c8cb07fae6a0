package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDeviceAttachUpdatesCounterAndGauge(t *testing.T) {
	before := testutil.ToFloat64(deviceAttachTotal.WithLabelValues("success"))
	RecordDeviceAttach("success", 1)
	assert.Equal(t, before+1, testutil.ToFloat64(deviceAttachTotal.WithLabelValues("success")))

	gaugeBefore := testutil.ToFloat64(deviceCountGauge)
	RecordDeviceAttach("detached", -1)
	assert.Equal(t, gaugeBefore-1, testutil.ToFloat64(deviceCountGauge))
}

func TestRecordLockAcquireLabelsByModeAndStatus(t *testing.T) {
	before := testutil.ToFloat64(lockAcquireTotal.WithLabelValues("exclusive_write", "contended"))
	RecordLockAcquire("exclusive_write", "contended")
	assert.Equal(t, before+1, testutil.ToFloat64(lockAcquireTotal.WithLabelValues("exclusive_write", "contended")))
}

func TestRecordLockForceReleaseIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(lockForceReleaseTotal)
	RecordLockForceRelease()
	assert.Equal(t, before+1, testutil.ToFloat64(lockForceReleaseTotal))
}

func TestRecordPlanExecutionLabelsByStatus(t *testing.T) {
	before := testutil.ToFloat64(planExecutionsTotal.WithLabelValues("error"))
	RecordPlanExecution("error")
	assert.Equal(t, before+1, testutil.ToFloat64(planExecutionsTotal.WithLabelValues("error")))
}

func TestRecordPeerCircuitStateSetsGaugeToRawValue(t *testing.T) {
	RecordPeerCircuitState("hub-2", 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(peerCircuitStateGauge.WithLabelValues("hub-2")))

	RecordPeerCircuitState("hub-2", 0)
	assert.Equal(t, float64(0), testutil.ToFloat64(peerCircuitStateGauge.WithLabelValues("hub-2")))
}

func TestRecordGRPCRequestIncrementsCounterAndObservesDuration(t *testing.T) {
	before := testutil.ToFloat64(grpcRequestsTotal.WithLabelValues("/meridian.hub.HubService/Attach", "OK"))
	RecordGRPCRequest("/meridian.hub.HubService/Attach", "OK", 0.05)
	assert.Equal(t, before+1, testutil.ToFloat64(grpcRequestsTotal.WithLabelValues("/meridian.hub.HubService/Attach", "OK")))
}
