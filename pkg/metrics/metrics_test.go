package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()

	m := New(reg)
	m.SetBuildInfo("v1.0.0", "abc123", "2024-01-01")

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	// A second instance on its own registry must not collide.
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordRegistration()
	m.RecordRegistration()
	m.RecordAuthFailure("invalid_credential")
	m.RecordInternalCall(true)
	m.RecordInternalCall(false)
	m.RecordTaskProxy("list", "error", 0.2)
	m.EventStreamOpened()
	m.EventStreamOpened()
	m.EventStreamClosed()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RegistrationsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuthFailuresTotal.WithLabelValues("invalid_credential")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.InternalCalls.WithLabelValues("rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TaskProxyRequestsTotal.WithLabelValues("list", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventStreamsActive))
}
