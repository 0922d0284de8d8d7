package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsService(t *testing.T) {
	m := NewMetricsService()
	require.NotNil(t, m.GetRegistry())
}

func TestMetricsService_Observations(t *testing.T) {
	m := NewMetricsService()

	m.IncNumRequests("/records", "GET", 200)
	m.IncNumRequests("/records", "GET", 200)
	m.IncNumRequests("/records", "POST", 500)
	m.ObserveRequestDuration("/records", "GET", 0.25)
	m.IncRequestFailure("/records", "GET", "timeout")
	m.IncTokenExchange("client_credentials", "success")
	m.IncFileDownload("invalid_content_type")

	families, err := m.GetRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	assert.True(t, names["kaleido_client_requests_total"])
	assert.True(t, names["kaleido_client_request_duration_seconds"])
	assert.True(t, names["kaleido_client_request_failures_total"])
	assert.True(t, names["kaleido_client_token_exchanges_total"])
	assert.True(t, names["kaleido_client_file_downloads_total"])
}

func TestNoopMetricsService(t *testing.T) {
	m := NoopMetricsService{}
	assert.Nil(t, m.GetRegistry())

	// no-ops must not panic
	m.IncNumRequests("/records", "GET", 200)
	m.ObserveRequestDuration("/records", "GET", 0.1)
	m.IncRequestFailure("/records", "GET", "http_error")
	m.IncTokenExchange("refresh_token", "failure")
	m.IncFileDownload("success")
}
