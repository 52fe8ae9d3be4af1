package hcloud

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodekit/internal/metrics"
)

func TestEndpointOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/servers", "GET /servers"},
		{http.MethodGet, "/servers/42", "GET /servers"},
		{http.MethodPost, "/v1/firewalls/7/actions/set_rules", "POST /firewalls"},
		{http.MethodGet, "/", "GET /"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		assert.Equal(t, tt.want, endpointOf(req), tt.path)
	}
}

func TestTransport_RecordsCalls(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	recorder := metrics.NewRecorder()
	client := &http.Client{Transport: newTransport(nil, 0, 0, recorder)}

	resp, err := client.Get(server.URL + "/servers/1")
	require.NoError(t, err)
	_ = resp.Body.Close()

	count, err := testutil.GatherAndCount(recorder.Registry(), "nodekit_api_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTransport_RateLimits(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// One token up front, then one every 50ms.
	client := &http.Client{Transport: newTransport(nil, 20, 1, nil)}

	start := time.Now()
	for range 3 {
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
