package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := NewRecorder()

	r.ObserveOperation("memory", "create", nil, time.Second)
	r.ObserveOperation("memory", "create", errors.New("boom"), time.Second)
	r.RecordNodes("memory", "web", 2, 1)
	r.ObservePoll("node-running", ResultTimeout, time.Second)
	r.RecordCleanup("security group", nil)
	r.ObserveAPICall("hcloud", "GET", 200, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.operationsTotal.WithLabelValues("memory", "create", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operationsTotal.WithLabelValues("memory", "create", ResultFailure)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.nodesTotal.WithLabelValues("memory", "web", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.nodesTotal.WithLabelValues("memory", "web", ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.pollsTotal.WithLabelValues("node-running", ResultTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cleanupsTotal.WithLabelValues("security group", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.apiCallsTotal.WithLabelValues("hcloud", "GET", "200")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveOperation("p", "op", nil, 0)
		r.RecordNodes("p", "g", 1, 1)
		r.ObservePoll("t", ResultSuccess, 0)
		r.RecordCleanup("k", nil)
		r.ObserveAPICall("p", "GET", 200, 0)
	})
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile("/nonexistent/dir/file.prom"))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.RecordCleanup("network", errors.New("in use"))

	path := filepath.Join(t.TempDir(), "nodekit.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `nodekit_cleanup_resources_total{kind="network",result="failure"} 1`))
}
