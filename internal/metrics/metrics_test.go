package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCMetrics(t *testing.T) {
	t.Run("MCMemcpyTotal", func(t *testing.T) {
		counter := MCMemcpyTotal.WithLabelValues("test mc", "host_to_device")
		before := testutil.ToFloat64(counter)
		counter.Inc()
		assert.Equal(t, before+1, testutil.ToFloat64(counter))
	})

	t.Run("MCReduceNumBlocks", func(t *testing.T) {
		MCReduceNumBlocks.WithLabelValues("test mc").Set(65535)
		value := testutil.ToFloat64(MCReduceNumBlocks.WithLabelValues("test mc"))
		assert.Equal(t, float64(65535), value)
	})

	t.Run("MCErrorsTotal", func(t *testing.T) {
		assert.NotPanics(t, func() {
			MCErrorsTotal.WithLabelValues("test mc", "alloc", "no_memory").Inc()
		})
	})
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, StatusOK, Outcome(nil))
	assert.Equal(t, StatusError, Outcome(errors.New("boom")))
}

func TestHandler(t *testing.T) {
	server := httptest.NewServer(Handler())
	defer server.Close()

	before := testutil.ToFloat64(EndpointResponses.WithLabelValues("/metrics", "200"))

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, before+1, testutil.ToFloat64(EndpointResponses.WithLabelValues("/metrics", "200")))
}
