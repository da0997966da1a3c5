package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	require.NotNil(t, capturesTotal)
	require.NotNil(t, uploadsTotal)
	require.NotNil(t, staleDeletedTotal)
	require.NotNil(t, renderDurationSeconds)

	before := testutil.ToFloat64(capturesTotal.WithLabelValues("client", StatusSuccess))
	ObserveCapture("client", StatusSuccess)
	assert.InDelta(t, before+1, testutil.ToFloat64(capturesTotal.WithLabelValues("client", StatusSuccess)), 1e-9)

	before = testutil.ToFloat64(uploadsTotal.WithLabelValues("thumbnail", StatusFailure))
	ObserveUpload("thumbnail", StatusFailure)
	assert.InDelta(t, before+1, testutil.ToFloat64(uploadsTotal.WithLabelValues("thumbnail", StatusFailure)), 1e-9)

	before = testutil.ToFloat64(staleDeletedTotal.WithLabelValues(LocationBucket))
	ObserveStaleDeleted(LocationBucket)
	assert.InDelta(t, before+1, testutil.ToFloat64(staleDeletedTotal.WithLabelValues(LocationBucket)), 1e-9)

	ObserveRender("agent-pricing", 3*time.Second)
	assert.Positive(t, testutil.CollectAndCount(renderDurationSeconds))
}

func TestRouter(t *testing.T) {
	ts := httptest.NewServer(Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	ObserveCapture("client", StatusSkipped)
	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.True(t, strings.Contains(string(body), "brochure_captures_total"))

	resp, err = http.Get(ts.URL + "/missing")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.GreaterOrEqual(t, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200")), float64(2))
	assert.GreaterOrEqual(t, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "404")), float64(1))
}

func TestStartAndShutdown(t *testing.T) {
	srv, err := Start("127.0.0.1:0", nil)
	require.NoError(t, err)

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	_, err = Start("256.0.0.1:bad", nil)
	assert.Error(t, err)
}
