package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	MustRegister()

	before := testutil.ToFloat64(submissionsTotal.WithLabelValues("accepted"))
	IncSubmission(" Accepted ")
	assert.Equal(t, before+1, testutil.ToFloat64(submissionsTotal.WithLabelValues("accepted")))

	before = testutil.ToFloat64(transitionsTotal.WithLabelValues("entering_phone", "completed", "none"))
	ObserveTransition("entering_phone", "completed", "")
	assert.Equal(t, before+1, testutil.ToFloat64(transitionsTotal.WithLabelValues("entering_phone", "completed", "none")))

	before = testutil.ToFloat64(sendsTotal.WithLabelValues("send.html", "fail"))
	ObserveSend("send.html", errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(sendsTotal.WithLabelValues("send.html", "fail")))
}

func TestHandlerServesMetricsAndHealth(t *testing.T) {
	MustRegister()
	IncUpdate("start")

	h := NewHandler(map[string]Check{"db": func(context.Context) error { return nil }})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "intake_updates_total"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHealthReportsFailingCheck(t *testing.T) {
	h := NewHandler(map[string]Check{"redis": func(context.Context) error { return errors.New("down") }})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
}
