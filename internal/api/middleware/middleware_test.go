package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Golani45/uthgard/internal/metrics"
	"github.com/Golani45/uthgard/pkg/logger"
)

func runRequest(t *testing.T, target string, mw echo.MiddlewareFunc, h echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := mw(h)(c)
	return rec, err
}

func TestRequestLog_AssignsRequestID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "info", "text")

	rec, err := runRequest(t, "/api/v1/tick", RequestLog(log), func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Contains(t, buf.String(), "request_id=")
}

func TestRequestLog_LogsAdminTarget(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "info", "text")

	_, err := runRequest(t,
		"/api/v1/admin?action=clear-cap&keep=caer-benowyc&realm=Midgard",
		RequestLog(log),
		func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "action=clear-cap")
	assert.Contains(t, out, "keep=caer-benowyc")
	assert.Contains(t, out, "realm=Midgard")
}

func TestRequestLog_PlainRequestOmitsAdminFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "info", "text")

	_, err := runRequest(t, "/api/v1/state", RequestLog(log),
		func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	require.NoError(t, err)

	assert.NotContains(t, buf.String(), "action=")
	assert.NotContains(t, buf.String(), "keep=")
}

func panicsRecovered(t *testing.T) float64 {
	t.Helper()
	pb := &dto.Metric{}
	require.NoError(t, metrics.HTTPPanicsTotal.Write(pb))
	return pb.GetCounter().GetValue()
}

func TestRecovery_CountsAndLogsPanic(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "error", "text")

	before := panicsRecovered(t)

	rec, err := runRequest(t, "/api/v1/simulate?mode=ua", Recovery(log),
		func(echo.Context) error { panic("detector blew up") })
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "detector blew up")
	assert.Equal(t, before+1, panicsRecovered(t))
}

func TestMetrics_RecordsRequest(t *testing.T) {
	t.Parallel()

	before := httpRequests(t, "POST", "/api/v1/tick", "200")

	_, err := runRequest(t, "/api/v1/tick", Metrics(),
		func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	require.NoError(t, err)

	assert.Equal(t, before+1, httpRequests(t, "POST", "/api/v1/tick", "200"))
}

func httpRequests(t *testing.T, method, path, status string) float64 {
	t.Helper()
	var c prometheus.Counter = metrics.HTTPRequestsTotal.WithLabelValues(method, path, status)
	pb := &dto.Metric{}
	require.NoError(t, c.Write(pb))
	return pb.GetCounter().GetValue()
}
