package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	applogger "RegimeLab/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_LabelsByRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	var buf bytes.Buffer
	log := applogger.NewWithWriter(&buf, "debug")

	e := echo.New()
	e.Use(Recover(log))
	e.Use(Metrics(log, reg, 0))
	e.GET("/api/regimes/:symbol", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/boom", func(c echo.Context) error {
		panic("kaboom")
	})

	for _, path := range []string{"/api/regimes/SPY", "/api/regimes/QQQ"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	count, err := testutil.GatherAndCount(reg, "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "both symbols share one route series")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "http handler panic")
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "4xx", statusClass(422))
	assert.Equal(t, "5xx", statusClass(502))
}

func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogging(applogger.NewWithWriter(&buf, "debug")))
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	e.GET("/api/exhaustion", ok)
	e.GET("/healthz", ok)

	for _, target := range []string{"/healthz", "/api/exhaustion?symbol=QQQ"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	out := buf.String()
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("http request")), out)
	assert.Contains(t, out, `"route":"/api/exhaustion"`)
	assert.Contains(t, out, `"symbol":"QQQ"`)
	assert.NotContains(t, out, "/healthz")
}
