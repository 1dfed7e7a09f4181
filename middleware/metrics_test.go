package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	e := echo.New()
	e.Use(Metrics())
	e.GET("/api/cases/:id", func(c echo.Context) error {
		if c.Param("id") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		return c.NoContent(http.StatusOK)
	})

	okCounter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/cases/:id", "200")
	notFoundCounter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/cases/:id", "404")
	okBefore := counterValue(okCounter)
	notFoundBefore := counterValue(notFoundCounter)

	for _, path := range []string{"/api/cases/a1", "/api/cases/b2", "/api/cases/missing"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, okBefore+2, counterValue(okCounter))
	assert.Equal(t, notFoundBefore+1, counterValue(notFoundCounter))
}
