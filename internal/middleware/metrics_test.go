package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/reynecat/petclinic-edge/internal/metrics"
)

func labelValue(m map[string]string, key string) string {
	return m[key]
}

func requestCounterLabels(t *testing.T, m *metrics.Metrics) []map[string]string {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	var out []map[string]string
	for _, f := range families {
		if f.GetName() != "petclinic_edge_http_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			out = append(out, labels)
		}
	}
	return out
}

func TestMetrics_ClassifiesAppPath(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(Metrics(m, "/metrics"))
	e.GET("/owners", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/owners", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	for _, labels := range requestCounterLabels(t, m) {
		if labelValue(labels, "path_class") == "app" && labelValue(labels, "status_code") == "200" {
			return
		}
	}
	t.Error("expected petclinic_edge_http_requests_total with path_class=app status_code=200")
}

func TestMetrics_ClassifiesStaticPath(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(Metrics(m, "/metrics"))
	e.GET("/resources/css/petclinic.css", func(c echo.Context) error {
		return c.String(http.StatusOK, "body{}")
	})

	req := httptest.NewRequest(http.MethodGet, "/resources/css/petclinic.css", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	for _, labels := range requestCounterLabels(t, m) {
		if labelValue(labels, "path_class") == "static" {
			return
		}
	}
	t.Error("expected petclinic_edge_http_requests_total with path_class=static")
}

func TestMetrics_HTTPErrorStatus(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(Metrics(m, "/metrics"))
	e.GET("/owners", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})

	req := httptest.NewRequest(http.MethodGet, "/owners", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	for _, labels := range requestCounterLabels(t, m) {
		if labelValue(labels, "path_class") == "app" {
			if got := labelValue(labels, "status_code"); got != "404" {
				t.Errorf("status_code = %q, want %q", got, "404")
			}
			return
		}
	}
	t.Error("expected petclinic_edge_http_requests_total with path_class=app")
}

func TestMetrics_CustomMetricsPathLabeledAsItself(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(Metrics(m, "/internal/prom"))
	e.GET("/internal/prom", func(c echo.Context) error {
		return c.String(http.StatusOK, "# metrics")
	})

	req := httptest.NewRequest(http.MethodGet, "/internal/prom", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	for _, labels := range requestCounterLabels(t, m) {
		if labelValue(labels, "path_class") == "/internal/prom" {
			return
		}
	}
	t.Error("expected petclinic_edge_http_requests_total with path_class=/internal/prom")
}

func TestMetrics_RecordsDuration(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(Metrics(m, "/metrics"))
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "healthy")
	})

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "petclinic_edge_http_request_duration_seconds" {
			for _, metric := range f.GetMetric() {
				if metric.GetHistogram().GetSampleCount() > 0 {
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("expected petclinic_edge_http_request_duration_seconds with at least one sample")
	}
}
