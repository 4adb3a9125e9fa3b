package metrics

import "testing"

func TestNormalizeMethod(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"GET", "GET"},
		{"POST", "POST"},
		{"DELETE", "DELETE"},
		{"XYZZY", "other"},
		{"get", "other"}, // method labels are case-sensitive
	}
	for _, tt := range tests {
		if got := NormalizeMethod(tt.in); got != tt.want {
			t.Errorf("NormalizeMethod(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in          string
		metricsPath string
		want        string
	}{
		{"/health", "/metrics", "/health"},
		{"/edge/status", "/metrics", "/edge/status"},
		{"/metrics", "/metrics", "/metrics"},
		{"/internal/prom", "/internal/prom", "/internal/prom"},
		{"/metrics", "/internal/prom", "app"},
		{"/resources/css/petclinic.css", "/metrics", "static"},
		{"/resources/js/app.JS", "/metrics", "static"},
		{"/images/pets.png", "/metrics", "static"},
		{"/owners", "/metrics", "app"},
		{"/owners/1/pets/2/edit", "/metrics", "app"},
		{"/", "/metrics", "app"},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in, tt.metricsPath); got != tt.want {
			t.Errorf("NormalizePath(%q, %q) = %q, want %q", tt.in, tt.metricsPath, got, tt.want)
		}
	}
}

func TestNew_RegistersCollectors(t *testing.T) {
	m := New()

	m.RequestsTotal.WithLabelValues("GET", "200", "app").Inc()
	m.CacheHits.Inc()
	m.CacheMisses.Inc()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	want := map[string]bool{
		"petclinic_edge_http_requests_total": false,
		"petclinic_edge_cache_hits_total":    false,
		"petclinic_edge_cache_misses_total":  false,
	}
	for _, f := range families {
		if _, ok := want[f.GetName()]; ok {
			want[f.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected metric family %s to be registered", name)
		}
	}
}
