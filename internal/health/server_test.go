package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	s := NewServer("0", Readiness{}, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("unexpected health status: %s", body["status"])
	}
}

func TestReadyReflectsConfiguration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		readiness Readiness
		want      string
	}{
		{
			name:      "all configured",
			readiness: Readiness{RedisConfigured: true, DatabaseConfigured: true, NCBIConfigured: true},
			want:      "ready",
		},
		{
			name:      "missing ncbi email",
			readiness: Readiness{RedisConfigured: true, DatabaseConfigured: true},
			want:      "not_ready",
		},
		{
			name:      "nothing configured",
			readiness: Readiness{},
			want:      "not_ready",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := NewServer("0", tc.readiness, slog.Default())

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			rec := httptest.NewRecorder()
			s.echo.ServeHTTP(rec, req)

			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["status"] != tc.want {
				t.Fatalf("expected %s, got %v", tc.want, body["status"])
			}
		})
	}
}

func TestRootBanner(t *testing.T) {
	t.Parallel()

	s := NewServer("0", Readiness{}, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["service"] != serviceName {
		t.Fatalf("unexpected service name: %s", body["service"])
	}
}
