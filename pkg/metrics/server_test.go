package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAdminServerRoutes(t *testing.T) {
	s := NewAdminServer(0)
	s.Handle("GET /health/live", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/metrics", http.StatusOK, "go_goroutines"},
		{"/", http.StatusOK, "/metrics"},
		{"/health/live", http.StatusOK, ""},
		{"/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("body missing %q", tt.body)
			}
		})
	}
}
