package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func up(ctx context.Context) ComponentHealth { return ComponentHealth{Status: StatusUp} }

func TestRunWorstStatusWins(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
	}{
		{"no checks", nil, StatusUp},
		{"all up", map[string]Check{"index": up, "redis": up}, StatusUp},
		{"degraded cache", map[string]Check{
			"index": up,
			"redis": PingCheck(func(context.Context) error { return errors.New("refused") }, false),
		}, StatusDegraded},
		{"down beats degraded", map[string]Check{
			"index": PingCheck(func(context.Context) error { return errors.New("no snapshot") }, true),
			"redis": PingCheck(func(context.Context) error { return errors.New("refused") }, false),
		}, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(time.Second)
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Components) != len(tt.checks) {
				t.Errorf("components = %v", report.Components)
			}
		})
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("redis", PingCheck(func(context.Context) error { return errors.New("refused") }, false))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("degraded readiness status = %d, want 200", rec.Code)
	}
	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Components["redis"].Message != "refused" {
		t.Errorf("report = %+v", report)
	}

	c.Register("index", PingCheck(func(context.Context) error { return errors.New("not loaded") }, true))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("down readiness status = %d, want 503", rec.Code)
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker(0).LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
