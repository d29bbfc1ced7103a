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

func TestReadyHandler(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	fail := func(ctx context.Context) error { return errors.New("refused") }

	tests := []struct {
		name       string
		checks     map[string]Check
		wantCode   int
		wantStatus Status
	}{
		{"all up", map[string]Check{"db": PingCheck(ok)}, http.StatusOK, StatusUp},
		{"optional down", map[string]Check{"db": PingCheck(ok), "redis": OptionalPingCheck(fail)}, http.StatusOK, StatusDegraded},
		{"required down", map[string]Check{"db": PingCheck(fail), "redis": OptionalPingCheck(fail)}, http.StatusServiceUnavailable, StatusDown},
		{"not ready", map[string]Check{"engine": StatusCheck(func() (Status, string) { return StatusDown, "no catalog loaded" })}, http.StatusServiceUnavailable, StatusDown},
		{"breaker open", map[string]Check{
			"engine":         StatusCheck(func() (Status, string) { return StatusUp, "" }),
			"catalog-source": StatusCheck(func() (Status, string) { return StatusDegraded, "open" }),
		}, http.StatusOK, StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			rec := httptest.NewRecorder()
			c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			var report Report
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatalf("decoding report: %v", err)
			}
			if report.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", report.Status, tt.wantStatus)
			}
			if len(report.Components) != len(tt.checks) {
				t.Errorf("expected %d components, got %d", len(tt.checks), len(report.Components))
			}
		})
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", rec.Code)
	}
}

func TestRunTimesOutSlowChecks(t *testing.T) {
	c := NewChecker()
	c.Register("slow", PingCheck(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	start := time.Now()
	report := c.Run(context.Background())
	if elapsed := time.Since(start); elapsed > checkTimeout+time.Second {
		t.Errorf("Run took %v", elapsed)
	}
	if report.Components["slow"].Status != StatusDown {
		t.Errorf("slow check = %+v, want down", report.Components["slow"])
	}
}
