package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestRunAllUp(t *testing.T) {
	c := NewChecker()
	c.Register("redis", pingFunc(func(context.Context) error { return nil }))
	c.Register("postgres", pingFunc(func(context.Context) error { return nil }))

	report := c.Run(context.Background())
	if report.Status != StatusUp {
		t.Errorf("status = %s, want up", report.Status)
	}
	if len(report.Components) != 2 {
		t.Errorf("got %d components, want 2", len(report.Components))
	}
	if names := c.Names(); names[0] != "postgres" || names[1] != "redis" {
		t.Errorf("Names() = %v", names)
	}
}

func TestReadyHandlerDown(t *testing.T) {
	c := NewChecker()
	c.Register("redis", pingFunc(func(context.Context) error { return errors.New("connection refused") }))
	c.Register("postgres", pingFunc(func(context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d, want 503", rec.Code)
	}
	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Components["redis"].Message != "connection refused" {
		t.Errorf("redis = %+v", report.Components["redis"])
	}
	if report.Components["postgres"].Status != StatusUp {
		t.Errorf("postgres = %+v", report.Components["postgres"])
	}
}

func TestReadyHandlerNoServices(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
}
