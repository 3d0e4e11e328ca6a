package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"campusgo/internal/db"
)

func TestHealthCheck(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	h := NewHealthHandler("CampusGo", database)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.Check(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%q", rr.Code, rr.Body.String())
	}

	var resp struct {
		Service string            `json:"service"`
		Status  string            `json:"status"`
		Checks  map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	if resp.Service != "CampusGo" {
		t.Fatalf("service = %q, want %q", resp.Service, "CampusGo")
	}
	if resp.Status != "ok" {
		t.Fatalf("status = %q, want %q", resp.Status, "ok")
	}
	if resp.Checks["database"] != "ok" {
		t.Fatalf("checks.database = %q, want %q", resp.Checks["database"], "ok")
	}
}

func TestHealthCheckDegradedOnClosedDatabase(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	_ = database.Close()

	h := NewHealthHandler("CampusGo", database)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.Check(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503, body=%q", rr.Code, rr.Body.String())
	}

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if resp.Status != "degraded" || resp.Checks["database"] != "error" {
		t.Fatalf("resp = %+v, want degraded with database error", resp)
	}
}
