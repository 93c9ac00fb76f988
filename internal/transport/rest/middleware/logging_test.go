package middleware_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"voiceswap/internal/transport/rest/middleware"
)

func TestRequestLoggerRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := middleware.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/v1/sessions/ROOM01/guess", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["method"] != "POST" || line["path"] != "/v1/sessions/ROOM01/guess" {
		t.Fatalf("unexpected request fields: %v", line)
	}
	if line["status"] != float64(http.StatusConflict) {
		t.Fatalf("got status %v want 409", line["status"])
	}
	if _, ok := line["duration"]; !ok {
		t.Fatal("duration missing")
	}
	if line["level"] != "INFO" {
		t.Fatalf("got level %v", line["level"])
	}
}

func TestRequestLoggerDefaultsToOKAndFlagsServerErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ok := middleware.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fine"))
	}))
	ok.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if line["status"] != float64(http.StatusOK) {
		t.Fatalf("got status %v want 200", line["status"])
	}

	buf.Reset()
	failing := middleware.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	failing.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/codes", nil))
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if line["level"] != "ERROR" {
		t.Fatalf("got level %v want ERROR", line["level"])
	}
}
