package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"voiceswap/internal/app"
	"voiceswap/internal/config"
	"voiceswap/internal/model"
)

func testConfig(driver string) *config.Config {
	return &config.Config{
		StoreDriver:        driver,
		JWTSecret:          "secret",
		GuestTokensEnabled: true,
		PersonaBudget:      time.Minute,
		SessionMaxDuration: 5 * time.Minute,
		SweepInterval:      time.Second,
		EventBuffer:        16,
	}
}

func TestBuildMemory(t *testing.T) {
	a, err := app.Build(context.Background(), testConfig(config.DriverMemory), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close(context.Background())

	if a.Relay != nil {
		t.Fatal("relay must be nil without redis")
	}

	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: got %d", rec.Code)
	}
}

func TestBuildSQLiteRecordsEvents(t *testing.T) {
	cfg := testConfig(config.DriverSQLite)
	cfg.SQLitePath = filepath.Join(t.TempDir(), "app.db")

	a, err := app.Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ctx := context.Background()
	alice := model.Identity{UserID: "alice"}
	if _, err := a.Coordinator.CreateSession(ctx, alice, model.CreateSessionRequest{SessionID: "ROOM01"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Drain the recorder, then read the trail through the still-open store.
	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.Recorder.Close(closeCtx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	events, err := a.Events.ListBySession(ctx, "ROOM01")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 || events[0].Type != model.EventSessionCreated {
		t.Fatalf("unexpected events %+v", events)
	}

	if err := a.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestBuildRejectsUnknownDriver(t *testing.T) {
	if _, err := app.Build(context.Background(), testConfig("cassandra"), nil); err == nil {
		t.Fatal("expected an error for an unknown driver")
	}
}
