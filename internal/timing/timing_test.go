package timing_test

import (
	"testing"
	"time"

	"voiceswap/internal/model"
	"voiceswap/internal/timing"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(ms int64) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func openAt(ms int64, cumulative int64) *model.Session {
	start := at(ms)
	return &model.Session{PersonaActivatedAt: &start, CumulativePersonaMs: cumulative}
}

func TestLiveCumulativeClosedWindow(t *testing.T) {
	s := &model.Session{CumulativePersonaMs: 5000}
	if got := timing.LiveCumulative(s, at(99999)); got != 5000 {
		t.Fatalf("got %d want 5000", got)
	}
}

func TestLiveCumulativeOpenWindow(t *testing.T) {
	s := openAt(10000, 5000)
	if got := timing.LiveCumulative(s, at(12000)); got != 7000 {
		t.Fatalf("got %d want 7000", got)
	}
}

func TestLiveCumulativeIgnoresBackwardClock(t *testing.T) {
	s := openAt(10000, 5000)
	if got := timing.LiveCumulative(s, at(9000)); got != 5000 {
		t.Fatalf("got %d want 5000", got)
	}
}

func TestExpiryInstant(t *testing.T) {
	s := openAt(10000, 5000)

	got, ok := timing.ExpiryInstant(s, 8*time.Second)
	if !ok {
		t.Fatal("expected an expiry instant")
	}
	if !got.Equal(at(13000)) {
		t.Fatalf("got %v want %v", got, at(13000))
	}

	if _, ok := timing.ExpiryInstant(s, 0); ok {
		t.Fatal("budget 0 must disable expiry")
	}
	if _, ok := timing.ExpiryInstant(&model.Session{}, time.Minute); ok {
		t.Fatal("closed window has no expiry")
	}
}

func TestRemainingAndExpired(t *testing.T) {
	s := openAt(0, 0)
	budget := 3 * time.Second

	if got := timing.Remaining(s, at(1000), budget); got != 2000 {
		t.Fatalf("remaining got %d want 2000", got)
	}
	if timing.Expired(s, at(2999), budget) {
		t.Fatal("not expired yet")
	}
	if !timing.Expired(s, at(3000), budget) {
		t.Fatal("expected expired at budget")
	}
	if got := timing.Remaining(s, at(5000), budget); got != 0 {
		t.Fatalf("remaining got %d want 0", got)
	}
	if got := timing.Remaining(s, at(5000), 0); got != -1 {
		t.Fatalf("unlimited budget got %d want -1", got)
	}
}

func TestCloseInstantClampsToExpiry(t *testing.T) {
	s := openAt(0, 1000)
	budget := 3 * time.Second

	if got := timing.CloseInstant(s, at(1500), budget); !got.Equal(at(1500)) {
		t.Fatalf("before expiry got %v", got)
	}
	if got := timing.CloseInstant(s, at(9000), budget); !got.Equal(at(2000)) {
		t.Fatalf("after expiry got %v want %v", got, at(2000))
	}
}

func TestCloseWindowAccumulatesAcrossCycles(t *testing.T) {
	s := &model.Session{}

	start := at(0)
	s.PersonaActivatedAt = &start
	if elapsed := timing.CloseWindow(s, at(5000)); elapsed != 5000 {
		t.Fatalf("first window got %d", elapsed)
	}

	start = at(10000)
	s.PersonaActivatedAt = &start
	if elapsed := timing.CloseWindow(s, at(12000)); elapsed != 2000 {
		t.Fatalf("second window got %d", elapsed)
	}

	if s.CumulativePersonaMs != 7000 {
		t.Fatalf("cumulative got %d want 7000", s.CumulativePersonaMs)
	}
	if s.PersonaActivatedAt != nil {
		t.Fatal("window must be cleared")
	}
	if elapsed := timing.CloseWindow(s, at(20000)); elapsed != 0 {
		t.Fatal("closing a closed window must be a no-op")
	}
}
