package domain

import (
	"errors"
	"testing"
	"time"
)

func TestWindowKeyAt_DailyUsesLocalDate(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	at := time.Date(2026, 3, 9, 23, 30, 0, 0, loc)
	if got := WindowKeyAt(WindowDaily, at); got != "2026-03-09" {
		t.Fatalf("expected local date key, got %q", got)
	}
}

func TestWindowKeyAt_Lifetime(t *testing.T) {
	if got := WindowKeyAt(WindowLifetime, time.Now()); got != LifetimeKey {
		t.Fatalf("expected %q, got %q", LifetimeKey, got)
	}
}

func TestParseWindowKey(t *testing.T) {
	if err := ParseWindowKey("ALL"); err != nil {
		t.Fatalf("ALL should be valid: %v", err)
	}
	if err := ParseWindowKey("2026-08-31"); err != nil {
		t.Fatalf("date should be valid: %v", err)
	}
	if err := ParseWindowKey("31/08/2026"); !errors.Is(err, ErrInvalidWindowKey) {
		t.Fatalf("expected ErrInvalidWindowKey, got %v", err)
	}
	if err := ParseWindowKey(""); !errors.Is(err, ErrInvalidWindowKey) {
		t.Fatalf("expected ErrInvalidWindowKey for empty key, got %v", err)
	}
}

func TestUntilMidnight(t *testing.T) {
	at := time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC)
	if got := UntilMidnight(at); got != time.Hour {
		t.Fatalf("expected 1h to midnight, got %s", got)
	}

	at = time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	if got := UntilMidnight(at); got != 24*time.Hour {
		t.Fatalf("expected full day from midnight, got %s", got)
	}
}

func TestCounterKey(t *testing.T) {
	if got := CounterKey("7", "2026-08-31"); got != Key("7:2026-08-31") {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestUsageRecord_RemainingNeverNegative(t *testing.T) {
	r := UsageRecord{Count: 9, Limit: 5}
	if got := r.Remaining(); got != 0 {
		t.Fatalf("expected 0 remaining on overshoot, got %d", got)
	}

	r = UsageRecord{Count: 2, Limit: 5}
	if got := r.Remaining(); got != 3 {
		t.Fatalf("expected 3 remaining, got %d", got)
	}
}
