package tracker

import (
	"testing"
	"time"
)

func TestTracker_CountsWithinWindow(t *testing.T) {
	tr := New(5 * time.Minute)
	base := time.Date(2025, 11, 11, 3, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		got := tr.OnFailed("10.0.0.5", base.Add(time.Duration(i)*time.Second))
		if got != i+1 {
			t.Fatalf("attempt %d: count = %d, want %d", i+1, got, i+1)
		}
	}
}

func TestTracker_PrunesExpiredEntries(t *testing.T) {
	tr := New(5 * time.Minute)
	base := time.Date(2025, 11, 11, 3, 0, 0, 0, time.UTC)

	tr.OnFailed("10.0.0.5", base)
	tr.OnFailed("10.0.0.5", base.Add(time.Minute))
	// 6 minutes later both earlier entries are outside the window.
	got := tr.OnFailed("10.0.0.5", base.Add(6*time.Minute))
	if got != 2 {
		t.Errorf("count after expiry = %d, want 2 (entry at +1m still inside)", got)
	}
	got = tr.OnFailed("10.0.0.5", base.Add(12*time.Minute))
	if got != 1 {
		t.Errorf("count after full expiry = %d, want 1", got)
	}
}

func TestTracker_OutOfOrderTimestamps(t *testing.T) {
	tr := New(5 * time.Minute)
	base := time.Date(2025, 11, 11, 3, 0, 0, 0, time.UTC)

	tr.OnFailed("10.0.0.5", base.Add(4*time.Minute))
	// An older timestamp arrives late but is still within the window of the
	// latest observed time.
	got := tr.OnFailed("10.0.0.5", base)
	if got != 2 {
		t.Errorf("count with late in-window entry = %d, want 2", got)
	}

	// A late timestamp older than the window relative to the latest must be
	// pruned immediately.
	tr2 := New(5 * time.Minute)
	tr2.OnFailed("10.0.0.5", base.Add(10*time.Minute))
	got = tr2.OnFailed("10.0.0.5", base)
	if got != 1 {
		t.Errorf("count with stale late entry = %d, want 1", got)
	}
}

func TestTracker_ThresholdEdge(t *testing.T) {
	const threshold = 5
	tr := New(5 * time.Minute)
	base := time.Date(2025, 11, 11, 3, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		count := tr.OnFailed("10.0.0.5", base.Add(time.Duration(i)*time.Second))
		if count >= threshold {
			t.Fatalf("attempt %d crossed threshold early: count = %d", i+1, count)
		}
	}
	count := tr.OnFailed("10.0.0.5", base.Add(4*time.Second))
	if count < threshold {
		t.Fatalf("5th attempt: count = %d, want >= %d", count, threshold)
	}

	tr.Reset("10.0.0.5")
	if got := tr.Count("10.0.0.5"); got != 0 {
		t.Errorf("count after reset = %d, want 0", got)
	}
	// Counting restarts from zero for the next burst.
	if got := tr.OnFailed("10.0.0.5", base.Add(5*time.Second)); got != 1 {
		t.Errorf("first attempt after reset = %d, want 1", got)
	}
}

func TestTracker_IPIndependence(t *testing.T) {
	tr := New(5 * time.Minute)
	base := time.Date(2025, 11, 11, 3, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		tr.OnFailed("10.0.0.5", base.Add(time.Duration(i)*time.Second))
	}
	if got := tr.OnFailed("192.0.2.1", base); got != 1 {
		t.Errorf("count for unrelated IP = %d, want 1", got)
	}
	if got := tr.Count("10.0.0.5"); got != 4 {
		t.Errorf("count for first IP changed to %d, want 4", got)
	}
	tr.Reset("192.0.2.1")
	if got := tr.Count("10.0.0.5"); got != 4 {
		t.Errorf("reset of one IP affected another: count = %d, want 4", got)
	}
}

func TestTracker_SweepEvictsIdleIPs(t *testing.T) {
	tr := New(5 * time.Minute)
	base := time.Date(2025, 11, 11, 3, 0, 0, 0, time.UTC)

	tr.OnFailed("10.0.0.5", base)
	tr.OnFailed("192.0.2.1", base.Add(4*time.Minute))
	if got := tr.TrackedIPs(); got != 2 {
		t.Fatalf("TrackedIPs = %d, want 2", got)
	}

	evicted := tr.Sweep(base.Add(7 * time.Minute))
	if evicted != 1 {
		t.Errorf("Sweep evicted %d, want 1", evicted)
	}
	if got := tr.TrackedIPs(); got != 1 {
		t.Errorf("TrackedIPs after sweep = %d, want 1", got)
	}
	if got := tr.Count("192.0.2.1"); got != 1 {
		t.Errorf("recent IP evicted: count = %d, want 1", got)
	}
}

func TestTracker_ResetUnknownIP(t *testing.T) {
	tr := New(5 * time.Minute)
	tr.Reset("10.9.9.9") // must not panic or create an entry
	if got := tr.TrackedIPs(); got != 0 {
		t.Errorf("TrackedIPs = %d, want 0", got)
	}
}
