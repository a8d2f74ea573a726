// Package tracker maintains per-source-IP sliding windows of failed login
// attempts and decides window counts for brute-force detection.
package tracker

import (
	"sync"
	"time"
)

// window holds the failed-attempt timestamps for one source IP. All entries
// are within the configured window of the latest observed timestamp.
type window struct {
	latest time.Time
	times  []time.Time
}

// Tracker counts failed login attempts per source IP over a sliding window.
// Safe for use from multiple goroutines; the read-prune-append sequence on a
// window runs under one lock.
type Tracker struct {
	mu     sync.Mutex
	window time.Duration
	byIP   map[string]*window
}

// New creates a Tracker with the given sliding-window length.
func New(windowLen time.Duration) *Tracker {
	return &Tracker{
		window: windowLen,
		byIP:   make(map[string]*window),
	}
}

// OnFailed records a failed attempt from ip at the given time and returns the
// number of attempts currently inside the window. Entries are pruned against
// the latest timestamp seen for that IP, so late-arriving older timestamps
// still count correctly as long as they fall inside the window.
func (t *Tracker) OnFailed(ip string, at time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.byIP[ip]
	if !ok {
		w = &window{}
		t.byIP[ip] = w
	}
	w.times = append(w.times, at)
	if at.After(w.latest) {
		w.latest = at
	}
	cutoff := w.latest.Add(-t.window)
	kept := w.times[:0]
	for _, ts := range w.times {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.times = kept
	return len(w.times)
}

// Reset clears the window for ip so the next failed attempt counts from zero.
// The entry itself is kept; the sweep evicts it if the IP stays quiet.
func (t *Tracker) Reset(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok := t.byIP[ip]; ok {
		w.times = w.times[:0]
	}
}

// Sweep evicts IPs whose newest attempt is older than the window relative to
// now, bounding map growth for sources that went quiet.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := now.Add(-t.window)
	evicted := 0
	for ip, w := range t.byIP {
		if w.latest.Before(cutoff) {
			delete(t.byIP, ip)
			evicted++
		}
	}
	return evicted
}

// TrackedIPs returns the number of source IPs currently held in the map.
func (t *Tracker) TrackedIPs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byIP)
}

// Count returns the current window length for ip without recording an attempt.
func (t *Tracker) Count(ip string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok := t.byIP[ip]; ok {
		return len(w.times)
	}
	return 0
}
