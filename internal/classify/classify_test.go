package classify

import (
	"testing"
	"time"

	"github.com/telunas/sshwatch/internal/types"
)

func TestClassify_FailedPassword(t *testing.T) {
	now := time.Now()
	line := "Nov 11 03:12:45 host sshd[1234]: Failed password for root from 10.0.0.5 port 52211 ssh2"
	ev, ok := Classify(line, now)
	if !ok {
		t.Fatal("expected a match for failed password line")
	}
	if ev.Kind != types.LoginFailed {
		t.Errorf("Kind = %v, want LoginFailed", ev.Kind)
	}
	if ev.User != "root" || ev.SourceIP != "10.0.0.5" {
		t.Errorf("event = user %q ip %q, want root/10.0.0.5", ev.User, ev.SourceIP)
	}
	if !ev.ObservedAt.Equal(now.UTC()) {
		t.Errorf("ObservedAt = %v, want %v", ev.ObservedAt, now.UTC())
	}
}

func TestClassify_FailedInvalidUser(t *testing.T) {
	line := "Failed password for invalid user admin from 192.168.1.20 port 40022 ssh2"
	ev, ok := Classify(line, time.Now())
	if !ok {
		t.Fatal("expected a match for invalid user line")
	}
	if ev.User != "admin" {
		t.Errorf("User = %q, want admin (invalid user prefix must be stripped)", ev.User)
	}
	if ev.SourceIP != "192.168.1.20" {
		t.Errorf("SourceIP = %q", ev.SourceIP)
	}
}

func TestClassify_AcceptedPassword(t *testing.T) {
	line := "Accepted password for alice from 203.0.113.7 port 51122 ssh2"
	ev, ok := Classify(line, time.Now())
	if !ok {
		t.Fatal("expected a match for accepted password line")
	}
	if ev.Kind != types.LoginAccepted || ev.User != "alice" || ev.SourceIP != "203.0.113.7" {
		t.Errorf("event = %+v", ev)
	}
}

func TestClassify_AcceptedPublickey(t *testing.T) {
	line := "Accepted publickey for deploy from 203.0.113.9 port 2200 ssh2: ED25519 SHA256:abc"
	ev, ok := Classify(line, time.Now())
	if !ok {
		t.Fatal("expected a match for accepted publickey line")
	}
	if ev.Kind != types.LoginAccepted || ev.User != "deploy" || ev.SourceIP != "203.0.113.9" {
		t.Errorf("event = %+v", ev)
	}
}

func TestClassify_NoMatch(t *testing.T) {
	lines := []string{
		"",
		"Nov 11 03:12:45 host sshd[1234]: Connection closed by 10.0.0.5 port 52211",
		"pam_unix(sshd:session): session opened for user root",
		"Failed password for root from not-an-ip port 22 ssh2",
	}
	for _, line := range lines {
		if _, ok := Classify(line, time.Now()); ok {
			t.Errorf("Classify(%q) matched, want no match", line)
		}
	}
}

func TestClassify_FailedBeforeAccepted(t *testing.T) {
	// A line containing both phrases must take the failed path first.
	line := "Failed password for bob from 10.1.1.1 then Accepted password for bob from 10.1.1.1"
	ev, ok := Classify(line, time.Now())
	if !ok || ev.Kind != types.LoginFailed {
		t.Errorf("event = %+v, ok = %v; want LoginFailed", ev, ok)
	}
}
