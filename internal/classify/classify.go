// Package classify turns raw auth-log lines into typed login events.
//
// Classification is stateless: two fixed patterns are applied in order and
// the first match wins. Lines matching neither pattern are not login-relevant
// and yield no event.
package classify

import (
	"regexp"
	"time"

	"github.com/telunas/sshwatch/internal/types"
)

var (
	failedRe   = regexp.MustCompile(`Failed password for (?:invalid user )?(\S+) from (\d+\.\d+\.\d+\.\d+)`)
	acceptedRe = regexp.MustCompile(`Accepted (?:password|publickey) for (\S+) from (\d+\.\d+\.\d+\.\d+)`)
)

// Classify parses one log line. It returns the login event and true on a
// match, or a zero event and false for lines that are not login attempts.
// now is stamped on the event as its observation time.
func Classify(line string, now time.Time) (types.LoginEvent, bool) {
	if m := failedRe.FindStringSubmatch(line); m != nil {
		return types.LoginEvent{
			Kind:       types.LoginFailed,
			User:       m[1],
			SourceIP:   m[2],
			ObservedAt: now.UTC(),
		}, true
	}
	if m := acceptedRe.FindStringSubmatch(line); m != nil {
		return types.LoginEvent{
			Kind:       types.LoginAccepted,
			User:       m[1],
			SourceIP:   m[2],
			ObservedAt: now.UTC(),
		}, true
	}
	return types.LoginEvent{}, false
}
