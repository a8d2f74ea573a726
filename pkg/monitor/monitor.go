// Package monitor wires the log tailer, classifier, attempt tracker, and the
// notification pipeline into the main processing loop.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/telunas/sshwatch/internal/classify"
	"github.com/telunas/sshwatch/internal/tracker"
	"github.com/telunas/sshwatch/internal/types"
)

// Prometheus metrics (registered once).
var (
	linesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sshwatch_lines_read_total",
			Help: "Total log lines read from the auth log",
		},
	)
	loginEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sshwatch_login_events_total",
			Help: "Total classified login events",
		},
		[]string{"kind"},
	)
	alertsFired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sshwatch_bruteforce_alerts_total",
			Help: "Total brute-force alerts that crossed the threshold",
		},
	)
	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sshwatch_notifications_total",
			Help: "Total outbound notifications by delivery result",
		},
		[]string{"result"},
	)
	trackedIPs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sshwatch_tracked_ips",
			Help: "Number of source IPs currently held by the attempt tracker",
		},
	)
)

func init() {
	prometheus.MustRegister(linesRead)
	prometheus.MustRegister(loginEvents)
	prometheus.MustRegister(alertsFired)
	prometheus.MustRegister(notifications)
	prometheus.MustRegister(trackedIPs)
}

// witaZone renders notification timestamps the way the operator reads them.
var witaZone = time.FixedZone("WITA", 8*60*60)

// LineSource produces a continuous sequence of raw log lines.
type LineSource interface {
	Run(ctx context.Context)
	Lines() <-chan string
}

// Enricher produces a displayable security summary for a prompt. It must not
// fail: degraded backends return fallback text instead.
type Enricher interface {
	Analyze(ctx context.Context, prompt string, mode types.PromptMode) string
}

// Notifier delivers one message, best-effort.
type Notifier interface {
	Send(ctx context.Context, message string) bool
}

// Config holds monitor tunables.
type Config struct {
	WindowMinutes     int
	ThresholdAttempts int
	NotifyOnSuccess   bool
	SuccessCooldown   time.Duration
	SweepInterval     time.Duration
}

// Monitor is the main processing loop: one line at a time, synchronously
// classified, tracked, and on a qualifying event enriched and notified.
type Monitor struct {
	cfg      Config
	log      *logrus.Logger
	source   LineSource
	tracker  *tracker.Tracker
	enricher Enricher
	notifier Notifier

	now func() time.Time

	limiterMu       sync.Mutex
	successLimiters map[string]*successLimiter

	startedAt     time.Time
	statLines     int64
	statAlerts    int64
	statDelivered int64
	statFailed    int64

	wg sync.WaitGroup
}

type successLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// New creates a Monitor. The tracker window derives from WindowMinutes.
func New(cfg Config, source LineSource, enricher Enricher, notifier Notifier, log *logrus.Logger) *Monitor {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Monitor{
		cfg:             cfg,
		log:             log,
		source:          source,
		tracker:         tracker.New(time.Duration(cfg.WindowMinutes) * time.Minute),
		enricher:        enricher,
		notifier:        notifier,
		now:             time.Now,
		successLimiters: make(map[string]*successLimiter),
		startedAt:       time.Now(),
	}
}

// Run starts the line source and processes lines until ctx is cancelled or
// the source closes its channel.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.WithFields(logrus.Fields{
		"window_minutes": m.cfg.WindowMinutes,
		"threshold":      m.cfg.ThresholdAttempts,
	}).Info("Starting SSH login monitor")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.source.Run(ctx)
	}()
	defer m.wg.Wait()

	sweep := time.NewTicker(m.cfg.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-m.source.Lines():
			if !ok {
				return nil
			}
			m.handleLine(ctx, line)
		case <-sweep.C:
			now := m.now()
			if evicted := m.tracker.Sweep(now); evicted > 0 {
				m.log.WithField("evicted", evicted).Debug("Evicted idle source IPs")
			}
			m.pruneSuccessLimiters(now)
			trackedIPs.Set(float64(m.tracker.TrackedIPs()))
		}
	}
}

func (m *Monitor) handleLine(ctx context.Context, line string) {
	linesRead.Inc()
	atomic.AddInt64(&m.statLines, 1)

	ev, ok := classify.Classify(line, m.now())
	if !ok {
		// Most auth-log lines are not login attempts.
		return
	}
	loginEvents.WithLabelValues(ev.Kind.String()).Inc()

	switch ev.Kind {
	case types.LoginFailed:
		m.handleFailed(ctx, ev)
	case types.LoginAccepted:
		m.handleAccepted(ctx, ev)
	}
}

func (m *Monitor) handleFailed(ctx context.Context, ev types.LoginEvent) {
	count := m.tracker.OnFailed(ev.SourceIP, ev.ObservedAt)
	m.log.WithFields(logrus.Fields{
		"ip":    ev.SourceIP,
		"user":  ev.User,
		"count": count,
	}).Info("Failed login")

	if count < m.cfg.ThresholdAttempts {
		return
	}
	alertsFired.Inc()
	atomic.AddInt64(&m.statAlerts, 1)

	waktu := formatWITA(ev.ObservedAt)
	req := types.NotificationRequest{
		Summary: fmt.Sprintf(
			"🚨 Percobaan login SSH mencurigakan\nIP: %s\nUser: %s\nJumlah percobaan: %d\nWaktu: %s",
			ev.SourceIP, ev.User, count, waktu),
		AIPrompt: fmt.Sprintf(
			"Analisis keamanan singkat untuk login gagal dari IP %s, user %s, %d kali dalam %d menit.",
			ev.SourceIP, ev.User, count, m.cfg.WindowMinutes),
		PromptMode: types.PromptShort,
	}
	m.deliver(ctx, req)

	// A fresh window restarts counting, bounding alerts to one per burst.
	m.tracker.Reset(ev.SourceIP)
}

func (m *Monitor) handleAccepted(ctx context.Context, ev types.LoginEvent) {
	m.log.WithFields(logrus.Fields{
		"ip":   ev.SourceIP,
		"user": ev.User,
	}).Info("Successful login")

	if !m.cfg.NotifyOnSuccess {
		return
	}
	if !m.allowSuccess(ev.User+"@"+ev.SourceIP, ev.ObservedAt) {
		m.log.WithFields(logrus.Fields{
			"ip":   ev.SourceIP,
			"user": ev.User,
		}).Debug("Success notification suppressed by cooldown")
		return
	}

	waktu := formatWITA(ev.ObservedAt)
	req := types.NotificationRequest{
		Summary: fmt.Sprintf(
			"ℹ️ Login sukses\nUser: %s\nIP: %s\nWaktu: %s",
			ev.User, ev.SourceIP, waktu),
		AIPrompt: fmt.Sprintf(
			"Login SSH berhasil.\nUser: %s\nIP: %s\nWaktu: %s\n\nBuat analisis keamanan singkat dan rekomendasi jika diperlukan.",
			ev.User, ev.SourceIP, waktu),
		PromptMode: types.PromptFull,
	}
	m.deliver(ctx, req)
}

// deliver enriches the request and sends the combined message. Enrichment
// never fails; delivery failure is counted and dropped.
func (m *Monitor) deliver(ctx context.Context, req types.NotificationRequest) {
	ai := m.enricher.Analyze(ctx, req.AIPrompt, req.PromptMode)
	message := req.Summary + "\n\n🤖 Analisis AI:\n" + ai

	if m.notifier.Send(ctx, message) {
		notifications.WithLabelValues("delivered").Inc()
		atomic.AddInt64(&m.statDelivered, 1)
	} else {
		notifications.WithLabelValues("failed").Inc()
		atomic.AddInt64(&m.statFailed, 1)
	}
}

// allowSuccess applies the per-user@IP success cooldown. A zero cooldown
// notifies on every success.
func (m *Monitor) allowSuccess(key string, at time.Time) bool {
	if m.cfg.SuccessCooldown <= 0 {
		return true
	}
	m.limiterMu.Lock()
	defer m.limiterMu.Unlock()
	sl, ok := m.successLimiters[key]
	if !ok {
		sl = &successLimiter{lim: rate.NewLimiter(rate.Every(m.cfg.SuccessCooldown), 1)}
		m.successLimiters[key] = sl
	}
	sl.lastSeen = at
	return sl.lim.Allow()
}

// pruneSuccessLimiters drops limiter entries idle for longer than the
// cooldown; a dropped key would be allowed again anyway.
func (m *Monitor) pruneSuccessLimiters(now time.Time) {
	if m.cfg.SuccessCooldown <= 0 {
		return
	}
	m.limiterMu.Lock()
	defer m.limiterMu.Unlock()
	for key, sl := range m.successLimiters {
		if now.Sub(sl.lastSeen) > m.cfg.SuccessCooldown {
			delete(m.successLimiters, key)
		}
	}
}

// Stats is a point-in-time snapshot for the status API.
type Stats struct {
	Uptime               string `json:"uptime"`
	TrackedIPs           int    `json:"tracked_ips"`
	LinesRead            int64  `json:"lines_read"`
	AlertsFired          int64  `json:"alerts_fired"`
	NotificationsSent    int64  `json:"notifications_sent"`
	NotificationsDropped int64  `json:"notifications_dropped"`
}

// Snapshot returns current monitor statistics.
func (m *Monitor) Snapshot() Stats {
	return Stats{
		Uptime:               time.Since(m.startedAt).Round(time.Second).String(),
		TrackedIPs:           m.tracker.TrackedIPs(),
		LinesRead:            atomic.LoadInt64(&m.statLines),
		AlertsFired:          atomic.LoadInt64(&m.statAlerts),
		NotificationsSent:    atomic.LoadInt64(&m.statDelivered),
		NotificationsDropped: atomic.LoadInt64(&m.statFailed),
	}
}

// TrackedIPs exposes the tracker size for health reporting.
func (m *Monitor) TrackedIPs() int {
	return m.tracker.TrackedIPs()
}

func formatWITA(t time.Time) string {
	return t.In(witaZone).Format("02 January 2006, 15:04:05 WITA")
}
