package services

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

const (
	failedAuthWindow    = 10 * time.Minute
	failedAuthThreshold = 5
	alertCooldown       = time.Hour
	maxAlertHistory     = 100
)

var securityAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "security_alerts_total",
	Help: "Security alerts raised for repeated failed authentication",
})

// SecurityEventMonitor aggregates failed bearer authentications per IP and
// raises an alert when an IP crosses the threshold
type SecurityEventMonitor struct {
	mu         sync.Mutex
	failures   map[string][]time.Time // IP -> failure timestamps inside the window
	alertedIPs map[string]time.Time   // IP -> last alert time
	alerts     []SecurityAlert
	now        func() time.Time
	done       chan struct{}
}

// SecurityAlert represents a triggered security alert
type SecurityAlert struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	Reason    string    `json:"reason"`
	Level     string    `json:"level"` // "WARNING", "CRITICAL"
}

// Monitor is the process wide monitor, nil until InitSecurityMonitor runs
var Monitor *SecurityEventMonitor

// NewSecurityMonitor creates a monitor without the background cleanup
func NewSecurityMonitor() *SecurityEventMonitor {
	return &SecurityEventMonitor{
		failures:   make(map[string][]time.Time),
		alertedIPs: make(map[string]time.Time),
		now:        time.Now,
		done:       make(chan struct{}),
	}
}

// InitSecurityMonitor initializes the global monitor and its cleanup loop
func InitSecurityMonitor() *SecurityEventMonitor {
	Monitor = NewSecurityMonitor()
	go Monitor.cleanupLoop()
	return Monitor
}

// TrackFailedAuth records a rejected bearer token from ip
func (m *SecurityEventMonitor) TrackFailedAuth(ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	windowStart := now.Add(-failedAuthWindow)
	valid := m.failures[ip][:0]
	for _, t := range m.failures[ip] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}
	valid = append(valid, now)
	m.failures[ip] = valid

	if len(valid) >= failedAuthThreshold {
		m.triggerAlertLocked(ip, "Repeated failed authentication detected", now)
	}
}

// triggerAlertLocked records an alert at most once per cooldown per IP
func (m *SecurityEventMonitor) triggerAlertLocked(ip, reason string, now time.Time) {
	if last, ok := m.alertedIPs[ip]; ok && now.Sub(last) < alertCooldown {
		return
	}
	m.alertedIPs[ip] = now

	alert := SecurityAlert{Timestamp: now, IP: ip, Reason: reason, Level: "CRITICAL"}
	// Newest first
	m.alerts = append([]SecurityAlert{alert}, m.alerts...)
	if len(m.alerts) > maxAlertHistory {
		m.alerts = m.alerts[:maxAlertHistory]
	}

	securityAlertsTotal.Inc()
	log.Warn().Str("ip", ip).Str("reason", reason).Msg("[SECURITY ALERT]")
}

// GetRecentAlerts returns a copy of recent alerts, newest first
func (m *SecurityEventMonitor) GetRecentAlerts() []SecurityAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	alerts := make([]SecurityAlert, len(m.alerts))
	copy(alerts, m.alerts)
	return alerts
}

// Stop ends the cleanup loop
func (m *SecurityEventMonitor) Stop() {
	select {
	case <-m.done:
	default:
		close(m.done)
	}
}

func (m *SecurityEventMonitor) cleanupLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.done:
			return
		}
	}
}

// cleanup removes IPs whose failures and alerts have aged out
func (m *SecurityEventMonitor) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for ip, attempts := range m.failures {
		if len(attempts) == 0 || now.Sub(attempts[len(attempts)-1]) > failedAuthWindow {
			delete(m.failures, ip)
		}
	}
	for ip, last := range m.alertedIPs {
		if now.Sub(last) > alertCooldown {
			delete(m.alertedIPs, ip)
		}
	}
}
