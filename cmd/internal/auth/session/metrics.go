package session

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors for the session subsystem.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	issued      prometheus.Counter
	evicted     prometheus.Counter
	rotated     prometheus.Counter
	revoked     *prometheus.CounterVec
	validations *prometheus.CounterVec
	swept       *prometheus.CounterVec

	sessions *prometheus.GaugeVec
	users    prometheus.Gauge
	devices  prometheus.Gauge
	flagged  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bakery_sessions_issued_total",
			Help: "Refresh sessions created.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bakery_sessions_evicted_total",
			Help: "Sessions revoked to keep a user within capacity.",
		}),
		rotated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bakery_sessions_rotated_total",
			Help: "Sessions replaced by a refresh.",
		}),
		revoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bakery_sessions_revoked_total",
			Help: "Sessions moved to inactive, by scope.",
		}, []string{"scope"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bakery_session_validations_total",
			Help: "Session validations, by result.",
		}, []string{"result"}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bakery_sessions_swept_total",
			Help: "Session rows deleted by cleanup jobs.",
		}, []string{"kind"}),
		sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bakery_sessions",
			Help: "Session population at the last report, by state.",
		}, []string{"state"}),
		users: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bakery_session_users",
			Help: "Distinct usernames holding at least one session at the last report.",
		}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bakery_session_devices",
			Help: "Distinct devices at the last report.",
		}),
		flagged: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bakery_session_suspicious_devices",
			Help: "Device/IP pairs shared by more than one user at the last report.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.issued, m.evicted, m.rotated, m.revoked, m.validations, m.swept,
			m.sessions, m.users, m.devices, m.flagged,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) incIssued() {
	if m != nil {
		m.issued.Inc()
	}
}

func (m *Metrics) incEvicted() {
	if m != nil {
		m.evicted.Inc()
		m.revoked.WithLabelValues("eviction").Inc()
	}
}

func (m *Metrics) incRotated() {
	if m != nil {
		m.rotated.Inc()
	}
}

func (m *Metrics) addRevoked(scope string, n int) {
	if m != nil && n > 0 {
		m.revoked.WithLabelValues(scope).Add(float64(n))
	}
}

func (m *Metrics) incValidation(result string) {
	if m != nil {
		m.validations.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) addSwept(kind string, n int) {
	if m != nil && n > 0 {
		m.swept.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveStats publishes a snapshot and the number of flagged devices.
func (m *Metrics) ObserveStats(st Stats, suspicious int) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues("total").Set(float64(st.Total))
	m.sessions.WithLabelValues("active").Set(float64(st.Active))
	m.sessions.WithLabelValues("expired").Set(float64(st.Expired))
	m.sessions.WithLabelValues("revoked").Set(float64(st.Revoked))
	m.sessions.WithLabelValues("expiring_24h").Set(float64(st.ExpiringWithin24h))
	m.users.Set(float64(st.UniqueUsers))
	m.devices.Set(float64(st.UniqueDevices))
	m.flagged.Set(float64(suspicious))
}
