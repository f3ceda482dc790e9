package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the tracker's counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	clicks        *prometheus.CounterVec
	registrations prometheus.Counter
	geoLookups    *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
	adminAuth     *prometheus.CounterVec
}

// NewMetrics registers the tracker counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		clicks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_clicks_recorded_total",
			Help: "Click events stored, by consent state.",
		}, []string{"consent"}),
		registrations: f.NewCounter(prometheus.CounterOpts{
			Name: "tracker_registrations_total",
			Help: "Registrations stored.",
		}),
		geoLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_geo_lookups_total",
			Help: "IP geolocation lookups, by outcome.",
		}, []string{"result"}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_rate_limited_total",
			Help: "Requests rejected by a rate limiter, by scope.",
		}, []string{"scope"}),
		adminAuth: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_admin_auth_total",
			Help: "Admin gate decisions, by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) ClickRecorded(consent bool) {
	if m == nil {
		return
	}
	label := "false"
	if consent {
		label = "true"
	}
	m.clicks.WithLabelValues(label).Inc()
}

func (m *Metrics) RegistrationStored() {
	if m == nil {
		return
	}
	m.registrations.Inc()
}

// GeoLookup records one lookup outcome: hit, miss, skipped.
func (m *Metrics) GeoLookup(result string) {
	if m == nil {
		return
	}
	m.geoLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(scope).Inc()
}

func (m *Metrics) AdminAuth(result string) {
	if m == nil {
		return
	}
	m.adminAuth.WithLabelValues(result).Inc()
}
