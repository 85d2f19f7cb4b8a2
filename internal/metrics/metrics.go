package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reveal request outcomes.
const (
	OutcomeGranted = "granted"
	OutcomeDenied  = "denied"
	OutcomeInvalid = "invalid"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	reg prometheus.Registerer

	TrustUpdates         prometheus.Counter
	TrustScores          prometheus.Histogram
	RevealRequests       *prometheus.CounterVec
	MilestonesCelebrated *prometheus.CounterVec
	TrustSignals         *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		TrustUpdates: f.NewCounter(prometheus.CounterOpts{
			Name: "veil_trust_updates_total",
			Help: "Total number of committed trust score updates",
		}),
		TrustScores: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "veil_trust_score",
			Help:    "Trust scores produced by updates",
			Buckets: []float64{0, 20, 40, 60, 80, 100},
		}),
		RevealRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "veil_reveal_requests_total",
			Help: "Reveal percent change requests by outcome",
		}, []string{"outcome"}),
		MilestonesCelebrated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "veil_milestones_celebrated_total",
			Help: "Milestone celebrations by milestone",
		}, []string{"milestone"}),
		TrustSignals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "veil_trust_signals_total",
			Help: "Trust signals consumed from the bus by result",
		}, []string{"result"}),
	}
}

// RegisterGridCache exposes grid cache hit and miss counts read from stats.
func (m *Metrics) RegisterGridCache(stats func() (hits, misses uint64)) {
	if m == nil || stats == nil {
		return
	}
	f := promauto.With(m.reg)
	f.NewCounterFunc(prometheus.CounterOpts{
		Name: "veil_grid_cache_hits_total",
		Help: "Reveal grid cache hits",
	}, func() float64 {
		hits, _ := stats()
		return float64(hits)
	})
	f.NewCounterFunc(prometheus.CounterOpts{
		Name: "veil_grid_cache_misses_total",
		Help: "Reveal grid cache misses",
	}, func() float64 {
		_, misses := stats()
		return float64(misses)
	})
}

func (m *Metrics) ObserveTrustUpdate(score int) {
	if m == nil {
		return
	}
	m.TrustUpdates.Inc()
	m.TrustScores.Observe(float64(score))
}

func (m *Metrics) IncrementRevealRequest(outcome string) {
	if m == nil {
		return
	}
	m.RevealRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementMilestoneCelebrated(milestoneID string) {
	if m == nil {
		return
	}
	m.MilestonesCelebrated.WithLabelValues(milestoneID).Inc()
}

func (m *Metrics) IncrementTrustSignal(result string) {
	if m == nil {
		return
	}
	m.TrustSignals.WithLabelValues(result).Inc()
}
