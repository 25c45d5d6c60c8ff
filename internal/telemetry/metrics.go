package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
	"github.com/LeadstarlingX/Aim-Trainer/internal/event"
)

const namespace = "aim_trainer"

// Metrics turns engine events into prometheus collectors.
type Metrics struct {
	sessionsStarted prometheus.Counter
	sessionsEnded   *prometheus.CounterVec
	clicks          *prometheus.CounterVec
	expirations     prometheus.Counter
	reaction        prometheus.Histogram
	score           *prometheus.HistogramVec
	liveTargets     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Sessions that entered PLAYING from IDLE.",
		}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Sessions that reached GAMEOVER, by difficulty.",
		}, []string{"difficulty"}),
		clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_total",
			Help:      "Accepted clicks by outcome: hit, harm or miss.",
		}, []string{"outcome"}),
		expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "targets_expired_total",
			Help:      "Targets removed because their lifespan ran out.",
		}),
		reaction: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reaction_milliseconds",
			Help:      "Time from spawn to click of bonus targets.",
			Buckets:   prometheus.LinearBuckets(100, 100, 25),
		}),
		score: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_score",
			Help:      "Final score of finished sessions, by difficulty.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
		}, []string{"difficulty"}),
		liveTargets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_targets",
			Help:      "Targets currently on the surface.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.sessionsStarted, m.sessionsEnded, m.clicks, m.expirations, m.reaction, m.score, m.liveTargets,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return m, nil
}

// Subscribe starts recording events published on eb. The returned func stops it.
func (m *Metrics) Subscribe(eb *event.Bus) (unsubscribe func()) {
	unsubs := []func(){
		event.On(eb, func(_ context.Context, e domain.EventStateChanged) error {
			switch {
			case e.From == domain.StateIdle && e.To == domain.StatePlaying:
				m.sessionsStarted.Inc()
				m.liveTargets.Set(0)
			case e.To == domain.StateGameOver:
				m.liveTargets.Set(0)
			}
			return nil
		}),
		event.On(eb, func(_ context.Context, _ domain.EventTargetSpawned) error {
			m.liveTargets.Inc()
			return nil
		}),
		event.On(eb, func(_ context.Context, e domain.EventTargetRemoved) error {
			m.liveTargets.Dec()
			switch {
			case e.Reason == domain.RemovalExpired:
				m.expirations.Inc()
			case e.Target.Kind == domain.KindPenalty:
				m.clicks.WithLabelValues("harm").Inc()
			default:
				m.clicks.WithLabelValues("hit").Inc()
				m.reaction.Observe(float64(e.ReactionMs))
			}
			return nil
		}),
		event.On(eb, func(_ context.Context, _ domain.EventBackgroundClicked) error {
			m.clicks.WithLabelValues("miss").Inc()
			return nil
		}),
		event.On(eb, func(_ context.Context, e domain.EventSessionEnded) error {
			d := e.Result.Difficulty.String()
			m.sessionsEnded.WithLabelValues(d).Inc()
			m.score.WithLabelValues(d).Observe(float64(e.Result.Score))
			return nil
		}),
	}

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
