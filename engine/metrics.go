package engine

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tarungka/wirecore/stream"
)

// Metrics holds the prometheus collectors shared by the actors of a process.
type Metrics struct {
	polls    *prometheus.CounterVec
	barriers *prometheus.CounterVec
	failures *prometheus.CounterVec
	epoch    *prometheus.GaugeVec
}

// NewMetrics registers the actor collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		polls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wirecore",
			Subsystem: "actor",
			Name:      "polls_total",
			Help:      "Number of times an actor polled its consumer.",
		}, []string{"actor_id"}),
		barriers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wirecore",
			Subsystem: "actor",
			Name:      "barriers_total",
			Help:      "Number of barriers that passed an actor.",
		}, []string{"actor_id"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wirecore",
			Subsystem: "actor",
			Name:      "failures_total",
			Help:      "Number of actor runs that ended with an error.",
		}, []string{"actor_id"}),
		epoch: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wirecore",
			Subsystem: "actor",
			Name:      "epoch",
			Help:      "Epoch of the last barrier that passed an actor, -1 before the first.",
		}, []string{"actor_id"}),
	}
}

func (m *Metrics) observePoll(actorID uint32) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(label(actorID)).Inc()
}

func (m *Metrics) observeBarrier(actorID uint32, epoch stream.Epoch) {
	if m == nil {
		return
	}
	m.barriers.WithLabelValues(label(actorID)).Inc()
	m.epoch.WithLabelValues(label(actorID)).Set(float64(epoch))
}

func (m *Metrics) observeStart(actorID uint32) {
	if m == nil {
		return
	}
	m.epoch.WithLabelValues(label(actorID)).Set(float64(stream.NoEpoch))
}

func (m *Metrics) observeFailure(actorID uint32) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(label(actorID)).Inc()
}

func label(actorID uint32) string {
	return strconv.FormatUint(uint64(actorID), 10)
}
