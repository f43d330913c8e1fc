package status

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lzarth/trisp2p/internal/board"
)

// ─── Matchmaking ────────────────────────────────────────────────────────────

var matchesFormed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "trisp2p",
	Name:      "matches_formed_total",
	Help:      "Total matches formed by this peer's matchmaking loop.",
})

// ─── Games ──────────────────────────────────────────────────────────────────

var gamesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "trisp2p",
	Name:      "games_finished_total",
	Help:      "Total games finished by this peer, by outcome.",
}, []string{"outcome"})

// ─── Rematch ────────────────────────────────────────────────────────────────

var rematchesAccepted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "trisp2p",
	Name:      "rematches_accepted_total",
	Help:      "Total rematches both sides agreed to.",
})

var rematchesDeclined = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "trisp2p",
	Name:      "rematches_declined_total",
	Help:      "Total rematches that did not reach agreement.",
})

// ─── Liveness ───────────────────────────────────────────────────────────────

var livenessFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "trisp2p",
	Name:      "liveness_failures_total",
	Help:      "Total opponent-unreachable liveness failures observed.",
})

// ─── Membership ─────────────────────────────────────────────────────────────

var discoveredPeers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "trisp2p",
	Name:      "discovered_peers",
	Help:      "Current count of peers known to the discovery membership view.",
})

// Metrics implements peer.Metrics with Prometheus counters/gauges, registered
// against the default registry on package init via promauto, the same
// pattern Tutu-Engine-tutuengine/internal/infra/metrics uses.
type Metrics struct{}

// New returns a Metrics sink. There is only ever one meaningful instance per
// process since the underlying series are process-global.
func New() *Metrics { return &Metrics{} }

func (*Metrics) MatchFormed() { matchesFormed.Inc() }

func (*Metrics) GameFinished(outcome board.Symbol) {
	label := "draw"
	switch outcome {
	case board.X:
		label = "x"
	case board.O:
		label = "o"
	}
	gamesFinished.WithLabelValues(label).Inc()
}

func (*Metrics) RematchAccepted() { rematchesAccepted.Inc() }
func (*Metrics) RematchDeclined() { rematchesDeclined.Inc() }
func (*Metrics) LivenessFailure() { livenessFailures.Inc() }

// ObserveDiscoveredPeers sets the discovered-peer gauge; the status server
// calls this right before serving /status so the gauge reflects the same
// snapshot the JSON body reports.
func ObserveDiscoveredPeers(n int) { discoveredPeers.Set(float64(n)) }
