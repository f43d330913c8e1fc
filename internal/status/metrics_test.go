package status

import (
	"testing"

	"github.com/lzarth/trisp2p/internal/board"
)

func TestMetricsIncrementsDoNotPanic(t *testing.T) {
	m := New()
	m.MatchFormed()
	m.GameFinished(board.X)
	m.GameFinished(board.O)
	m.GameFinished(board.Draw)
	m.RematchAccepted()
	m.RematchDeclined()
	m.LivenessFailure()
	ObserveDiscoveredPeers(5)
}
