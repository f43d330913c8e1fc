package peer

import (
	"time"

	"go.uber.org/zap"

	"github.com/lzarth/trisp2p/internal/rpcapi"
)

// livenessLoop probes the current opponent every LivenessPeriod while
// in a game, per spec.md §4.4.5.
func (p *Peer) livenessLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.timers.LivenessPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.checkOpponentLiveness()
		}
	}
}

func (p *Peer) checkOpponentLiveness() {
	p.mu.Lock()
	inGame := p.inGame
	opponent := p.opponent
	opponentID := p.opponentID
	p.mu.Unlock()
	if !inGame || opponent == nil {
		return
	}

	var reply rpcapi.PingReply
	if err := opponent.Call("Peer.Ping", &rpcapi.None{}, &reply); err != nil {
		p.metrics.LivenessFailure()
		p.log.Warn("opponent unreachable, ending match", zap.String("opponent", opponentID), zap.Error(err))
		p.ui.Notify("Opponent unreachable, terminating match.")
		p.endGame()
	}
}
