package peer

import (
	"go.uber.org/zap"

	"github.com/lzarth/trisp2p/internal/board"
	"github.com/lzarth/trisp2p/internal/rpcapi"
	"github.com/lzarth/trisp2p/internal/transport"
)

// endGame is the atomic teardown of spec.md §4.4.4: the peer forgets its
// current opponent (remembering it as lastOpponentID for matchmaking's
// avoidance rule) and resets everything a fresh session needs.
func (p *Peer) endGame() {
	p.mu.Lock()
	prevOpponent := p.opponentID
	p.inGame = false
	p.hasToken = false
	p.opponent = nil
	p.opponentID = ""
	if prevOpponent != "" {
		p.lastOpponentID = prevOpponent
	}
	p.sessionID = ""
	p.mu.Unlock()

	p.board.Reset()
	p.rematch.reset()
	p.log.Info("game ended", zap.String("previous_opponent", prevOpponent))
}

// finishNoRematch notifies the opponent (best-effort) and tears down
// locally, mirroring PeerImpl.java's "opponent.noRematch(); noRematch();"
// pair in handleGameEnd.
func (p *Peer) finishNoRematch(opponent transport.Handle) {
	if opponent != nil {
		if err := opponent.Call("Peer.NoRematch", &rpcapi.None{}, &rpcapi.None{}); err != nil {
			p.log.Debug("noRematch: opponent already unreachable", zap.Error(err))
		}
	}
	p.ui.Notify("Opponent refused rematch, or no agreement was reached.")
	p.endGame()
	p.askStayInQueueAndMaybeShutdown()
}

// startRematchBothSides is the coordinator's branch when both sides want
// to play again: the peer who was O starts the next game, per spec.md
// §4.4.3. The opponent is instructed remotely; this side applies the
// mirror assignment directly, exactly the way PeerImpl.java's
// handleGameEnd calls startRematch on itself without going through RMI.
func (p *Peer) startRematchBothSides(opponent transport.Handle, opponentID string, mySymbol board.Symbol) {
	iStartNew := mySymbol == board.O
	newMySymbol := board.X
	if mySymbol == board.X {
		newMySymbol = board.O
	}
	oppSymbol := board.X
	if newMySymbol == board.X {
		oppSymbol = board.O
	}

	err := opponent.Call("Peer.StartRematch", &rpcapi.StartRematchArgs{
		IStartWithToken: !iStartNew,
		NewSymbol:       oppSymbol,
	}, &rpcapi.None{})
	if err != nil {
		p.log.Warn("rematch: opponent unreachable starting new game", zap.String("opponent", opponentID), zap.Error(err))
		p.endGame()
		return
	}

	if err := p.StartRematch(&rpcapi.StartRematchArgs{
		IStartWithToken: iStartNew,
		NewSymbol:       newMySymbol,
	}, &rpcapi.None{}); err != nil {
		p.log.Warn("rematch: local restart failed", zap.Error(err))
		p.endGame()
	}
}

// askStayInQueueAndMaybeShutdown implements spec.md §4.4.3's
// noRematch-triggered prompt: stay in the pool, or opt out and shut down
// cleanly.
func (p *Peer) askStayInQueueAndMaybeShutdown() {
	stay := p.ui.PromptStayInQueue()

	p.mu.Lock()
	p.lookingForMatches = stay
	p.mu.Unlock()

	if stay {
		p.ui.Notify("Staying in automatic matchmaking.")
		return
	}

	p.ui.Notify("Leaving the matchmaking pool.")
	go p.Shutdown()
}
