package peer

import (
	"go.uber.org/zap"

	"github.com/lzarth/trisp2p/internal/board"
	"github.com/lzarth/trisp2p/internal/rpcapi"
)

// runTurn is the local half of spec.md §4.4.2's token discipline: while
// holding the token, prompt until a valid move, apply it, notify the
// opponent, then either hand off to end-of-game handling or pass the
// token on. Ported from PeerImpl.java's playTurnLoop.
func (p *Peer) runTurn() {
	defer p.wg.Done()

	p.mu.Lock()
	inGame, hasToken, mySymbol, opponentID := p.inGame, p.hasToken, p.mySymbol, p.opponentID
	p.mu.Unlock()
	if !inGame || !hasToken {
		return
	}

	p.ui.RenderStatus(p.id, mySymbol, hasToken, opponentID, p.board)
	move := p.ui.PromptMove(p.board.IsValid)

	if move.Quit {
		p.handleQuit()
		return
	}

	p.mu.Lock()
	// A receiveToken/endGame race may have landed between the prompt
	// returning and this re-check; if so, this attempted move is a no-op.
	if !p.inGame || !p.hasToken {
		p.mu.Unlock()
		return
	}
	mySymbol = p.mySymbol
	opponent := p.opponent
	p.mu.Unlock()

	p.board.Apply(move.Row, move.Col, mySymbol)
	p.ui.RenderStatus(p.id, mySymbol, true, opponentID, p.board)
	result := p.board.Check()

	err := opponent.Call("Peer.UpdateMove", &rpcapi.UpdateMoveArgs{
		Row: move.Row, Col: move.Col, Symbol: mySymbol, Result: result,
	}, &rpcapi.None{})
	if err != nil {
		p.log.Warn("updateMove failed", zap.String("opponent", opponentID), zap.Error(err))
		p.ui.Notify("Opponent unreachable, terminating match.")
		p.endGame()
		return
	}

	if result != board.Empty {
		p.announceResultAndHandleEnd(result)
		return
	}

	// updateMove succeeded before receiveToken is sent, per spec.md §5's
	// ordering guarantee: the opponent must see the move before it is
	// obligated to move.
	p.mu.Lock()
	p.hasToken = false
	p.mu.Unlock()

	if err := opponent.Call("Peer.ReceiveToken", &rpcapi.None{}, &rpcapi.None{}); err != nil {
		p.log.Warn("receiveToken failed", zap.String("opponent", opponentID), zap.Error(err))
		p.ui.Notify("Opponent unreachable, terminating match.")
		p.endGame()
	}
}

// handleQuit mirrors PeerImpl.java's quit branch: tell the opponent
// best-effort, then treat self as having received noRematch.
func (p *Peer) handleQuit() {
	p.mu.Lock()
	opponent := p.opponent
	p.mu.Unlock()

	p.ui.Notify("Abandoning game.")
	if opponent != nil {
		if err := opponent.Call("Peer.NoRematch", &rpcapi.None{}, &rpcapi.None{}); err != nil {
			p.log.Debug("quit: opponent already unreachable", zap.Error(err))
		}
	}
	_ = p.NoRematch(&rpcapi.None{}, &rpcapi.None{})
}
