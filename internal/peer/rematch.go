package peer

import (
	"sync"

	"go.uber.org/zap"

	"github.com/lzarth/trisp2p/internal/board"
	"github.com/lzarth/trisp2p/internal/rpcapi"
)

// rematchSlot is the single-shot future of spec.md §5: a nullable boolean
// guarded by a dedicated condition variable. Writers set it and broadcast;
// readers wait while it is unset, re-checking on every wake (handling
// spurious wakeups). cancel() lets Shutdown unblock any waiter with a
// "session cancelled" signal, which spec.md §9 says should read as no/false.
type rematchSlot struct {
	mu        sync.Mutex
	cond      *sync.Cond
	decision  *bool
	cancelled bool
}

func newRematchSlot() *rematchSlot {
	s := &rematchSlot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *rematchSlot) set(v bool) {
	s.mu.Lock()
	s.decision = &v
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *rematchSlot) reset() {
	s.mu.Lock()
	s.decision = nil
	s.cancelled = false
	s.mu.Unlock()
}

func (s *rematchSlot) cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *rematchSlot) wait() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.decision == nil && !s.cancelled {
		s.cond.Wait()
	}
	if s.decision != nil {
		return *s.decision
	}
	return false
}

// announceResultAndHandleEnd prints the local outcome (win/loss/draw) and
// hands off to the rematch consensus, per spec.md §4.4.2/§4.4.3.
func (p *Peer) announceResultAndHandleEnd(result board.Symbol) {
	p.mu.Lock()
	mySymbol := p.mySymbol
	opponentID := p.opponentID
	p.mu.Unlock()

	p.ui.RenderStatus(p.id, mySymbol, false, opponentID, p.board)
	switch {
	case result == board.Draw:
		p.ui.Notify("Draw.")
	case result == mySymbol:
		p.ui.Notify("You won!")
	default:
		p.ui.Notify("You lost.")
	}
	p.metrics.GameFinished(result)

	p.handleGameEnd()
}

// handleGameEnd runs on both peers; only the lexicographically smaller id
// acts as coordinator, per spec.md §4.4.3.
func (p *Peer) handleGameEnd() {
	p.mu.Lock()
	p.hasToken = false
	p.rematch.reset()
	opponentID := p.opponentID
	opponent := p.opponent
	mySymbol := p.mySymbol
	iAmCoordinator := opponentID != "" && p.id < opponentID
	p.mu.Unlock()

	if opponentID == "" {
		p.endGame()
		return
	}

	if !iAmCoordinator {
		// Non-coordinator: collect the local answer and wait passively
		// for the coordinator's startRematch or noRematch call.
		localWants := p.ui.PromptRematch()
		p.rematch.set(localWants)
		return
	}

	localWants := p.ui.PromptRematch()
	p.rematch.set(localWants)
	p.ui.Notify("Waiting for the opponent's rematch decision...")

	var remoteWants rpcapi.GetRematchDecisionReply
	err := opponent.Call("Peer.GetRematchDecision", &rpcapi.None{}, &remoteWants)
	if err != nil {
		p.log.Warn("rematch: opponent unreachable", zap.String("opponent", opponentID), zap.Error(err))
		p.finishNoRematch(opponent)
		return
	}

	if localWants && remoteWants.WantsRematch {
		p.metrics.RematchAccepted()
		p.startRematchBothSides(opponent, opponentID, mySymbol)
		return
	}

	p.metrics.RematchDeclined()
	p.finishNoRematch(opponent)
}
