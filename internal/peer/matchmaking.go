package peer

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lzarth/trisp2p/internal/board"
	"github.com/lzarth/trisp2p/internal/rpcapi"
)

// matchmakingLoop fires once after MatchmakingInitialDelay, then every
// MatchmakingPeriod, per spec.md §4.4.1.
func (p *Peer) matchmakingLoop() {
	defer p.wg.Done()

	timer := time.NewTimer(p.timers.MatchmakingInitialDelay)
	defer timer.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-timer.C:
			p.tryMatchmaking()
			timer.Reset(p.timers.MatchmakingPeriod)
		}
	}
}

// tryMatchmaking implements the eight steps of spec.md §4.4.1.
func (p *Peer) tryMatchmaking() {
	p.mu.Lock()
	inGame, looking, lastOpponent := p.inGame, p.lookingForMatches, p.lastOpponentID
	p.mu.Unlock()
	if inGame || !looking || p.discovery == nil {
		return
	}

	candidates := p.discovery.Peers()
	sort.Strings(candidates)
	if len(candidates) == 0 {
		return
	}

	var free []string
	for _, id := range candidates {
		h, err := p.transport.Resolve(id)
		if err != nil {
			continue // RPC failures silently exclude the candidate
		}
		var reply rpcapi.PingReply
		if err := h.Call("Peer.Ping", &rpcapi.None{}, &reply); err != nil {
			continue
		}
		if reply.Free {
			free = append(free, id)
		}
	}
	if len(free) == 0 {
		return
	}

	if lastOpponent != "" {
		if idx := indexOf(free, lastOpponent); idx >= 0 {
			if len(free) == 1 {
				// the only candidate is the last opponent: wait for another
				return
			}
			free = append(free[:idx], free[idx+1:]...)
		}
	}

	target := ""
	for _, id := range free {
		if id > p.id {
			target = id
			break
		}
	}
	if target == "" {
		target = free[0]
	}

	h, err := p.transport.Resolve(target)
	if err != nil {
		return
	}
	var proposeReply rpcapi.ProposeMatchReply
	if err := h.Call("Peer.ProposeMatch", &rpcapi.ProposeMatchArgs{ProposerID: p.id}, &proposeReply); err != nil {
		return
	}
	if !proposeReply.Accepted {
		return
	}

	p.mu.Lock()
	if p.inGame || !p.lookingForMatches {
		p.mu.Unlock()
		return
	}
	iStart := p.id < target
	mySymbol := board.O
	if iStart {
		mySymbol = board.X
	}
	p.opponent = h
	p.opponentID = target
	p.inGame = true
	p.mySymbol = mySymbol
	p.hasToken = iStart
	p.sessionID = uuid.NewString()
	hasToken := p.hasToken
	p.mu.Unlock()

	oppSymbol := board.O
	if mySymbol == board.O {
		oppSymbol = board.X
	}

	if err := h.Call("Peer.ConfirmMatch", &rpcapi.ConfirmMatchArgs{
		OpponentID:      p.id,
		IStartWithToken: !iStart,
		MySymbol:        oppSymbol,
	}, &rpcapi.None{}); err != nil {
		p.log.Warn("confirmMatch failed, aborting match", zap.String("target", target), zap.Error(err))
		p.endGame()
		return
	}

	p.metrics.MatchFormed()
	p.log.Info("match started",
		zap.String("opponent", target),
		zap.String("symbol", string(mySymbol)),
		zap.Bool("has_token", hasToken))
	p.ui.Notify(fmt.Sprintf("Match started with %s", target))

	if hasToken {
		p.wg.Add(1)
		go p.runTurn()
	}
}

func indexOf(ss []string, v string) int {
	for i, s := range ss {
		if s == v {
			return i
		}
	}
	return -1
}
