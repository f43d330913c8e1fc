// Package peer implements the Peer core of spec.md §4.4: per-peer
// matchmaking, the token-passing game state machine, two-peer rematch
// consensus, and opponent liveness monitoring. It is ported from
// original_source/PeerImpl.java, generalized from Java RMI/
// ScheduledExecutorService onto Go's net/rpc-backed transport.Transport
// and goroutines/time.Ticker.
package peer

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/lzarth/trisp2p/internal/board"
	"github.com/lzarth/trisp2p/internal/interaction"
	"github.com/lzarth/trisp2p/internal/rpcapi"
	"github.com/lzarth/trisp2p/internal/transport"
)

// Timers bundles the Peer core's own scheduling knobs (spec.md §4.4.1, §4.4.5).
type Timers struct {
	MatchmakingInitialDelay time.Duration
	MatchmakingPeriod       time.Duration
	LivenessPeriod          time.Duration
}

// Metrics is the minimal observability sink the Peer core reports into; it
// is satisfied by internal/status and is a no-op by default so the Peer
// core never depends on the status server being enabled.
type Metrics interface {
	MatchFormed()
	GameFinished(outcome board.Symbol)
	RematchAccepted()
	RematchDeclined()
	LivenessFailure()
}

type noopMetrics struct{}

func (noopMetrics) MatchFormed()                {}
func (noopMetrics) GameFinished(_ board.Symbol) {}
func (noopMetrics) RematchAccepted()            {}
func (noopMetrics) RematchDeclined()            {}
func (noopMetrics) LivenessFailure()            {}

// discoveryView is the narrow membership view the Peer core needs out of
// discovery.Discovery; satisfied by *discovery.Discovery in production and
// by deterministic doubles in package tests.
type discoveryView interface {
	Peers() []string
	Close() error
}

// Peer is a single node in the mesh: simultaneously an RPC server (it
// implements the methods registered via transport.Publish) and an RPC
// client (it invokes the same methods on others).
type Peer struct {
	id        string
	board     *board.Board
	transport transport.Transport
	discovery discoveryView
	ui        interaction.Adapter
	log       *zap.Logger
	metrics   Metrics
	timers    Timers

	mu                sync.Mutex
	inGame            bool
	hasToken          bool
	mySymbol          board.Symbol
	opponent          transport.Handle
	opponentID        string
	lastOpponentID    string
	lookingForMatches bool
	sessionID         string

	rematch *rematchSlot

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// Deps bundles the collaborators a Peer is built from.
type Deps struct {
	ID        string
	Transport transport.Transport
	Discovery discoveryView
	UI        interaction.Adapter
	Log       *zap.Logger
	Metrics   Metrics
	Timers    Timers
}

// New constructs a peer ready to be Published and Started. It does not yet
// run any background loop.
func New(d Deps) *Peer {
	m := d.Metrics
	if m == nil {
		m = noopMetrics{}
	}
	return &Peer{
		id:                d.ID,
		board:             board.New(),
		transport:         d.Transport,
		discovery:         d.Discovery,
		ui:                d.UI,
		log:               d.Log,
		metrics:           m,
		timers:            d.Timers,
		lookingForMatches: true,
		rematch:           newRematchSlot(),
		stop:              make(chan struct{}),
	}
}

// ID returns the peer's own "host:port" identity.
func (p *Peer) ID() string { return p.id }

// Publish exposes this peer's RPC surface under its own id.
func (p *Peer) Publish() error {
	return p.transport.Publish(p.id, p)
}

// Start launches the matchmaking timer and the liveness probe. Both run
// until Shutdown is called.
func (p *Peer) Start() {
	p.wg.Add(2)
	go p.matchmakingLoop()
	go p.livenessLoop()
}

// Shutdown stops all background loops, closes discovery and the
// interaction adapter, and returns any errors encountered while doing so
// aggregated with go.uber.org/multierr.
func (p *Peer) Shutdown() error {
	var err error
	p.stopOnce.Do(func() {
		close(p.stop)
		p.rematch.cancel()
		p.wg.Wait()
		err = closeAll(p.discovery, p.transport)
		p.ui.Close()
	})
	return err
}

// LookingForMatches reports the current opt-in/opt-out state.
func (p *Peer) LookingForMatches() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lookingForMatches
}

// Snapshot is a read-only view of session state, used by the status
// server and by tests; it never mutates and is taken under the same lock
// as every other state transition.
type Snapshot struct {
	ID                string
	InGame            bool
	HasToken          bool
	Symbol            board.Symbol
	OpponentID        string
	LastOpponentID    string
	LookingForMatches bool
	DiscoveredPeers   int
}

func (p *Peer) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	if p.discovery != nil {
		n = len(p.discovery.Peers())
	}
	return Snapshot{
		ID:                p.id,
		InGame:            p.inGame,
		HasToken:          p.hasToken,
		Symbol:            p.mySymbol,
		OpponentID:        p.opponentID,
		LastOpponentID:    p.lastOpponentID,
		LookingForMatches: p.lookingForMatches,
		DiscoveredPeers:   n,
	}
}

// ---------------------------------------------------------------------
// §4.4 exposed remote operations
// ---------------------------------------------------------------------

func (p *Peer) Ping(_ *rpcapi.None, reply *rpcapi.PingReply) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	reply.Free = p.lookingForMatches && !p.inGame
	return nil
}

func (p *Peer) GetID(_ *rpcapi.None, reply *rpcapi.GetIDReply) error {
	reply.ID = p.id
	return nil
}

func (p *Peer) IsInGame(_ *rpcapi.None, reply *rpcapi.IsInGameReply) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	reply.InGame = p.inGame
	return nil
}

// ProposeMatch accepts iff we're free, still looking for matches, and the
// proposer's id is lexicographically smaller than ours — the acceptor half
// of spec.md §4.4.1's symmetry breaking.
func (p *Peer) ProposeMatch(args *rpcapi.ProposeMatchArgs, reply *rpcapi.ProposeMatchReply) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inGame || !p.lookingForMatches {
		reply.Accepted = false
		return nil
	}
	if !(args.ProposerID < p.id) {
		reply.Accepted = false
		return nil
	}

	h, err := p.transport.Resolve(args.ProposerID)
	if err != nil {
		p.log.Warn("reject proposal: cannot resolve proposer", zap.String("proposer", args.ProposerID), zap.Error(err))
		reply.Accepted = false
		return nil
	}

	// Tentatively remember the proposer; confirmMatch closes the window by
	// setting inGame. A proposer that never follows up simply leaves us
	// reachable for another proposer's ProposeMatch.
	p.opponent = h
	p.opponentID = args.ProposerID
	reply.Accepted = true
	return nil
}

// ConfirmMatch completes a handshake this peer accepted via ProposeMatch.
func (p *Peer) ConfirmMatch(args *rpcapi.ConfirmMatchArgs, _ *rpcapi.None) error {
	p.mu.Lock()
	if p.inGame || !p.lookingForMatches {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	// Resolve the opponent's handle without holding the session lock
	// across the dial; re-check state before committing.
	h, err := p.transport.Resolve(args.OpponentID)
	if err != nil {
		p.log.Warn("confirmMatch: opponent unreachable, aborting", zap.String("opponent", args.OpponentID), zap.Error(err))
		return nil
	}

	p.mu.Lock()
	if p.inGame || !p.lookingForMatches {
		p.mu.Unlock()
		return nil
	}
	p.inGame = true
	p.mySymbol = args.MySymbol
	p.hasToken = args.IStartWithToken
	p.opponentID = args.OpponentID
	p.opponent = h
	p.sessionID = uuid.NewString()
	hasToken := p.hasToken
	p.mu.Unlock()

	p.log.Info("match confirmed",
		zap.String("opponent", args.OpponentID),
		zap.String("symbol", string(args.MySymbol)),
		zap.Bool("has_token", hasToken),
		zap.String("session", p.sessionID))
	p.ui.Notify(fmt.Sprintf("Match started with %s", args.OpponentID))

	if hasToken {
		p.wg.Add(1)
		go p.runTurn()
	}
	return nil
}

// ReceiveToken grants this peer the right to move next.
func (p *Peer) ReceiveToken(_ *rpcapi.None, _ *rpcapi.None) error {
	p.mu.Lock()
	if !p.inGame {
		p.mu.Unlock()
		return nil
	}
	p.hasToken = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.runTurn()
	return nil
}

// UpdateMove applies the opponent's move locally and, if it ended the
// game, schedules the end-of-game/rematch handling.
func (p *Peer) UpdateMove(args *rpcapi.UpdateMoveArgs, _ *rpcapi.None) error {
	p.mu.Lock()
	if !p.inGame {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	p.board.ApplyIfValid(args.Row, args.Col, args.Symbol)
	p.ui.Notify(fmt.Sprintf("Opponent move: %d %d", args.Row+1, args.Col+1))

	if args.Result != board.Empty {
		result := args.Result
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.announceResultAndHandleEnd(result)
		}()
	}
	return nil
}

// GetRematchDecision blocks until the local user's rematch answer exists
// for the current session.
func (p *Peer) GetRematchDecision(_ *rpcapi.None, reply *rpcapi.GetRematchDecisionReply) error {
	reply.WantsRematch = p.rematch.wait()
	return nil
}

// StartRematch begins the next game of the same session as instructed by
// the coordinator.
func (p *Peer) StartRematch(args *rpcapi.StartRematchArgs, _ *rpcapi.None) error {
	p.mu.Lock()
	p.mySymbol = args.NewSymbol
	p.hasToken = args.IStartWithToken
	p.inGame = true
	p.board.Reset()
	p.rematch.reset()
	opponentID := p.opponentID
	hasToken := p.hasToken
	p.mu.Unlock()

	p.log.Info("rematch started",
		zap.String("opponent", opponentID),
		zap.String("symbol", string(args.NewSymbol)),
		zap.Bool("has_token", hasToken))

	if hasToken {
		p.wg.Add(1)
		go p.runTurn()
	}
	return nil
}

// NoRematch tells this peer the session is definitively over.
func (p *Peer) NoRematch(_ *rpcapi.None, _ *rpcapi.None) error {
	p.ui.Notify("Opponent refused rematch.")
	p.endGame()
	p.askStayInQueueAndMaybeShutdown()
	return nil
}

// ---------------------------------------------------------------------
// internal helpers shared by loops below live in matchmaking.go,
// turn.go, rematch.go and liveness.go.
// ---------------------------------------------------------------------

func closeAll(closers ...interface{ Close() error }) error {
	var err error
	for _, c := range closers {
		if c == nil {
			continue
		}
		err = multierr.Append(err, c.Close())
	}
	return err
}
