package peer

import (
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lzarth/trisp2p/internal/board"
	"github.com/lzarth/trisp2p/internal/interaction"
	"github.com/lzarth/trisp2p/internal/transport"
)

// ---------------------------------------------------------------------
// test doubles
// ---------------------------------------------------------------------

type fakeDiscovery struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeDiscovery) Peers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ids))
	copy(out, f.ids)
	return out
}

func (f *fakeDiscovery) Close() error { return nil }

func (f *fakeDiscovery) set(ids ...string) {
	f.mu.Lock()
	f.ids = ids
	f.mu.Unlock()
}

// autoUI always plays the first cell isValid reports open, scanning in
// row-major order; deterministic given identical play on both sides. Each
// move waits autoMoveDelay first so that a game lasts long enough for the
// tests' polling (every 10ms) to observe both peers in game.
type autoUI struct {
	mu            sync.Mutex
	notifications []string
	rematch       bool
	stay          bool
}

func (u *autoUI) RenderStatus(string, board.Symbol, bool, string, *board.Board) {}

const autoMoveDelay = 20 * time.Millisecond

func (u *autoUI) PromptMove(isValid func(row, col int) bool) interaction.Move {
	time.Sleep(autoMoveDelay)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if isValid(r, c) {
				return interaction.Move{Row: r, Col: c}
			}
		}
	}
	return interaction.Move{Quit: true}
}

func (u *autoUI) PromptRematch() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.rematch
}

func (u *autoUI) PromptStayInQueue() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stay
}

func (u *autoUI) Notify(msg string) {
	u.mu.Lock()
	u.notifications = append(u.notifications, msg)
	u.mu.Unlock()
}

func (u *autoUI) Close() {}

func (u *autoUI) has(substr string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, n := range u.notifications {
		if strings.Contains(n, substr) {
			return true
		}
	}
	return false
}

// deadHandle simulates an opponent that has become unreachable: every
// Call fails, regardless of method.
type deadHandle struct{ id string }

func (d deadHandle) Call(string, interface{}, interface{}) error {
	return errors.New("simulated unreachable")
}
func (d deadHandle) ID() string { return d.id }

type countingMetrics struct {
	mu               sync.Mutex
	matches          int
	finished         int
	rematchYes       int
	rematchNo        int
	livenessFailures int
}

func (m *countingMetrics) MatchFormed() { m.mu.Lock(); m.matches++; m.mu.Unlock() }
func (m *countingMetrics) GameFinished(board.Symbol) {
	m.mu.Lock()
	m.finished++
	m.mu.Unlock()
}
func (m *countingMetrics) RematchAccepted() { m.mu.Lock(); m.rematchYes++; m.mu.Unlock() }
func (m *countingMetrics) RematchDeclined() { m.mu.Lock(); m.rematchNo++; m.mu.Unlock() }
func (m *countingMetrics) LivenessFailure() {
	m.mu.Lock()
	m.livenessFailures++
	m.mu.Unlock()
}

func mustFreeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func fastTimers() Timers {
	return Timers{
		MatchmakingInitialDelay: 20 * time.Millisecond,
		MatchmakingPeriod:       20 * time.Millisecond,
		LivenessPeriod:          2 * time.Second,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// ---------------------------------------------------------------------
// tests
// ---------------------------------------------------------------------

func TestMatchmakingPairsTwoPeersWithSymmetryBreaking(t *testing.T) {
	tp1, tp2 := transport.New(), transport.New()
	id1, id2 := mustFreeAddr(t), mustFreeAddr(t)

	disc1, disc2 := &fakeDiscovery{}, &fakeDiscovery{}
	disc1.set(id2)
	disc2.set(id1)

	ui1, ui2 := &autoUI{}, &autoUI{}
	m1, m2 := &countingMetrics{}, &countingMetrics{}

	p1 := New(Deps{ID: id1, Transport: tp1, Discovery: disc1, UI: ui1, Log: zap.NewNop(), Metrics: m1, Timers: fastTimers()})
	p2 := New(Deps{ID: id2, Transport: tp2, Discovery: disc2, UI: ui2, Log: zap.NewNop(), Metrics: m2, Timers: fastTimers()})

	if err := p1.Publish(); err != nil {
		t.Fatalf("p1.Publish: %v", err)
	}
	if err := p2.Publish(); err != nil {
		t.Fatalf("p2.Publish: %v", err)
	}
	p1.Start()
	p2.Start()
	defer p1.Shutdown()
	defer p2.Shutdown()

	waitFor(t, 3*time.Second, func() bool {
		return p1.Snapshot().InGame && p2.Snapshot().InGame
	})

	smaller, larger := p1, p2
	if id2 < id1 {
		smaller, larger = p2, p1
	}
	if smaller.Snapshot().Symbol != board.X {
		t.Fatalf("lexicographically smaller id %s should be X, got %s", smaller.ID(), string(smaller.Snapshot().Symbol))
	}
	if larger.Snapshot().Symbol != board.O {
		t.Fatalf("lexicographically larger id %s should be O, got %s", larger.ID(), string(larger.Snapshot().Symbol))
	}

	// the deterministic "first open cell" strategy on both sides converges
	// on an anti-diagonal win for X after seven total moves.
	waitFor(t, 3*time.Second, func() bool {
		return ui1.has("won") || ui1.has("lost") || ui2.has("won") || ui2.has("lost")
	})
	if !((ui1.has("You won!") && ui2.has("You lost.")) || (ui2.has("You won!") && ui1.has("You lost."))) {
		t.Fatalf("expected exactly one winner; ui1=%v ui2=%v", ui1.notifications, ui2.notifications)
	}
	if m1.finished == 0 && m2.finished == 0 {
		t.Fatalf("expected GameFinished to be reported by at least one side")
	}
}

func TestRematchBothYesFlipsSymbols(t *testing.T) {
	tp1, tp2 := transport.New(), transport.New()
	id1, id2 := mustFreeAddr(t), mustFreeAddr(t)

	disc1, disc2 := &fakeDiscovery{}, &fakeDiscovery{}
	disc1.set(id2)
	disc2.set(id1)

	ui1 := &autoUI{rematch: true, stay: true}
	ui2 := &autoUI{rematch: true, stay: true}
	m1, m2 := &countingMetrics{}, &countingMetrics{}

	p1 := New(Deps{ID: id1, Transport: tp1, Discovery: disc1, UI: ui1, Log: zap.NewNop(), Metrics: m1, Timers: fastTimers()})
	p2 := New(Deps{ID: id2, Transport: tp2, Discovery: disc2, UI: ui2, Log: zap.NewNop(), Metrics: m2, Timers: fastTimers()})

	if err := p1.Publish(); err != nil {
		t.Fatalf("p1.Publish: %v", err)
	}
	if err := p2.Publish(); err != nil {
		t.Fatalf("p2.Publish: %v", err)
	}
	p1.Start()
	p2.Start()
	defer p1.Shutdown()
	defer p2.Shutdown()

	waitFor(t, 3*time.Second, func() bool {
		return p1.Snapshot().InGame && p2.Snapshot().InGame
	})
	firstSymbol := p1.Snapshot().Symbol

	waitFor(t, 3*time.Second, func() bool {
		return m1.finished > 0 || m2.finished > 0
	})

	// after the first game resolves and both sides agree to a rematch, a
	// second game starts with the symbols swapped.
	waitFor(t, 3*time.Second, func() bool {
		return p1.Snapshot().InGame && p2.Snapshot().InGame && p1.Snapshot().Symbol != firstSymbol
	})

	if p1.Snapshot().Symbol == p2.Snapshot().Symbol {
		t.Fatalf("rematch should still assign distinct symbols, got %v on both sides", p1.Snapshot().Symbol)
	}
	if m1.rematchYes == 0 && m2.rematchYes == 0 {
		t.Fatalf("expected RematchAccepted to be reported by the coordinator")
	}
}

func TestCheckOpponentLivenessEndsGameOnUnreachableOpponent(t *testing.T) {
	tp := transport.New()
	defer tp.Close()
	id := mustFreeAddr(t)
	metrics := &countingMetrics{}

	p := New(Deps{ID: id, Transport: tp, Discovery: &fakeDiscovery{}, UI: &autoUI{}, Log: zap.NewNop(), Metrics: metrics, Timers: fastTimers()})
	if err := p.Publish(); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	defer p.Shutdown()

	p.mu.Lock()
	p.inGame = true
	p.opponentID = "127.0.0.1:1"
	p.opponent = deadHandle{id: "127.0.0.1:1"}
	p.mu.Unlock()

	p.checkOpponentLiveness()

	if p.Snapshot().InGame {
		t.Fatalf("expected endGame to clear InGame after an unreachable opponent")
	}
	if metrics.livenessFailures != 1 {
		t.Fatalf("LivenessFailure calls = %d, want 1", metrics.livenessFailures)
	}
}

func TestCheckOpponentLivenessNoOpWhenNotInGame(t *testing.T) {
	tp := transport.New()
	defer tp.Close()
	id := mustFreeAddr(t)
	metrics := &countingMetrics{}

	p := New(Deps{ID: id, Transport: tp, Discovery: &fakeDiscovery{}, UI: &autoUI{}, Log: zap.NewNop(), Metrics: metrics, Timers: fastTimers()})
	if err := p.Publish(); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	defer p.Shutdown()

	p.checkOpponentLiveness()

	if metrics.livenessFailures != 0 {
		t.Fatalf("expected no liveness failure when not in a game")
	}
}
