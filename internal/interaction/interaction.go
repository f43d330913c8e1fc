// Package interaction defines the pluggable console interaction adapter
// spec.md §1 calls out as an external collaborator: prompting for moves,
// the rematch decision, and whether to stay in the matchmaking queue.
package interaction

import "github.com/lzarth/trisp2p/internal/board"

// Move is a syntactically valid, 0-based move request, or a request to
// quit the current game.
type Move struct {
	Row, Col int
	Quit     bool
}

// Adapter is the contract the Peer core depends on for all human I/O.
// Implementations must not block the caller's session lock — the Peer
// core calls these methods from several goroutines (the turn-execution
// goroutine, inbound RPC handlers, the matchmaking and liveness loops),
// never while holding its internal mutex.
type Adapter interface {
	// RenderStatus shows the current board plus the peer's own id,
	// symbol, token possession, and (if any) opponent id.
	RenderStatus(selfID string, symbol board.Symbol, hasToken bool, opponentID string, b *board.Board)

	// PromptMove blocks until the user supplies a syntactically valid
	// move (two 1-based integers) or types "quit". isValid is consulted
	// so the adapter can re-prompt on an occupied/out-of-range cell
	// without involving the Peer core's lock.
	PromptMove(isValid func(row, col int) bool) Move

	// PromptRematch asks "play again? (s/n)" and returns true for any
	// answer starting with 's'/'S'.
	PromptRematch() bool

	// PromptStayInQueue asks whether to keep auto-matchmaking after a
	// game that will not be replayed.
	PromptStayInQueue() bool

	// Notify prints a short, stack-trace-free status line, per spec.md §7.
	Notify(message string)

	// Close releases any adapter-owned resources (e.g. a termbox screen).
	Close()
}
