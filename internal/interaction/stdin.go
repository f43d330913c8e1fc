package interaction

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lzarth/trisp2p/internal/board"
)

// StdinAdapter is the literal textual console contract of spec.md §6,
// ported from original_source/PeerImpl.java's playTurnLoop,
// promptLocalRematch and askIfStayInQueue.
type StdinAdapter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewStdin wires r/w as the adapter's console.
func NewStdin(r io.Reader, w io.Writer) *StdinAdapter {
	return &StdinAdapter{in: bufio.NewReader(r), out: w}
}

func (a *StdinAdapter) RenderStatus(selfID string, symbol board.Symbol, hasToken bool, opponentID string, b *board.Board) {
	fmt.Fprintf(a.out, "=== %s | symbol %c | token %v ===\n", selfID, symbol, hasToken)
	if opponentID != "" {
		fmt.Fprintf(a.out, "Opponent: %s\n", opponentID)
	}
	fmt.Fprintln(a.out, b.Render())
}

func (a *StdinAdapter) PromptMove(isValid func(row, col int) bool) Move {
	for {
		fmt.Fprint(a.out, "Enter move (row col) or 'quit': ")
		line, err := a.in.ReadString('\n')
		if err != nil && line == "" {
			return Move{Quit: true}
		}
		line = strings.TrimSpace(line)

		if strings.EqualFold(line, "quit") {
			return Move{Quit: true}
		}

		parts := strings.Fields(line)
		if len(parts) != 2 {
			fmt.Fprintln(a.out, "Invalid format. Enter two numbers separated by a space.")
			continue
		}

		r, err1 := strconv.Atoi(parts[0])
		c, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			fmt.Fprintln(a.out, "Non-numeric input. Try again.")
			continue
		}
		r--
		c--

		if !isValid(r, c) {
			fmt.Fprintln(a.out, "Invalid move. Cell occupied or out of range. Try again.")
			continue
		}
		return Move{Row: r, Col: c}
	}
}

func (a *StdinAdapter) PromptRematch() bool {
	fmt.Fprint(a.out, "Play another game? (s/n): ")
	return a.readYesNo()
}

func (a *StdinAdapter) PromptStayInQueue() bool {
	fmt.Fprint(a.out, "Keep looking for a new opponent automatically? (s/n): ")
	return a.readYesNo()
}

func (a *StdinAdapter) readYesNo() bool {
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return strings.HasPrefix(line, "s")
}

func (a *StdinAdapter) Notify(message string) {
	fmt.Fprintln(a.out, message)
}

func (a *StdinAdapter) Close() {}
