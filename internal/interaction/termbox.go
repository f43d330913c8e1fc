package interaction

import (
	"fmt"

	"github.com/lzarth/trisp2p/internal/board"
	"github.com/mattn/go-runewidth"
	"github.com/nsf/termbox-go"
)

// TermboxAdapter renders the 3x3 grid as a termbox-go cell grid and reads
// arrow-key/Enter navigation for move entry, the graphical counterpart to
// the teacher's own termbox-based client loop (cliente/main.go).
type TermboxAdapter struct {
	cursorRow, cursorCol int
}

// NewTermbox initializes the termbox screen. Callers must call Close when
// done, typically via a defer right after a successful New.
func NewTermbox() (*TermboxAdapter, error) {
	if err := termbox.Init(); err != nil {
		return nil, fmt.Errorf("interaction: termbox init: %w", err)
	}
	termbox.SetInputMode(termbox.InputEsc)
	return &TermboxAdapter{}, nil
}

func (a *TermboxAdapter) Close() {
	termbox.Close()
}

const (
	cellWidth  = 4
	cellHeight = 2
	originX    = 2
	originY    = 4
)

func (a *TermboxAdapter) drawBoard(b *board.Board, showCursor bool) {
	cells := b.Snapshot()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			fg := termbox.ColorWhite
			if showCursor && r == a.cursorRow && c == a.cursorCol {
				fg |= termbox.AttrReverse
			}
			ch := rune(cells[r][c])
			if ch == ' ' {
				ch = '.'
			}
			termbox.SetCell(originX+c*cellWidth, originY+r*cellHeight, ch, fg, termbox.ColorDefault)
		}
	}
}

func (a *TermboxAdapter) drawLine(y int, s string) {
	x := originX
	for _, r := range s {
		termbox.SetCell(x, y, r, termbox.ColorDefault, termbox.ColorDefault)
		x += runewidth.RuneWidth(r)
	}
}

func (a *TermboxAdapter) RenderStatus(selfID string, symbol board.Symbol, hasToken bool, opponentID string, b *board.Board) {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	a.drawLine(0, fmt.Sprintf("%s | symbol %c | token %v", selfID, symbol, hasToken))
	if opponentID != "" {
		a.drawLine(1, "opponent: "+opponentID)
	}
	a.drawLine(2, "arrows to move, enter to place, esc to quit")
	a.drawBoard(b, false)
	termbox.Flush()
}

// PromptMove drives an arrow-key cursor over the grid. Enter attempts to
// place at the current cursor cell (re-prompting on an invalid cell
// without leaving the loop); Esc requests quit.
func (a *TermboxAdapter) PromptMove(isValid func(row, col int) bool) Move {
	for {
		termbox.Flush()
		ev := termbox.PollEvent()
		if ev.Type != termbox.EventKey {
			continue
		}
		switch ev.Key {
		case termbox.KeyArrowUp:
			a.cursorRow = (a.cursorRow + 2) % 3
		case termbox.KeyArrowDown:
			a.cursorRow = (a.cursorRow + 1) % 3
		case termbox.KeyArrowLeft:
			a.cursorCol = (a.cursorCol + 2) % 3
		case termbox.KeyArrowRight:
			a.cursorCol = (a.cursorCol + 1) % 3
		case termbox.KeyEnter:
			if isValid(a.cursorRow, a.cursorCol) {
				return Move{Row: a.cursorRow, Col: a.cursorCol}
			}
		case termbox.KeyEsc:
			return Move{Quit: true}
		default:
			if ev.Ch == 'q' || ev.Ch == 'Q' {
				return Move{Quit: true}
			}
		}
	}
}

func (a *TermboxAdapter) promptYesNo(prompt string) bool {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	a.drawLine(0, prompt+" (s/n)")
	termbox.Flush()
	for {
		ev := termbox.PollEvent()
		if ev.Type != termbox.EventKey {
			continue
		}
		switch ev.Ch {
		case 's', 'S':
			return true
		case 'n', 'N':
			return false
		}
	}
}

func (a *TermboxAdapter) PromptRematch() bool {
	return a.promptYesNo("play another game?")
}

func (a *TermboxAdapter) PromptStayInQueue() bool {
	return a.promptYesNo("keep looking for a new opponent?")
}

func (a *TermboxAdapter) Notify(message string) {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	a.drawLine(0, message)
	a.drawLine(1, "press any key to continue")
	termbox.Flush()
	termbox.PollEvent()
}
