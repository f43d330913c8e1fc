package interaction

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lzarth/trisp2p/internal/board"
)

func newBoardForTest() *board.Board {
	return board.New()
}

func TestPromptMoveValid(t *testing.T) {
	a := NewStdin(strings.NewReader("1 1\n"), &bytes.Buffer{})
	m := a.PromptMove(func(row, col int) bool { return true })
	if m.Quit || m.Row != 0 || m.Col != 0 {
		t.Fatalf("PromptMove = %+v, want {Row:0 Col:0}", m)
	}
}

func TestPromptMoveQuit(t *testing.T) {
	a := NewStdin(strings.NewReader("quit\n"), &bytes.Buffer{})
	m := a.PromptMove(func(row, col int) bool { return true })
	if !m.Quit {
		t.Fatal("expected Quit=true")
	}
}

func TestPromptMoveReprompsOnInvalidThenAccepts(t *testing.T) {
	calls := 0
	isValid := func(row, col int) bool {
		calls++
		return calls > 1 // reject the first attempt, accept the second
	}
	a := NewStdin(strings.NewReader("1 1\n2 2\n"), &bytes.Buffer{})
	m := a.PromptMove(isValid)
	if m.Quit || m.Row != 1 || m.Col != 1 {
		t.Fatalf("PromptMove = %+v, want the second attempt (Row:1 Col:1)", m)
	}
}

func TestPromptMoveReprompsOnBadFormat(t *testing.T) {
	a := NewStdin(strings.NewReader("notanumber\n1 1\n"), &bytes.Buffer{})
	m := a.PromptMove(func(row, col int) bool { return true })
	if m.Quit || m.Row != 0 || m.Col != 0 {
		t.Fatalf("PromptMove = %+v, want (Row:0 Col:0) after reprompt", m)
	}
}

func TestPromptRematchAcceptsLeadingS(t *testing.T) {
	cases := map[string]bool{"s\n": true, "S\n": true, "si\n": true, "n\n": false, "no\n": false, "\n": false}
	for input, want := range cases {
		a := NewStdin(strings.NewReader(input), &bytes.Buffer{})
		if got := a.PromptRematch(); got != want {
			t.Errorf("PromptRematch(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestPromptStayInQueue(t *testing.T) {
	a := NewStdin(strings.NewReader("s\n"), &bytes.Buffer{})
	if !a.PromptStayInQueue() {
		t.Fatal("expected true for 's'")
	}
}

func TestRenderStatusWritesBoard(t *testing.T) {
	var buf bytes.Buffer
	a := NewStdin(strings.NewReader(""), &buf)
	bd := newBoardForTest()
	a.RenderStatus("1.1.1.1:5000", 'X', true, "1.1.1.1:5001", bd)
	out := buf.String()
	if !strings.Contains(out, "1.1.1.1:5000") || !strings.Contains(out, "token true") {
		t.Fatalf("RenderStatus output missing expected fields: %q", out)
	}
}
