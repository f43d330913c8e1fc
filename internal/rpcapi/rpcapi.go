// Package rpcapi defines the wire-level argument and reply types for the
// ten operations peers expose to one another, mirroring
// shared/types.go's role in the teacher: the single source of truth for
// the RPC contract, imported by both the calling and the serving side.
package rpcapi

import "github.com/lzarth/trisp2p/internal/board"

// None is used as the args/reply for operations that carry no data of
// their own (net/rpc still requires a pointer on both sides of the call).
type None struct{}

// PingReply carries the result of Ping: true iff the peer is looking for
// matches and not currently in a game.
type PingReply struct {
	Free bool
}

// GetIDReply echoes the callee's own identity.
type GetIDReply struct {
	ID string
}

// IsInGameReply reports whether the callee currently has an active session.
type IsInGameReply struct {
	InGame bool
}

// ProposeMatchArgs is sent by the proposer during matchmaking step 5.
type ProposeMatchArgs struct {
	ProposerID string
}

// ProposeMatchReply carries the acceptor's decision.
type ProposeMatchReply struct {
	Accepted bool
}

// ConfirmMatchArgs completes the handshake begun by ProposeMatch.
type ConfirmMatchArgs struct {
	OpponentID      string
	IStartWithToken bool
	MySymbol        board.Symbol
}

// UpdateMoveArgs notifies the opponent of a move just played, plus the
// resulting outcome (Empty if play continues).
type UpdateMoveArgs struct {
	Row    int
	Col    int
	Symbol board.Symbol
	Result board.Symbol
}

// GetRematchDecisionReply carries the local user's yes/no answer. The call
// blocks on the serving side until that answer exists.
type GetRematchDecisionReply struct {
	WantsRematch bool
}

// StartRematchArgs begins the next game of an existing session.
type StartRematchArgs struct {
	IStartWithToken bool
	NewSymbol       board.Symbol
}
