package models

import (
	"database/sql"
	"time"
)

// QueueStatus is the lifecycle of a matchmaking queue entry.
type QueueStatus string

const (
	QueueWaiting   QueueStatus = "waiting"
	QueueMatched   QueueStatus = "matched"
	QueueCancelled QueueStatus = "cancelled"
)

// SessionStatus is the lifecycle of a game session. Statuses advance
// monotonically: pending_moves < pending_tx < finished, with timeout and
// cancelled reachable as terminal states from any non-terminal one.
type SessionStatus string

const (
	SessionPendingMoves SessionStatus = "pending_moves"
	SessionPendingTx    SessionStatus = "pending_tx"
	SessionFinished     SessionStatus = "finished"
	SessionTimeout      SessionStatus = "timeout"
	SessionCancelled    SessionStatus = "cancelled"
)

// Rank places a session status in the ordering lattice. Terminal states share
// the top rank; IsTerminal distinguishes them when ranks are equal.
func (s SessionStatus) Rank() int {
	switch s {
	case SessionPendingMoves:
		return 0
	case SessionPendingTx:
		return 1
	case SessionFinished, SessionTimeout, SessionCancelled:
		return 2
	}
	return -1
}

// IsTerminal reports whether the status can never be left again.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionFinished, SessionTimeout, SessionCancelled:
		return true
	}
	return false
}

// Move is a rock-paper-scissors choice.
type Move string

const (
	MoveRock     Move = "rock"
	MovePaper    Move = "paper"
	MoveScissors Move = "scissors"
)

// ParseMove validates a client-supplied move string.
func ParseMove(s string) (Move, bool) {
	switch Move(s) {
	case MoveRock, MovePaper, MoveScissors:
		return Move(s), true
	}
	return "", false
}

// Beats reports whether m wins against other by standard precedence:
// rock beats scissors, scissors beats paper, paper beats rock.
func (m Move) Beats(other Move) bool {
	switch m {
	case MoveRock:
		return other == MoveScissors
	case MoveScissors:
		return other == MovePaper
	case MovePaper:
		return other == MoveRock
	}
	return false
}

// Code returns the on-chain encoding of the move (rock=1, paper=2, scissors=3).
func (m Move) Code() uint8 {
	switch m {
	case MoveRock:
		return 1
	case MovePaper:
		return 2
	case MoveScissors:
		return 3
	}
	return 0
}

// MoveFromCode is the inverse of Move.Code.
func MoveFromCode(c uint8) (Move, bool) {
	switch c {
	case 1:
		return MoveRock, true
	case 2:
		return MovePaper, true
	case 3:
		return MoveScissors, true
	}
	return "", false
}

// Winner returns 1 or 2 for a decisive pair of moves, or 0 on a tie.
func Winner(m1, m2 Move) int {
	if m1 == m2 {
		return 0
	}
	if m1.Beats(m2) {
		return 1
	}
	return 2
}

// QueueEntry is a player's pending request to be matched at one bet tier.
type QueueEntry struct {
	ID        string         `db:"id" json:"id"`
	PlayerID  int64          `db:"player_id" json:"player_id"`
	BetTier   int            `db:"bet_tier" json:"bet_tier"`
	Status    QueueStatus    `db:"status" json:"status"`
	SessionID sql.NullString `db:"session_id" json:"session_id,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
	ExpiresAt time.Time      `db:"expires_at" json:"expires_at"`
}

// GameSession is a matched pair of players plus their move and settlement
// state for a single round.
type GameSession struct {
	ID               string         `db:"id" json:"id"`
	Player1ID        int64          `db:"player1_id" json:"player1_id"`
	Player2ID        int64          `db:"player2_id" json:"player2_id"`
	BetTier          int            `db:"bet_tier" json:"bet_tier"`
	Status           SessionStatus  `db:"status" json:"status"`
	Player1Move      sql.NullString `db:"player1_move" json:"player1_move,omitempty"`
	Player2Move      sql.NullString `db:"player2_move" json:"player2_move,omitempty"`
	Player1Signature sql.NullString `db:"player1_signature" json:"player1_signature,omitempty"`
	Player2Signature sql.NullString `db:"player2_signature" json:"player2_signature,omitempty"`
	ChainGameID      string         `db:"chain_game_id" json:"chain_game_id"`
	WinnerID         sql.NullInt64  `db:"winner_id" json:"winner_id,omitempty"`
	FeeSnapshot      sql.NullString `db:"fee_snapshot" json:"fee_snapshot,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
	ExpiresAt        time.Time      `db:"expires_at" json:"expires_at"`
	ResolvedAt       sql.NullTime   `db:"resolved_at" json:"resolved_at,omitempty"`
}

// PlayerSlot returns 1 or 2 for a session participant, 0 for a stranger.
func (g *GameSession) PlayerSlot(playerID int64) int {
	switch playerID {
	case g.Player1ID:
		return 1
	case g.Player2ID:
		return 2
	}
	return 0
}
