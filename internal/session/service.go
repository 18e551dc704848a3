// Package session tracks the lifecycle of a matched pair from move
// collection to settlement. Every mutation is a conditional update scoped by
// the row's current status; zero rows affected means another actor already
// advanced the session and is reported as a conflict, never retried blindly.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/chainduel/backend/internal/apperr"
	"github.com/chainduel/backend/internal/config"
	"github.com/chainduel/backend/internal/events"
	"github.com/chainduel/backend/internal/models"
)

const sessionColumns = "id, player1_id, player2_id, bet_tier, status, " +
	"player1_move, player2_move, player1_signature, player2_signature, " +
	"chain_game_id, winner_id, fee_snapshot, created_at, updated_at, expires_at, resolved_at"

type Service struct {
	db  *sqlx.DB
	rdb *redis.Client
	cfg *config.Config
}

func NewService(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) *Service {
	return &Service{db: db, rdb: rdb, cfg: cfg}
}

// Get returns a session by id.
func (s *Service) Get(ctx context.Context, sessionID string) (*models.GameSession, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, apperr.Validationf("invalid session id %q", sessionID)
	}
	return s.fetch(ctx, sessionID)
}

// SubmitMove records a player's move exactly once. The first call stores
// move and signature; a repeat before resolution is a conflict and never
// overwrites — moves are immutable so nobody can adapt after observing
// server-side state. When the opponent's move is already present the session
// advances to pending_tx.
func (s *Service) SubmitMove(ctx context.Context, sessionID string, playerID int64, move, signature string) (*models.GameSession, error) {
	parsed, ok := models.ParseMove(move)
	if !ok {
		return nil, apperr.Validationf("invalid move %q", move)
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, apperr.Validationf("invalid session id %q", sessionID)
	}

	current, err := s.fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	slot := current.PlayerSlot(playerID)
	if slot == 0 {
		return nil, apperr.Validationf("player %d is not part of session %s", playerID, sessionID)
	}
	if current.Status.IsTerminal() {
		return nil, apperr.Conflictf("session %s is already %s", sessionID, current.Status)
	}

	// Write-once: the guard requires the slot to still be empty and the
	// session to still be collecting moves.
	moveCol := fmt.Sprintf("player%d_move", slot)
	sigCol := fmt.Sprintf("player%d_signature", slot)
	res, err := s.db.ExecContext(ctx,
		`UPDATE game_sessions
		 SET `+moveCol+` = $1, `+sigCol+` = $2, updated_at = now()
		 WHERE id = $3 AND status = 'pending_moves' AND `+moveCol+` IS NULL`,
		string(parsed), signature, sessionID)
	if err != nil {
		return nil, apperr.Unavailable("record move", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		fresh, ferr := s.fetch(ctx, sessionID)
		if ferr != nil {
			return nil, ferr
		}
		if moveOf(fresh, slot).Valid {
			return nil, apperr.Conflictf("player %d already submitted a move", playerID)
		}
		return nil, apperr.Conflictf("session %s is already %s", sessionID, fresh.Status)
	}

	// Advance once both moves are present. Zero rows here is fine: either
	// the opponent has not moved yet or their call advanced it first.
	if _, err := s.db.ExecContext(ctx,
		`UPDATE game_sessions
		 SET status = 'pending_tx', updated_at = now()
		 WHERE id = $1 AND status = 'pending_moves'
		   AND player1_move IS NOT NULL AND player2_move IS NOT NULL`,
		sessionID); err != nil {
		return nil, apperr.Unavailable("advance session", err)
	}

	fresh, err := s.fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	evType := events.SessionMove
	if fresh.Status == models.SessionPendingTx {
		evType = events.SessionPendingTx
	}
	events.PublishSession(ctx, s.rdb, events.SessionEvent{Type: evType, Session: fresh})
	return fresh, nil
}

func (s *Service) fetch(ctx context.Context, sessionID string) (*models.GameSession, error) {
	var session models.GameSession
	err := s.db.GetContext(ctx, &session,
		`SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("session %s not found", sessionID)
	}
	if err != nil {
		return nil, apperr.Unavailable("fetch session", err)
	}
	return &session, nil
}

func moveOf(g *models.GameSession, slot int) sql.NullString {
	if slot == 1 {
		return g.Player1Move
	}
	return g.Player2Move
}
