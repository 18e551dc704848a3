// Package queue pairs waiting players who share a bet tier into game
// sessions, exactly once. Pairing claims candidate rows with
// FOR UPDATE SKIP LOCKED and flips them matched in the same transaction, so
// no entry can be taken by two concurrent pairing attempts.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/chainduel/backend/internal/apperr"
	"github.com/chainduel/backend/internal/bets"
	"github.com/chainduel/backend/internal/chain"
	"github.com/chainduel/backend/internal/config"
	"github.com/chainduel/backend/internal/events"
	"github.com/chainduel/backend/internal/models"
)

const queueColumns = "id, player_id, bet_tier, status, session_id, created_at, updated_at, expires_at"

const sessionColumns = "id, player1_id, player2_id, bet_tier, status, " +
	"player1_move, player2_move, player1_signature, player2_signature, " +
	"chain_game_id, winner_id, fee_snapshot, created_at, updated_at, expires_at, resolved_at"

// Service exposes the queue operations consumed by the API layer and the
// matcher worker.
type Service struct {
	db  *sqlx.DB
	rdb *redis.Client
	cfg *config.Config
}

func NewService(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) *Service {
	return &Service{db: db, rdb: rdb, cfg: cfg}
}

// PollResult is the read model returned to polling clients: the entry plus,
// once matched, its session.
type PollResult struct {
	Entry   *models.QueueEntry  `json:"entry"`
	Session *models.GameSession `json:"session,omitempty"`
}

// Enqueue registers playerID at the given tier. Any prior waiting entry for
// the player is superseded first, then an immediate pairing attempt runs; the
// returned session is non-nil when the caller was matched on the spot.
func (s *Service) Enqueue(ctx context.Context, playerID int64, tier int) (*models.QueueEntry, *models.GameSession, error) {
	if !bets.Valid(tier) {
		return nil, nil, apperr.Validationf("invalid bet tier %d", tier)
	}
	if playerID <= 0 {
		return nil, nil, apperr.Validationf("invalid player id %d", playerID)
	}

	var liveSessions int
	err := s.db.GetContext(ctx, &liveSessions,
		`SELECT COUNT(*) FROM game_sessions
		 WHERE (player1_id = $1 OR player2_id = $1)
		   AND status IN ('pending_moves', 'pending_tx')`, playerID)
	if err != nil {
		return nil, nil, apperr.Unavailable("check live sessions", err)
	}
	if liveSessions > 0 {
		return nil, nil, apperr.Conflictf("player %d already has a live session", playerID)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, apperr.Unavailable("begin enqueue tx", err)
	}
	defer tx.Rollback()

	// Supersede: at most one waiting entry per player.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM matchmaking_queue WHERE player_id = $1 AND status = 'waiting'`, playerID); err != nil {
		return nil, nil, apperr.Unavailable("supersede queue entry", err)
	}

	expiresAt := time.Now().Add(time.Duration(s.cfg.QueueTTLMinutes) * time.Minute)
	var entry models.QueueEntry
	err = tx.GetContext(ctx, &entry,
		`INSERT INTO matchmaking_queue (player_id, bet_tier, status, created_at, updated_at, expires_at)
		 VALUES ($1, $2, 'waiting', now(), now(), $3)
		 RETURNING `+queueColumns, playerID, tier, expiresAt)
	if err != nil {
		return nil, nil, apperr.Unavailable("insert queue entry", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, apperr.Unavailable("commit enqueue", err)
	}

	events.PublishQueue(ctx, s.rdb, events.QueueEvent{Type: events.QueueWaiting, Entry: &entry})

	// Immediate attempt; the worker covers stragglers.
	s.tryMatchTier(ctx, tier)

	fresh, err := s.getEntry(ctx, entry.ID)
	if err != nil {
		// Refresh is best-effort; the insert already succeeded.
		return &entry, nil, nil
	}
	if fresh.Status == models.QueueMatched && fresh.SessionID.Valid {
		session, err := s.getSession(ctx, fresh.SessionID.String)
		if err == nil {
			return fresh, session, nil
		}
	}
	return fresh, nil, nil
}

// Leave removes the player's waiting entry. Zero rows means someone else
// already advanced or reaped it, which is not an error.
func (s *Service) Leave(ctx context.Context, playerID int64) error {
	var id string
	err := s.db.GetContext(ctx, &id,
		`DELETE FROM matchmaking_queue
		 WHERE player_id = $1 AND status = 'waiting'
		 RETURNING id`, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return apperr.Unavailable("leave queue", err)
	}
	events.PublishQueue(ctx, s.rdb, events.QueueEvent{Type: events.QueueLeft, Entry: &models.QueueEntry{
		ID:       id,
		PlayerID: playerID,
		Status:   models.QueueCancelled,
	}})
	return nil
}

// Poll returns the entry and, once matched, the session.
func (s *Service) Poll(ctx context.Context, queueID string) (*PollResult, error) {
	if _, err := uuid.Parse(queueID); err != nil {
		return nil, apperr.Validationf("invalid queue id %q", queueID)
	}
	entry, err := s.getEntry(ctx, queueID)
	if err != nil {
		return nil, err
	}
	res := &PollResult{Entry: entry}
	if entry.SessionID.Valid {
		session, err := s.getSession(ctx, entry.SessionID.String)
		if err != nil {
			return nil, err
		}
		res.Session = session
	}
	return res, nil
}

// PlayerOf resolves the owner of a queue entry; used by the push layer for
// the best-effort leave on disconnect.
func (s *Service) PlayerOf(ctx context.Context, queueID string) (int64, models.QueueStatus, error) {
	entry, err := s.getEntry(ctx, queueID)
	if err != nil {
		return 0, "", err
	}
	return entry.PlayerID, entry.Status, nil
}

func (s *Service) getEntry(ctx context.Context, id string) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := s.db.GetContext(ctx, &entry,
		`SELECT `+queueColumns+` FROM matchmaking_queue WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("queue entry %s not found", id)
	}
	if err != nil {
		return nil, apperr.Unavailable("fetch queue entry", err)
	}
	return &entry, nil
}

func (s *Service) getSession(ctx context.Context, id string) (*models.GameSession, error) {
	var session models.GameSession
	err := s.db.GetContext(ctx, &session,
		`SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("session %s not found", id)
	}
	if err != nil {
		return nil, apperr.Unavailable("fetch session", err)
	}
	return &session, nil
}

// tryMatchTier claims the two oldest waiting entries at a tier and creates
// their session in one transaction. Returns true when a pair was made.
func (s *Service) tryMatchTier(ctx context.Context, tier int) bool {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		log.Printf("[MATCHER] Failed to begin transaction: %v", err)
		return false
	}
	defer tx.Rollback()

	var candidates []models.QueueEntry
	err = tx.SelectContext(ctx, &candidates,
		`SELECT `+queueColumns+`
		 FROM matchmaking_queue
		 WHERE bet_tier = $1
		   AND status = 'waiting'
		   AND expires_at > now()
		 ORDER BY created_at
		 FOR UPDATE SKIP LOCKED
		 LIMIT 2`, tier)
	if err != nil {
		log.Printf("[MATCHER] Failed to query waiting entries: %v", err)
		return false
	}
	if len(candidates) < 2 {
		return false
	}
	if candidates[0].PlayerID == candidates[1].PlayerID {
		// The partial unique index makes this unreachable, but never
		// pair a player against themselves.
		return false
	}

	sessionID := uuid.New().String()
	gameID, err := chain.GameID(sessionID)
	if err != nil {
		log.Printf("[MATCHER] Failed to derive game id for session %s: %v", sessionID, err)
		return false
	}
	expiresAt := time.Now().Add(time.Duration(s.cfg.SessionTTLMinutes) * time.Minute)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO game_sessions (id, player1_id, player2_id, bet_tier, status, chain_game_id, created_at, updated_at, expires_at)
		 VALUES ($1, $2, $3, $4, 'pending_moves', $5, now(), now(), $6)`,
		sessionID, candidates[0].PlayerID, candidates[1].PlayerID, tier, gameID.Hex(), expiresAt); err != nil {
		log.Printf("[MATCHER] Failed to create session: %v", err)
		return false
	}

	// Both claims must still be waiting; anything else means a racer won.
	res, err := tx.ExecContext(ctx,
		`UPDATE matchmaking_queue
		 SET status = 'matched', session_id = $1, updated_at = now()
		 WHERE id IN ($2, $3) AND status = 'waiting'`,
		sessionID, candidates[0].ID, candidates[1].ID)
	if err != nil {
		log.Printf("[MATCHER] Failed to update queue entries: %v", err)
		return false
	}
	if n, _ := res.RowsAffected(); n != 2 {
		log.Printf("[MATCHER] Claim lost for session %s (rows=%d), rolling back", sessionID, n)
		return false
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[MATCHER] Failed to commit match: %v", err)
		return false
	}

	log.Printf("[MATCHER] Match created: session=%s tier=%d players=[%d,%d]",
		sessionID, tier, candidates[0].PlayerID, candidates[1].PlayerID)

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		log.Printf("[MATCHER] Failed to reload session %s: %v", sessionID, err)
		return true
	}
	for i := range candidates {
		entry := candidates[i]
		entry.Status = models.QueueMatched
		entry.SessionID = sql.NullString{String: sessionID, Valid: true}
		events.PublishQueue(ctx, s.rdb, events.QueueEvent{Type: events.QueueMatched, Entry: &entry})
	}
	events.PublishSession(ctx, s.rdb, events.SessionEvent{Type: events.SessionCreated, Session: session})
	return true
}
