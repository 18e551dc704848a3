// Package sweeper periodically reclaims expired queue entries and sessions.
// Every write is guarded by a still-in-a-non-terminal-state condition, so
// overlapping runs never double-cascade: the second run affects zero rows.
package sweeper

import (
	"context"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/chainduel/backend/internal/config"
	"github.com/chainduel/backend/internal/events"
	"github.com/chainduel/backend/internal/models"
)

const sessionColumns = "id, player1_id, player2_id, bet_tier, status, " +
	"player1_move, player2_move, player1_signature, player2_signature, " +
	"chain_game_id, winner_id, fee_snapshot, created_at, updated_at, expires_at, resolved_at"

type Sweeper struct {
	db    *sqlx.DB
	rdb   *redis.Client
	cfg   *config.Config
	clock clockwork.Clock
}

func New(db *sqlx.DB, rdb *redis.Client, cfg *config.Config, clock clockwork.Clock) *Sweeper {
	return &Sweeper{db: db, rdb: rdb, cfg: cfg, clock: clock}
}

// Start runs the sweep loop until ctx is cancelled. A failed sweep simply
// defers to the next tick.
func (s *Sweeper) Start(ctx context.Context) {
	interval := time.Duration(s.cfg.SweeperPollSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[SWEEPER] Starting timeout sweeper (every %v)", interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[SWEEPER] Worker stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Printf("[SWEEPER] Sweep failed: %v", err)
			}
		}
	}
}

// Sweep performs one reclamation pass: purge expired waiting queue entries,
// time out expired non-terminal sessions, and cascade cancellation onto any
// queue entry still referencing a timed-out session.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.clock.Now()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM matchmaking_queue WHERE status = 'waiting' AND expires_at < $1`, now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("[SWEEPER] Purged %d expired queue entries", n)
	}

	var timedOut []models.GameSession
	err = s.db.SelectContext(ctx, &timedOut,
		`UPDATE game_sessions
		 SET status = 'timeout', resolved_at = $1, updated_at = $1
		 WHERE status IN ('pending_moves', 'pending_tx') AND expires_at <= $1
		 RETURNING `+sessionColumns, now)
	if err != nil {
		return err
	}
	if len(timedOut) == 0 {
		return nil
	}

	ids := make([]string, len(timedOut))
	for i, sess := range timedOut {
		ids[i] = sess.ID
	}
	log.Printf("[SWEEPER] Timed out %d sessions: %v", len(timedOut), ids)

	query, args, err := sqlx.In(
		`UPDATE matchmaking_queue
		 SET status = 'cancelled', session_id = NULL, updated_at = ?
		 WHERE session_id IN (?) AND status <> 'cancelled'`, now, ids)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return err
	}

	for i := range timedOut {
		events.PublishSession(ctx, s.rdb, events.SessionEvent{Type: events.SessionTimeout, Session: &timedOut[i]})
	}
	return nil
}
