package session

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainduel/backend/internal/chain"
	"github.com/chainduel/backend/internal/events"
	"github.com/chainduel/backend/internal/models"
)

// StartReconciler polls the escrow contract for sessions awaiting settlement
// and flips them to finished once the chain reports the game resolved. This
// is the only path that writes the finished status: off-chain state is never
// asserted independently of confirmed settlement.
func StartReconciler(ctx context.Context, svc *Service, backend chain.Backend) {
	interval := time.Duration(svc.cfg.ReconcilerPollSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[RECONCILER] Starting settlement reconciler (poll every %v)", interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[RECONCILER] Worker stopped")
			return
		case <-ticker.C:
			svc.reconcile(ctx, backend)
		}
	}
}

func (s *Service) reconcile(ctx context.Context, backend chain.Backend) {
	var pending []models.GameSession
	err := s.db.SelectContext(ctx, &pending,
		`SELECT `+sessionColumns+` FROM game_sessions WHERE status = 'pending_tx'`)
	if err != nil {
		log.Printf("[RECONCILER] Failed to list pending_tx sessions: %v", err)
		return
	}

	for i := range pending {
		sess := &pending[i]
		record, err := backend.GameOf(ctx, common.HexToHash(sess.ChainGameID))
		if err != nil {
			// Chain unreachable; defer to the next tick.
			log.Printf("[RECONCILER] Chain read failed for session %s: %v", sess.ID, err)
			continue
		}
		if !record.Resolved || record.Joined < 2 {
			continue
		}
		s.finishSettled(ctx, sess, record)
	}
}

// finishSettled applies a chain-confirmed outcome to one session. The update
// is conditional on the row still being pending_tx, so a concurrent sweeper
// timeout wins cleanly and this becomes a no-op.
func (s *Service) finishSettled(ctx context.Context, sess *models.GameSession, record *chain.EscrowGame) {
	if !sess.Player1Move.Valid || !sess.Player2Move.Valid {
		log.Printf("[RECONCILER] Session %s settled on chain but has missing moves; skipping", sess.ID)
		return
	}

	var winnerID sql.NullInt64
	switch models.Winner(models.Move(sess.Player1Move.String), models.Move(sess.Player2Move.String)) {
	case 1:
		winnerID = sql.NullInt64{Int64: sess.Player1ID, Valid: true}
	case 2:
		winnerID = sql.NullInt64{Int64: sess.Player2ID, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE game_sessions
		 SET status = 'finished', winner_id = $1, fee_snapshot = $2, resolved_at = now(), updated_at = now()
		 WHERE id = $3 AND status = 'pending_tx'`,
		winnerID, record.FeeTaken.String(), sess.ID)
	if err != nil {
		log.Printf("[RECONCILER] Failed to finish session %s: %v", sess.ID, err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return
	}

	log.Printf("[RECONCILER] Session %s finished (winner=%v fee=%s)", sess.ID, winnerID.Int64, record.FeeTaken)

	fresh, err := s.fetch(ctx, sess.ID)
	if err != nil {
		log.Printf("[RECONCILER] Failed to reload session %s: %v", sess.ID, err)
		return
	}
	events.PublishSession(ctx, s.rdb, events.SessionEvent{Type: events.SessionFinished, Session: fresh})
}
