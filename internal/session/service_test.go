package session

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"

	"github.com/chainduel/backend/internal/apperr"
	"github.com/chainduel/backend/internal/chain"
	"github.com/chainduel/backend/internal/config"
	"github.com/chainduel/backend/internal/models"
)

const testSessionID = "6f0ff1f6-9a53-4f7e-8131-3f1c5ba4a3df"

var sessionCols = []string{
	"id", "player1_id", "player2_id", "bet_tier", "status",
	"player1_move", "player2_move", "player1_signature", "player2_signature",
	"chain_game_id", "winner_id", "fee_snapshot", "created_at", "updated_at", "expires_at", "resolved_at",
}

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewService(sqlxDB, nil, &config.Config{SessionTTLMinutes: 10}), mock
}

// sessionRow builds one game_sessions result row. Nil move pointers map to
// NULL columns.
func sessionRow(status string, p1Move, p2Move *string) *sqlmock.Rows {
	now := time.Now()
	var m1, m2, s1, s2 interface{}
	if p1Move != nil {
		m1, s1 = *p1Move, "0xsig1"
	}
	if p2Move != nil {
		m2, s2 = *p2Move, "0xsig2"
	}
	return sqlmock.NewRows(sessionCols).
		AddRow(testSessionID, int64(7), int64(9), 25, status,
			m1, m2, s1, s2,
			"0x6f0ff1f69a534f7e81313f1c5ba4a3df00000000000000000000000000000000",
			nil, nil, now, now, now.Add(10*time.Minute), nil)
}

func strPtr(s string) *string { return &s }

func TestSubmitMoveStoresFirstMove(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(`SELECT .+ FROM game_sessions WHERE id`).
		WillReturnRows(sessionRow("pending_moves", nil, nil))
	mock.ExpectExec(`UPDATE game_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE game_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ FROM game_sessions WHERE id`).
		WillReturnRows(sessionRow("pending_moves", strPtr("rock"), nil))

	fresh, err := svc.SubmitMove(context.Background(), testSessionID, 7, "rock", "0xsig1")
	if err != nil {
		t.Fatalf("submit move failed: %v", err)
	}
	if fresh.Status != models.SessionPendingMoves {
		t.Errorf("status = %s, want pending_moves while opponent is missing", fresh.Status)
	}
	if !fresh.Player1Move.Valid || fresh.Player1Move.String != "rock" {
		t.Errorf("player1 move = %+v, want rock", fresh.Player1Move)
	}
}

func TestSubmitMoveAdvancesWhenBothPresent(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(`SELECT .+ FROM game_sessions WHERE id`).
		WillReturnRows(sessionRow("pending_moves", nil, strPtr("scissors")))
	mock.ExpectExec(`UPDATE game_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE game_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM game_sessions WHERE id`).
		WillReturnRows(sessionRow("pending_tx", strPtr("rock"), strPtr("scissors")))

	fresh, err := svc.SubmitMove(context.Background(), testSessionID, 7, "rock", "0xsig1")
	if err != nil {
		t.Fatalf("submit move failed: %v", err)
	}
	if fresh.Status != models.SessionPendingTx {
		t.Errorf("status = %s, want pending_tx once both moves are in", fresh.Status)
	}
}

func TestSubmitMoveRepeatIsConflict(t *testing.T) {
	svc, mock := newMockService(t)

	// The guarded update affects zero rows because the slot is taken; the
	// stored move must survive untouched.
	mock.ExpectQuery(`SELECT .+ FROM game_sessions WHERE id`).
		WillReturnRows(sessionRow("pending_moves", nil, nil))
	mock.ExpectExec(`UPDATE game_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ FROM game_sessions WHERE id`).
		WillReturnRows(sessionRow("pending_moves", strPtr("rock"), nil))

	_, err := svc.SubmitMove(context.Background(), testSessionID, 7, "paper", "0xsig1")
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on repeat submission, got %v", err)
	}
}

func TestSubmitMoveTerminalSession(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(`SELECT .+ FROM game_sessions WHERE id`).
		WillReturnRows(sessionRow("timeout", nil, nil))

	_, err := svc.SubmitMove(context.Background(), testSessionID, 7, "rock", "0xsig1")
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on terminal session, got %v", err)
	}
}

func TestSubmitMoveNonParticipant(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(`SELECT .+ FROM game_sessions WHERE id`).
		WillReturnRows(sessionRow("pending_moves", nil, nil))

	_, err := svc.SubmitMove(context.Background(), testSessionID, 11, "rock", "0xsig1")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for outsider, got %v", err)
	}
}

func TestSubmitMoveInvalidMove(t *testing.T) {
	svc, _ := newMockService(t)

	_, err := svc.SubmitMove(context.Background(), testSessionID, 7, "lizard", "0xsig1")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for unknown move, got %v", err)
	}
}

func TestGetRejectsMalformedID(t *testing.T) {
	svc, _ := newMockService(t)

	_, err := svc.Get(context.Background(), "nope")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// stubBackend returns a fixed record for every game id.
type stubBackend struct {
	record *chain.EscrowGame
	err    error
}

func (b stubBackend) GameOf(ctx context.Context, gameID common.Hash) (*chain.EscrowGame, error) {
	return b.record, b.err
}

func (b stubBackend) FeePool(ctx context.Context) (*big.Int, error) {
	return big.NewInt(0), nil
}

func TestReconcileFinishesSettledSession(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(`SELECT .+ FROM game_sessions WHERE status = 'pending_tx'`).
		WillReturnRows(sessionRow("pending_tx", strPtr("rock"), strPtr("scissors")))
	mock.ExpectExec(`UPDATE game_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM game_sessions WHERE id`).
		WillReturnRows(sessionRow("finished", strPtr("rock"), strPtr("scissors")))

	backend := stubBackend{record: &chain.EscrowGame{
		Joined:   2,
		Resolved: true,
		FeeTaken: big.NewInt(1250000000000000),
	}}
	svc.reconcile(context.Background(), backend)
}

func TestReconcileSkipsUnresolvedGame(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(`SELECT .+ FROM game_sessions WHERE status = 'pending_tx'`).
		WillReturnRows(sessionRow("pending_tx", strPtr("rock"), strPtr("scissors")))

	backend := stubBackend{record: &chain.EscrowGame{Joined: 1, Resolved: false}}
	svc.reconcile(context.Background(), backend)
}

func TestReconcileLosesRaceToSweeper(t *testing.T) {
	svc, mock := newMockService(t)

	// The sweeper timed the session out between the list and the update;
	// zero rows means no finish event and no reload.
	mock.ExpectQuery(`SELECT .+ FROM game_sessions WHERE status = 'pending_tx'`).
		WillReturnRows(sessionRow("pending_tx", strPtr("rock"), strPtr("scissors")))
	mock.ExpectExec(`UPDATE game_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	backend := stubBackend{record: &chain.EscrowGame{
		Joined:   2,
		Resolved: true,
		FeeTaken: big.NewInt(0),
	}}
	svc.reconcile(context.Background(), backend)
}
