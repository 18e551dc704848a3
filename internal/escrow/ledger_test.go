package escrow

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainduel/backend/internal/apperr"
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	player1 = common.HexToAddress("0x0000000000000000000000000000000000000001")
	player2 = common.HexToAddress("0x0000000000000000000000000000000000000002")
	other   = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

func ether(s string) *big.Int {
	d, ok := new(big.Rat).SetString(s)
	if !ok {
		panic("bad ether amount " + s)
	}
	wei := new(big.Rat).Mul(d, new(big.Rat).SetInt(big.NewInt(1e18)))
	return wei.Num() // test amounts are exact in wei
}

func newLedger(t *testing.T) (*Ledger, *MemBank, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	bank := NewMemBank()
	l := New(Params{
		Owner:         owner,
		FeePercentage: 5,
		MinBet:        ether("0.01"),
		MaxBet:        ether("10"),
		Timeout:       300 * time.Second,
	}, bank, clock)
	return l, bank, clock
}

func gid(s string) common.Hash {
	return common.BytesToHash([]byte(s))
}

func TestSettlesWinnerAndCollectsFees(t *testing.T) {
	l, bank, _ := newLedger(t)
	stake := ether("1")
	id := gid("win-game")

	require.NoError(t, l.SubmitMove(id, player1, 1, stake)) // rock
	require.NoError(t, l.SubmitMove(id, player2, 3, stake)) // scissors

	// 5% of each stake into the pool, remainder to the rock player.
	pool, err := l.FeePool(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ether("0.1"), pool)
	assert.Equal(t, ether("1.9"), bank.BalanceOf(player1))
	assert.Equal(t, new(big.Int), bank.BalanceOf(player2))

	g, err := l.GameOf(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, g.Resolved)
	assert.Equal(t, player1, g.Winner)
	assert.Equal(t, ether("0.1"), g.FeeTaken)
}

func TestRefundsOnDraw(t *testing.T) {
	l, bank, _ := newLedger(t)
	stake := ether("0.5")
	id := gid("draw-game")

	require.NoError(t, l.SubmitMove(id, player1, 1, stake))
	require.NoError(t, l.SubmitMove(id, player2, 1, stake))

	pool, err := l.FeePool(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pool.Sign(), "no fee on a draw")
	assert.Equal(t, stake, bank.BalanceOf(player1))
	assert.Equal(t, stake, bank.BalanceOf(player2))

	g, err := l.GameOf(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, g.Resolved)
	assert.Equal(t, common.Address{}, g.Winner)
}

func TestThirdSubmissionReverts(t *testing.T) {
	l, _, _ := newLedger(t)
	stake := ether("1")
	id := gid("full-game")

	require.NoError(t, l.SubmitMove(id, player1, 1, stake))
	require.NoError(t, l.SubmitMove(id, player2, 2, stake))

	err := l.SubmitMove(id, other, 3, stake)
	require.Error(t, err)
	assert.Equal(t, apperr.ReasonAlreadyResolved, apperr.ReasonOf(err))
}

func TestStakeValidation(t *testing.T) {
	l, _, _ := newLedger(t)
	id := gid("bounds-game")

	err := l.SubmitMove(id, player1, 1, ether("0.001"))
	assert.Equal(t, apperr.ReasonInsufficientStake, apperr.ReasonOf(err))

	err = l.SubmitMove(id, player1, 1, ether("11"))
	assert.Equal(t, apperr.ReasonInsufficientStake, apperr.ReasonOf(err))

	require.NoError(t, l.SubmitMove(id, player1, 1, ether("1")))
	err = l.SubmitMove(id, player2, 2, ether("0.5"))
	assert.Equal(t, apperr.ReasonStakeMismatch, apperr.ReasonOf(err))
}

func TestSameSenderCannotJoinTwice(t *testing.T) {
	l, _, _ := newLedger(t)
	id := gid("self-game")

	require.NoError(t, l.SubmitMove(id, player1, 1, ether("1")))
	err := l.SubmitMove(id, player1, 2, ether("1"))
	assert.Equal(t, apperr.ReasonAlreadyJoined, apperr.ReasonOf(err))
}

func TestInvalidMoveReverts(t *testing.T) {
	l, _, _ := newLedger(t)
	err := l.SubmitMove(gid("bad-move"), player1, 0, ether("1"))
	assert.Equal(t, apperr.ReasonInvalidMove, apperr.ReasonOf(err))
	err = l.SubmitMove(gid("bad-move"), player1, 4, ether("1"))
	assert.Equal(t, apperr.ReasonInvalidMove, apperr.ReasonOf(err))
}

func TestCancelOnlyBeforeJoin(t *testing.T) {
	l, bank, _ := newLedger(t)
	stake := ether("0.25")
	id := gid("cancel-game")

	require.NoError(t, l.SubmitMove(id, player1, 3, stake))

	// Strangers cannot cancel someone else's stake.
	err := l.Cancel(id, other)
	assert.Equal(t, apperr.ReasonNotParticipant, apperr.ReasonOf(err))

	require.NoError(t, l.Cancel(id, player1))
	assert.Equal(t, stake, bank.BalanceOf(player1))

	// A cancelled game stays void.
	err = l.Cancel(id, player1)
	assert.Equal(t, apperr.ReasonAlreadyResolved, apperr.ReasonOf(err))
}

func TestCancelFailsOnceJoined(t *testing.T) {
	l, _, _ := newLedger(t)
	stake := ether("1")
	id := gid("joined-game")

	require.NoError(t, l.SubmitMove(id, player1, 1, stake))
	require.NoError(t, l.SubmitMove(id, player2, 2, stake))

	err := l.Cancel(id, player1)
	assert.Equal(t, apperr.ReasonAlreadyResolved, apperr.ReasonOf(err))
}

func TestClaimTimeout(t *testing.T) {
	l, bank, clock := newLedger(t)
	stake := ether("0.2")
	id := gid("timeout-game")

	require.NoError(t, l.SubmitMove(id, player1, 2, stake))

	err := l.ClaimTimeout(id, player1)
	assert.Equal(t, apperr.ReasonTimeoutNotReached, apperr.ReasonOf(err))

	clock.Advance(301 * time.Second)
	require.NoError(t, l.ClaimTimeout(id, player1))
	assert.Equal(t, stake, bank.BalanceOf(player1))
}

func TestWithdrawFees(t *testing.T) {
	l, bank, _ := newLedger(t)
	stake := ether("1")
	id := gid("fees-game")

	require.NoError(t, l.SubmitMove(id, player1, 1, stake))
	require.NoError(t, l.SubmitMove(id, player2, 2, stake))

	pool, err := l.FeePool(context.Background())
	require.NoError(t, err)
	require.Positive(t, pool.Sign())

	err = l.WithdrawFees(other, other, pool)
	assert.Equal(t, apperr.ReasonNotOwner, apperr.ReasonOf(err))

	over := new(big.Int).Add(pool, big.NewInt(1))
	err = l.WithdrawFees(owner, owner, over)
	assert.Equal(t, apperr.ReasonFeePoolExceeded, apperr.ReasonOf(err))

	require.NoError(t, l.WithdrawFees(owner, owner, pool))
	assert.Equal(t, pool, bank.BalanceOf(owner))

	left, err := l.FeePool(context.Background())
	require.NoError(t, err)
	assert.Zero(t, left.Sign())
}

func TestUnknownGameIsZeroRecord(t *testing.T) {
	l, _, _ := newLedger(t)
	g, err := l.GameOf(context.Background(), gid("never-opened"))
	require.NoError(t, err)
	assert.False(t, g.Resolved)
	assert.Zero(t, g.Joined)
}
