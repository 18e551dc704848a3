// Package escrow implements the escrow contract's state machine: stake
// custody per game id, automatic resolution on the second submission, fee
// extraction, cancellation and timeout refunds. It is the sole authority for
// payout computation. The Ledger backs local deployments and tests through
// the chain.Backend seam; production reads the same semantics from the
// deployed contract.
package escrow

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"

	"github.com/chainduel/backend/internal/apperr"
	"github.com/chainduel/backend/internal/chain"
)

// Params are the deployment-pinned contract constants.
type Params struct {
	Owner         common.Address
	FeePercentage int64 // per-stake fee taken on a decisive result
	MinBet        *big.Int
	MaxBet        *big.Int
	Timeout       time.Duration // lone-participant refund delay
}

type game struct {
	p        [2]chain.Participant
	joined   int
	resolved bool
	winner   common.Address
	feeTaken *big.Int
	openedAt time.Time
}

type payout struct {
	to     common.Address
	amount *big.Int
}

// Ledger holds escrow state for every game id. All mutating operations update
// internal state first and transfer value last; a guard flag rejects any call
// arriving while a transfer is in flight, mirroring the contract's
// reentrancy lock.
type Ledger struct {
	params Params
	clock  clockwork.Clock
	bank   Bank

	mu      sync.Mutex
	entered bool
	games   map[common.Hash]*game
	feePool *big.Int
}

func New(params Params, bank Bank, clock clockwork.Clock) *Ledger {
	return &Ledger{
		params:  params,
		clock:   clock,
		bank:    bank,
		games:   make(map[common.Hash]*game),
		feePool: new(big.Int),
	}
}

// enter takes the state lock and arms the reentrancy guard. The caller must
// finish with settle (which performs transfers) or leave.
func (l *Ledger) enter() error {
	l.mu.Lock()
	if l.entered {
		l.mu.Unlock()
		return apperr.ChainRejected(apperr.ReasonReentrantCall)
	}
	return nil
}

func (l *Ledger) leave() {
	l.mu.Unlock()
}

// settle releases the state lock and performs the queued transfers with the
// guard armed, so any callback into the ledger is rejected.
func (l *Ledger) settle(payouts []payout) error {
	l.entered = true
	l.mu.Unlock()

	var err error
	for _, p := range payouts {
		if terr := l.bank.Transfer(p.to, p.amount); terr != nil && err == nil {
			err = apperr.Unavailable("escrow transfer", terr)
		}
	}

	l.mu.Lock()
	l.entered = false
	l.mu.Unlock()
	return err
}

func beats(a, b uint8) bool {
	// rock(1) beats scissors(3), paper(2) beats rock, scissors beats paper
	return (a == 1 && b == 3) || (a == 2 && b == 1) || (a == 3 && b == 2)
}

// SubmitMove opens a game on the first call and resolves it on the second.
// The second stake must equal the first exactly. On a decisive result the
// per-stake fee goes to the pool and the remainder of both stakes transfers
// to the winner; on a tie both stakes are refunded in full.
func (l *Ledger) SubmitMove(gameID common.Hash, from common.Address, move uint8, value *big.Int) error {
	if err := l.enter(); err != nil {
		return err
	}

	if move < 1 || move > 3 {
		l.leave()
		return apperr.ChainRejected(apperr.ReasonInvalidMove)
	}

	g, ok := l.games[gameID]
	if !ok {
		if value.Cmp(l.params.MinBet) < 0 || value.Cmp(l.params.MaxBet) > 0 {
			l.leave()
			return apperr.ChainRejected(apperr.ReasonInsufficientStake)
		}
		l.games[gameID] = &game{
			p:        [2]chain.Participant{{Addr: from, Stake: new(big.Int).Set(value), Move: move}},
			joined:   1,
			feeTaken: new(big.Int),
			openedAt: l.clock.Now(),
		}
		l.leave()
		return nil
	}

	if g.resolved || g.joined >= 2 {
		l.leave()
		return apperr.ChainRejected(apperr.ReasonAlreadyResolved)
	}
	if from == g.p[0].Addr {
		l.leave()
		return apperr.ChainRejected(apperr.ReasonAlreadyJoined)
	}
	if value.Cmp(g.p[0].Stake) != 0 {
		l.leave()
		return apperr.ChainRejected(apperr.ReasonStakeMismatch)
	}

	g.p[1] = chain.Participant{Addr: from, Stake: new(big.Int).Set(value), Move: move}
	g.joined = 2
	g.resolved = true

	stake := g.p[0].Stake
	var payouts []payout
	if g.p[0].Move == g.p[1].Move {
		// Tie: full refunds, no fee.
		payouts = []payout{
			{to: g.p[0].Addr, amount: new(big.Int).Set(stake)},
			{to: g.p[1].Addr, amount: new(big.Int).Set(stake)},
		}
	} else {
		winner := 1
		if beats(g.p[0].Move, g.p[1].Move) {
			winner = 0
		}
		fee := new(big.Int).Div(new(big.Int).Mul(stake, big.NewInt(l.params.FeePercentage)), big.NewInt(100))
		totalFee := new(big.Int).Mul(fee, big.NewInt(2))
		pot := new(big.Int).Mul(stake, big.NewInt(2))
		prize := new(big.Int).Sub(pot, totalFee)

		g.winner = g.p[winner].Addr
		g.feeTaken = totalFee
		l.feePool.Add(l.feePool, totalFee)
		payouts = []payout{{to: g.winner, amount: prize}}
	}

	return l.settle(payouts)
}

// Cancel voids a game and refunds the stake. Only the sole participant may
// cancel, and only before a second participant joins.
func (l *Ledger) Cancel(gameID common.Hash, from common.Address) error {
	if err := l.enter(); err != nil {
		return err
	}

	g, ok := l.games[gameID]
	if !ok {
		l.leave()
		return apperr.ChainRejected(apperr.ReasonUnknownGame)
	}
	if g.resolved {
		l.leave()
		return apperr.ChainRejected(apperr.ReasonAlreadyResolved)
	}
	if g.joined != 1 {
		l.leave()
		return apperr.ChainRejected(apperr.ReasonAlreadyJoined)
	}
	if from != g.p[0].Addr {
		l.leave()
		return apperr.ChainRejected(apperr.ReasonNotParticipant)
	}

	g.resolved = true
	return l.settle([]payout{{to: g.p[0].Addr, amount: new(big.Int).Set(g.p[0].Stake)}})
}

// ClaimTimeout refunds the lone participant once the pinned timeout has
// elapsed since their submission with no second participant.
func (l *Ledger) ClaimTimeout(gameID common.Hash, from common.Address) error {
	if err := l.enter(); err != nil {
		return err
	}

	g, ok := l.games[gameID]
	if !ok {
		l.leave()
		return apperr.ChainRejected(apperr.ReasonUnknownGame)
	}
	if g.resolved {
		l.leave()
		return apperr.ChainRejected(apperr.ReasonAlreadyResolved)
	}
	if g.joined != 1 {
		l.leave()
		return apperr.ChainRejected(apperr.ReasonAlreadyJoined)
	}
	if from != g.p[0].Addr {
		l.leave()
		return apperr.ChainRejected(apperr.ReasonNotParticipant)
	}
	if l.clock.Now().Before(g.openedAt.Add(l.params.Timeout)) {
		l.leave()
		return apperr.ChainRejected(apperr.ReasonTimeoutNotReached)
	}

	g.resolved = true
	return l.settle([]payout{{to: g.p[0].Addr, amount: new(big.Int).Set(g.p[0].Stake)}})
}

// WithdrawFees transfers accumulated fees to recipient. Owner only.
func (l *Ledger) WithdrawFees(from common.Address, recipient common.Address, amount *big.Int) error {
	if err := l.enter(); err != nil {
		return err
	}

	if from != l.params.Owner {
		l.leave()
		return apperr.ChainRejected(apperr.ReasonNotOwner)
	}
	if amount.Sign() < 0 || amount.Cmp(l.feePool) > 0 {
		l.leave()
		return apperr.ChainRejected(apperr.ReasonFeePoolExceeded)
	}

	l.feePool.Sub(l.feePool, amount)
	return l.settle([]payout{{to: recipient, amount: new(big.Int).Set(amount)}})
}

// GameOf implements chain.Backend. Unknown ids return a zero record, the way
// a contract mapping getter would.
func (l *Ledger) GameOf(ctx context.Context, gameID common.Hash) (*chain.EscrowGame, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := &chain.EscrowGame{FeeTaken: new(big.Int)}
	g, ok := l.games[gameID]
	if !ok {
		return out, nil
	}
	for i := 0; i < g.joined; i++ {
		out.Participants[i] = chain.Participant{
			Addr:  g.p[i].Addr,
			Stake: new(big.Int).Set(g.p[i].Stake),
			Move:  g.p[i].Move,
		}
	}
	out.Joined = g.joined
	out.Resolved = g.resolved
	out.Winner = g.winner
	out.FeeTaken = new(big.Int).Set(g.feeTaken)
	return out, nil
}

// FeePool implements chain.Backend.
func (l *Ledger) FeePool(ctx context.Context) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.feePool), nil
}
