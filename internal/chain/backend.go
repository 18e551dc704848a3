// Package chain holds the seam between the off-chain service and the escrow
// contract: deterministic game id derivation and a read interface the
// reconciler polls. The in-process ledger satisfies Backend for local
// deployments and tests; Client speaks to a real node.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Participant is one staked slot of an escrow game.
type Participant struct {
	Addr  common.Address
	Stake *big.Int
	Move  uint8
}

// EscrowGame is the contract-side record for one game id.
type EscrowGame struct {
	Participants [2]Participant
	Joined       int
	Resolved     bool
	Winner       common.Address // zero address on tie, cancel or timeout
	FeeTaken     *big.Int       // total fee moved to the pool at resolution
}

// Backend reads escrow state. The chain is the sole authority for fund
// movement; off-chain status is only ever reconciled from what it reports.
type Backend interface {
	GameOf(ctx context.Context, gameID common.Hash) (*EscrowGame, error)
	FeePool(ctx context.Context) (*big.Int, error)
}

// GameID derives the bytes32 escrow key from a session UUID. The UUID's 16
// bytes occupy the high half of the hash, matching what clients submit, so
// both parties and the contract agree on the key without prior registration.
func GameID(sessionID string) (common.Hash, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return common.Hash{}, err
	}
	var h common.Hash
	copy(h[:16], id[:])
	return h, nil
}
