package escrow

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Bank moves value out of the ledger. It is the interaction step of every
// monetary operation and runs only after internal state is updated.
type Bank interface {
	Transfer(to common.Address, amount *big.Int) error
}

// MemBank is an in-memory Bank used by the local ledger and tests.
type MemBank struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
}

func NewMemBank() *MemBank {
	return &MemBank{balances: make(map[common.Address]*big.Int)}
}

func (b *MemBank) Transfer(to common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.balances[to]
	if !ok {
		cur = new(big.Int)
	}
	b.balances[to] = new(big.Int).Add(cur, amount)
	return nil
}

// BalanceOf returns the total value transferred to addr so far.
func (b *MemBank) BalanceOf(addr common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.balances[addr]; ok {
		return new(big.Int).Set(cur)
	}
	return new(big.Int)
}
