// Package bets pins the fixed stake denominations offered to players and
// their on-chain token equivalents.
package bets

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Tiers are the USD denominations a player can stake. The set is fixed per
// deployment; everything else in the system treats the tier as an opaque key.
var Tiers = []int{5, 10, 25, 50, 100, 250, 500, 1000}

// etherPerUSD is the pinned conversion used when the contract was deployed:
// a $5 tier stakes 0.0025 ether, scaling linearly.
var etherPerUSD = decimal.RequireFromString("0.0005")

// Valid reports whether tier is one of the offered denominations.
func Valid(tier int) bool {
	for _, t := range Tiers {
		if t == tier {
			return true
		}
	}
	return false
}

// StakeEther returns the token amount staked for a tier, in ether.
func StakeEther(tier int) decimal.Decimal {
	return etherPerUSD.Mul(decimal.NewFromInt(int64(tier)))
}

// StakeWei returns the token amount staked for a tier, in wei.
func StakeWei(tier int) *big.Int {
	return StakeEther(tier).Shift(18).BigInt()
}
