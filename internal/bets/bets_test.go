package bets

import (
	"math/big"
	"testing"
)

func TestValid(t *testing.T) {
	for _, tier := range Tiers {
		if !Valid(tier) {
			t.Errorf("Valid(%d) = false, want true", tier)
		}
	}
	for _, tier := range []int{0, -5, 7, 20, 999, 2000} {
		if Valid(tier) {
			t.Errorf("Valid(%d) = true, want false", tier)
		}
	}
}

func TestStakeWei(t *testing.T) {
	cases := map[int]string{
		5:    "2500000000000000",   // 0.0025 ether
		10:   "5000000000000000",   // 0.005 ether
		25:   "12500000000000000",  // 0.0125 ether
		50:   "25000000000000000",  // 0.025 ether
		100:  "50000000000000000",  // 0.05 ether
		250:  "125000000000000000", // 0.125 ether
		500:  "250000000000000000", // 0.25 ether
		1000: "500000000000000000", // 0.5 ether
	}
	for tier, want := range cases {
		got := StakeWei(tier)
		expected, _ := new(big.Int).SetString(want, 10)
		if got.Cmp(expected) != 0 {
			t.Errorf("StakeWei(%d) = %s, want %s", tier, got, want)
		}
	}
}
