// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package alm

import (
	"math/big"

	"github.com/aquadao/treasury/clock"
	"github.com/aquadao/treasury/currency"
	"github.com/aquadao/treasury/fixedpoint"
	"github.com/aquadao/treasury/ledger"
)

// Allocation is a currency's target weight in the treasury's basket,
// expressed as a value plus a tolerance range around it (spec.md §4.3),
// matching original_source/adao-manager/src/lib.rs's Allocation.
type Allocation struct {
	Value *big.Int
	Range *big.Int
}

// Adjustment is a signed delta applied to an existing Allocation's value and
// range; negative components saturate the target at zero rather than going
// negative.
type Adjustment struct {
	Value *big.Int
	Range *big.Int
}

// Percent is an Allocation normalized against the basket's total target
// value: value/total, plus the [min,max] percent band its range implies.
type Percent struct {
	Value fixedpoint.U
	Min   fixedpoint.U
	Max   fixedpoint.U
}

// CurrentAllocation is a currency's present share of the DAO account's
// basket, priced against the stable currency.
type CurrentAllocation struct {
	Amount  *big.Int
	Value   *big.Int
	Percent fixedpoint.U
}

// Diff is the gap between a currency's current and target allocation,
// computed once per rebalance tick and consulted by every strategy.
type Diff struct {
	Current    fixedpoint.U
	Target     fixedpoint.U
	Diff       fixedpoint.I // current.percent - target.percent
	RangeDiff  fixedpoint.I // how far current.percent sits outside [target.min, target.max]
	DiffAmount *big.Int     // current.amount - target.amount, signed
}

// Kind names which pair a Strategy provisions liquidity into: LP(Stable,
// Other). Other == the engine's configured Governance currency selects the
// mint-and-provision strategy (rebalance_ausd_adao in the original); any
// other currency selects the trade-existing-balance strategy
// (rebalance_ausd_other).
type Kind struct {
	Other currency.ID
}

// Strategy is one liquidity-provisioning rebalance strategy, executed at
// most once per RebalancePeriod in round-robin order across the configured
// strategy list.
type Strategy struct {
	Kind              Kind
	PercentPerTrade   fixedpoint.U
	MaxAmountPerTrade *big.Int
	MinAmountPerTrade *big.Int
}

// tradeAmount clamps a proposed trade to [MinAmountPerTrade,
// MaxAmountPerTrade] and to the caller-supplied ceiling max, matching
// Strategy::trade_amount in original_source/adao-manager/src/lib.rs.
func (s Strategy) tradeAmount(diffAbs, max *big.Int) *big.Int {
	if max.Cmp(s.MinAmountPerTrade) <= 0 || diffAbs.Cmp(s.MinAmountPerTrade) <= 0 {
		return big.NewInt(0)
	}
	amount := s.PercentPerTrade.MulBalance(diffAbs)
	if amount.Cmp(s.MinAmountPerTrade) < 0 {
		amount = new(big.Int).Set(s.MinAmountPerTrade)
	}
	if amount.Cmp(s.MaxAmountPerTrade) > 0 {
		amount = new(big.Int).Set(s.MaxAmountPerTrade)
	}
	if amount.Cmp(max) > 0 {
		amount = new(big.Int).Set(max)
	}
	return amount
}

// Config holds the Allocation Manager's configuration constants
// (spec.md §6).
type Config struct {
	Stable          currency.ID
	Governance      currency.ID
	DaoAccount      ledger.AccountID
	PalletAccount   ledger.AccountID
	RebalancePeriod clock.BlockNumber
	RebalanceOffset clock.BlockNumber
}

// Events - Allocation Manager
type TargetAllocationSet struct {
	Currency   currency.ID
	Allocation Allocation
}

type TargetAllocationRemoved struct {
	Currency currency.ID
}

type TargetAllocationAdjusted struct {
	Currency   currency.ID
	Adjustment Adjustment
}

type StrategiesSet struct {
	Strategies []Strategy
}
