// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package alm

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/aquadao/treasury/authz"
	"github.com/aquadao/treasury/currency"
	"github.com/aquadao/treasury/events"
	"github.com/aquadao/treasury/fixedpoint"
	"github.com/aquadao/treasury/ledger"
	"github.com/aquadao/treasury/oracle"
	"github.com/aquadao/treasury/pool"
)

var (
	govCurrency    = currency.Token("G")
	stableCurrency = currency.Token("USD")
	daoAcct        = common.HexToAddress("0xDA0")
	pallet         = common.HexToAddress("0xFEED")
	poolSovereign  = common.HexToAddress("0xD00D")
	governor       = common.HexToAddress("0xB055")
)

func newEngine(t *testing.T) (*Engine, *ledger.Ledger, *oracle.Table, *pool.Pool) {
	t.Helper()
	l := ledger.New()
	prices := oracle.NewTable()
	dex := pool.New(l, poolSovereign)
	cfg := Config{
		Stable:          stableCurrency,
		Governance:      govCurrency,
		DaoAccount:      daoAcct,
		PalletAccount:   pallet,
		RebalancePeriod: 10,
		RebalanceOffset: 0,
	}
	e := New(cfg, l, prices, dex, authz.NewAllowSet(governor), events.NewBus(), log.NewTestLogger(log.InfoLevel))
	return e, l, prices, dex
}

func TestSetTargetAllocationsComputesPercents(t *testing.T) {
	e, _, _, _ := newEngine(t)
	lp := currency.LPShare(govCurrency, stableCurrency)

	err := e.SetTargetAllocations(governor, map[currency.ID]*Allocation{
		stableCurrency: {Value: big.NewInt(700), Range: big.NewInt(50)},
		lp:              {Value: big.NewInt(300), Range: big.NewInt(100)},
	})
	require.NoError(t, err)

	require.Equal(t, fixedpoint.UFromRat(7, 10).String(), e.percents[stableCurrency].Value.String())
	require.Equal(t, fixedpoint.UFromRat(3, 10).String(), e.percents[lp].Value.String())
	require.Equal(t, fixedpoint.UFromRat(2, 10).String(), e.percents[lp].Min.String())
	require.Equal(t, fixedpoint.UFromRat(4, 10).String(), e.percents[lp].Max.String())
}

func TestSetTargetAllocationsUnauthorizedFails(t *testing.T) {
	e, _, _, _ := newEngine(t)
	err := e.SetTargetAllocations(daoAcct, map[currency.ID]*Allocation{
		stableCurrency: {Value: big.NewInt(1), Range: big.NewInt(0)},
	})
	require.ErrorIs(t, err, authz.ErrBadOrigin)
}

func TestSetTargetAllocationsRemovingOnlyEntryRollsBack(t *testing.T) {
	e, _, _, _ := newEngine(t)
	require.NoError(t, e.SetTargetAllocations(governor, map[currency.ID]*Allocation{
		stableCurrency: {Value: big.NewInt(100), Range: big.NewInt(0)},
	}))
	// Removing the only entry would empty the basket (zero total target
	// value); the whole call rolls back rather than leaving a half-applied
	// target map, matching the teacher's transactional call semantics.
	err := e.SetTargetAllocations(governor, map[currency.ID]*Allocation{stableCurrency: nil})
	require.ErrorIs(t, err, ErrZeroTargetAllocation)
	_, stillPresent := e.targets[stableCurrency]
	require.True(t, stillPresent)
}

func TestAdjustTargetAllocationsAppliesSignedDeltaAndSaturates(t *testing.T) {
	e, _, _, _ := newEngine(t)
	lp := currency.LPShare(govCurrency, stableCurrency)
	// A second entry keeps the basket's total target value nonzero once the
	// stable entry saturates to zero.
	require.NoError(t, e.SetTargetAllocations(governor, map[currency.ID]*Allocation{
		stableCurrency: {Value: big.NewInt(100), Range: big.NewInt(10)},
		lp:             {Value: big.NewInt(100), Range: big.NewInt(10)},
	}))

	require.NoError(t, e.AdjustTargetAllocations(governor, map[currency.ID]Adjustment{
		stableCurrency: {Value: big.NewInt(-200), Range: big.NewInt(5)},
	}))
	require.Equal(t, big.NewInt(0), e.targets[stableCurrency].Value) // saturates at zero, not negative
	require.Equal(t, big.NewInt(15), e.targets[stableCurrency].Range)
}

func TestAdjustTargetAllocationsNotFoundFails(t *testing.T) {
	e, _, _, _ := newEngine(t)
	err := e.AdjustTargetAllocations(governor, map[currency.ID]Adjustment{
		stableCurrency: {Value: big.NewInt(1), Range: big.NewInt(0)},
	})
	require.ErrorIs(t, err, ErrTargetAllocationNotFound)
}

func TestSetStrategiesUnauthorizedFails(t *testing.T) {
	e, _, _, _ := newEngine(t)
	err := e.SetStrategies(daoAcct, nil)
	require.ErrorIs(t, err, authz.ErrBadOrigin)
}

// Exercises the full native-mint rebalance path: the DAO account holds more
// Stable than its target and no governance-pair LP shares at all, so the
// governance-liquidity strategy mints G, pairs it against a slice of the
// surplus Stable, and books the resulting LP shares back to the DAO account.
func TestOnInitializeRebalanceGovernanceStrategyMintsAndProvisions(t *testing.T) {
	e, l, prices, dex := newEngine(t)
	lp := currency.LPShare(govCurrency, stableCurrency)

	prices.Set(stableCurrency, stableCurrency, fixedpoint.UFromInt(1))
	prices.Set(lp, stableCurrency, fixedpoint.UFromInt(1))
	prices.Set(govCurrency, stableCurrency, fixedpoint.UFromInt(1))

	require.NoError(t, l.Deposit(stableCurrency, daoAcct, big.NewInt(10_000)))

	require.NoError(t, e.SetTargetAllocations(governor, map[currency.ID]*Allocation{
		stableCurrency: {Value: big.NewInt(700), Range: big.NewInt(50)},
		lp:              {Value: big.NewInt(300), Range: big.NewInt(100)},
	}))
	require.NoError(t, e.SetStrategies(governor, []Strategy{
		{
			Kind:              Kind{Other: govCurrency},
			PercentPerTrade:   fixedpoint.UFromInt(1),
			MaxAmountPerTrade: big.NewInt(1_000_000_000),
			MinAmountPerTrade: big.NewInt(1),
		},
	}))

	e.OnInitialize(0)

	require.Equal(t, big.NewInt(8_500), l.FreeBalance(stableCurrency, daoAcct))
	require.Equal(t, big.NewInt(1_500), l.FreeBalance(lp, daoAcct))
	require.Equal(t, big.NewInt(0), l.FreeBalance(govCurrency, pallet))
	require.Equal(t, big.NewInt(0), l.FreeBalance(stableCurrency, pallet))

	ra, rb := dex.Reserves(govCurrency, stableCurrency)
	require.Equal(t, big.NewInt(1_500), ra)
	require.Equal(t, big.NewInt(1_500), rb)
}

func TestOnInitializeSkipsOffTickBlocks(t *testing.T) {
	e, l, prices, _ := newEngine(t)
	lp := currency.LPShare(govCurrency, stableCurrency)
	prices.Set(stableCurrency, stableCurrency, fixedpoint.UFromInt(1))
	prices.Set(lp, stableCurrency, fixedpoint.UFromInt(1))
	prices.Set(govCurrency, stableCurrency, fixedpoint.UFromInt(1))
	require.NoError(t, l.Deposit(stableCurrency, daoAcct, big.NewInt(10_000)))
	require.NoError(t, e.SetTargetAllocations(governor, map[currency.ID]*Allocation{
		stableCurrency: {Value: big.NewInt(700), Range: big.NewInt(50)},
		lp:              {Value: big.NewInt(300), Range: big.NewInt(100)},
	}))
	require.NoError(t, e.SetStrategies(governor, []Strategy{
		{Kind: Kind{Other: govCurrency}, PercentPerTrade: fixedpoint.UFromInt(1), MaxAmountPerTrade: big.NewInt(1_000_000_000), MinAmountPerTrade: big.NewInt(1)},
	}))

	e.OnInitialize(3) // not a multiple of RebalancePeriod=10 at RebalanceOffset=0
	require.Equal(t, big.NewInt(10_000), l.FreeBalance(stableCurrency, daoAcct))
}
