// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package subeng

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/aquadao/treasury/authz"
	"github.com/aquadao/treasury/clock"
	"github.com/aquadao/treasury/currency"
	"github.com/aquadao/treasury/events"
	"github.com/aquadao/treasury/fixedpoint"
	"github.com/aquadao/treasury/ledger"
	"github.com/aquadao/treasury/oracle"
)

var (
	govCurrency   = currency.Token("G")
	stableToken   = currency.Token("USD")
	pallet        = common.HexToAddress("0xFEED")
	governor      = common.HexToAddress("0xDA0")
	buyer         = common.HexToAddress("0xB0B")
)

// fakeStakedTokenManager records every mint without running real STE math,
// so SUB's own quote arithmetic can be tested in isolation.
type fakeStakedTokenManager struct {
	minted []mintCall
}

type mintCall struct {
	who           ledger.AccountID
	q             *big.Int
	vestingPeriod clock.BlockNumber
}

func (f *fakeStakedTokenManager) MintForSubscription(who ledger.AccountID, q *big.Int, vestingPeriod clock.BlockNumber) error {
	f.minted = append(f.minted, mintCall{who: who, q: new(big.Int).Set(q), vestingPeriod: vestingPeriod})
	return nil
}

func (f *fakeStakedTokenManager) CheckMintForSubscription(who ledger.AccountID, q *big.Int) error {
	return nil
}

func newEngine(t *testing.T) (*Engine, *ledger.Ledger, *oracle.Table, *clock.Chain, *fakeStakedTokenManager) {
	t.Helper()
	l := ledger.New()
	prices := oracle.NewTable()
	bc := clock.NewChain()
	staked := &fakeStakedTokenManager{}
	cfg := Config{
		Governance:    govCurrency,
		Stable:        stableToken,
		PalletAccount: pallet,
		Decimals: map[currency.ID]uint8{
			govCurrency: 18,
			stableToken: 18,
		},
	}
	e := New(cfg, l, bc, prices, authz.NewAllowSet(governor), staked, events.NewBus(), log.NewTestLogger(log.InfoLevel))
	return e, l, prices, bc, staked
}

// S1: a flat-price subscription (no discount slope) quotes q = payment/price.
func TestSubscribeFlatPriceNoDiscount(t *testing.T) {
	e, l, prices, _, staked := newEngine(t)
	prices.Set(govCurrency, stableToken, fixedpoint.UFromInt(2))
	prices.Set(stableToken, stableToken, fixedpoint.UFromInt(1))
	require.NoError(t, l.Deposit(stableToken, buyer, big.NewInt(1_000)))

	id, err := e.CreateSubscription(governor, Subscription{
		Currency:      stableToken,
		VestingPeriod: 5,
		MinAmount:     big.NewInt(1),
		MinRatio:      fixedpoint.UFromRat(1, 1000),
		Discount:      Discount{Max: fixedpoint.ZeroI(), Interval: 1},
	})
	require.NoError(t, err)

	require.NoError(t, e.Subscribe(buyer, id, big.NewInt(1_000), nil))
	require.Len(t, staked.minted, 1)
	require.Equal(t, big.NewInt(500), staked.minted[0].q) // 1000 stable / price 2 == 500 G
	require.Equal(t, clock.BlockNumber(5), staked.minted[0].vestingPeriod)
	require.Equal(t, big.NewInt(0), l.FreeBalance(stableToken, buyer))
	require.Equal(t, big.NewInt(1_000), l.FreeBalance(stableToken, pallet))

	sub := e.SubscriptionOf(id)
	require.Equal(t, big.NewInt(500), sub.TotalSold)
}

// S2: on a sloped curve (dec_per_unit != 0, so the quadratic quote path
// runs) the first purchase quotes a positive q, and after a second purchase
// one interval later total_sold equals the sum of the two quoted amounts. With inc_on_idle 0
// and less than one whole unit of G sold, neither idle accrual nor sale
// decay moves last_discount here.
func TestSubscribeSlopedCurveAccumulatesTotalSold(t *testing.T) {
	e, l, prices, bc, staked := newEngine(t)
	prices.Set(govCurrency, stableToken, fixedpoint.UFromInt(1))
	prices.Set(stableToken, stableToken, fixedpoint.UFromInt(1))
	require.NoError(t, l.Deposit(stableToken, buyer, big.NewInt(1_000_000_000_000_000_000*2)))

	id, err := e.CreateSubscription(governor, Subscription{
		Currency:      stableToken,
		VestingPeriod: 1,
		MinAmount:     big.NewInt(1),
		MinRatio:      fixedpoint.UFromRat(1, 1_000_000),
		Discount: Discount{
			Max:        fixedpoint.IFromU(fixedpoint.UFromRat(1, 2)),
			Interval:   10,
			IncOnIdle:  fixedpoint.IFromInt(0),
			DecPerUnit: fixedpoint.NewI(big.NewInt(1_000_000_000_000)), // tiny slope
		},
	})
	require.NoError(t, err)

	oneToken := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	require.NoError(t, e.Subscribe(buyer, id, oneToken, nil))
	require.Len(t, staked.minted, 1)
	first := new(big.Int).Set(staked.minted[0].q)
	require.True(t, first.Sign() > 0)

	bc.Advance(10)
	require.NoError(t, e.Subscribe(buyer, id, oneToken, nil))
	require.Len(t, staked.minted, 2)

	sub := e.SubscriptionOf(id)
	expectedTotal := new(big.Int).Add(first, staked.minted[1].q)
	require.Equal(t, expectedTotal, sub.TotalSold)
}

func TestSubscribeBelowMinSubscriptionAmountFails(t *testing.T) {
	e, l, prices, _, _ := newEngine(t)
	prices.Set(govCurrency, stableToken, fixedpoint.UFromInt(1))
	prices.Set(stableToken, stableToken, fixedpoint.UFromInt(1))
	require.NoError(t, l.Deposit(stableToken, buyer, big.NewInt(1_000)))

	id, err := e.CreateSubscription(governor, Subscription{
		Currency:      stableToken,
		VestingPeriod: 1,
		MinAmount:     big.NewInt(10_000),
		MinRatio:      fixedpoint.UFromRat(1, 1000),
		Discount:      Discount{Max: fixedpoint.ZeroI(), Interval: 1},
	})
	require.NoError(t, err)

	err = e.Subscribe(buyer, id, big.NewInt(1_000), nil)
	require.ErrorIs(t, err, ErrBelowMinSubscriptionAmount)
}

func TestSubscribeAboveCapacityFails(t *testing.T) {
	e, l, prices, _, _ := newEngine(t)
	prices.Set(govCurrency, stableToken, fixedpoint.UFromInt(1))
	prices.Set(stableToken, stableToken, fixedpoint.UFromInt(1))
	require.NoError(t, l.Deposit(stableToken, buyer, big.NewInt(1_000)))

	id, err := e.CreateSubscription(governor, Subscription{
		Currency:      stableToken,
		VestingPeriod: 1,
		MinAmount:     big.NewInt(1),
		MinRatio:      fixedpoint.UFromRat(1, 1000),
		Amount:        big.NewInt(100),
		Discount:      Discount{Max: fixedpoint.ZeroI(), Interval: 1},
	})
	require.NoError(t, err)

	err = e.Subscribe(buyer, id, big.NewInt(1_000), nil)
	require.ErrorIs(t, err, ErrSubscriptionIsFull)
}

func TestSubscribeBelowCallerMinTargetFails(t *testing.T) {
	e, l, prices, _, _ := newEngine(t)
	prices.Set(govCurrency, stableToken, fixedpoint.UFromInt(2))
	prices.Set(stableToken, stableToken, fixedpoint.UFromInt(1))
	require.NoError(t, l.Deposit(stableToken, buyer, big.NewInt(1_000)))

	id, err := e.CreateSubscription(governor, Subscription{
		Currency:      stableToken,
		VestingPeriod: 1,
		MinAmount:     big.NewInt(1),
		MinRatio:      fixedpoint.UFromRat(1, 1000),
		Discount:      Discount{Max: fixedpoint.ZeroI(), Interval: 1},
	})
	require.NoError(t, err)

	err = e.Subscribe(buyer, id, big.NewInt(1_000), big.NewInt(600)) // quote is 500
	require.ErrorIs(t, err, ErrBelowMinTargetAmount)
}

func TestCreateSubscriptionRejectsUnauthorizedCaller(t *testing.T) {
	e, _, _, _, _ := newEngine(t)
	_, err := e.CreateSubscription(buyer, Subscription{
		Currency: stableToken,
		MinRatio: fixedpoint.UFromRat(1, 1000),
	})
	require.ErrorIs(t, err, authz.ErrBadOrigin)
}

func TestCreateSubscriptionRejectsZeroMinRatio(t *testing.T) {
	e, _, _, _, _ := newEngine(t)
	_, err := e.CreateSubscription(governor, Subscription{Currency: stableToken})
	require.ErrorIs(t, err, ErrZeroMinRatio)
}

func TestCloseSubscriptionThenSubscribeNotFound(t *testing.T) {
	e, _, prices, _, _ := newEngine(t)
	prices.Set(govCurrency, stableToken, fixedpoint.UFromInt(1))
	prices.Set(stableToken, stableToken, fixedpoint.UFromInt(1))

	id, err := e.CreateSubscription(governor, Subscription{
		Currency: stableToken,
		MinRatio: fixedpoint.UFromRat(1, 1000),
		Discount: Discount{Max: fixedpoint.ZeroI(), Interval: 1},
	})
	require.NoError(t, err)
	require.NoError(t, e.CloseSubscription(governor, id))

	err = e.Subscribe(buyer, id, big.NewInt(1), nil)
	require.ErrorIs(t, err, ErrSubscriptionNotFound)
}
