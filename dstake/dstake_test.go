// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package dstake

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/aquadao/treasury/currency"
	"github.com/aquadao/treasury/events"
	"github.com/aquadao/treasury/ledger"
)

var (
	stakedCurrency = currency.Token("USD")
	pallet         = common.HexToAddress("0xFEED")
	alice          = common.HexToAddress("0xA11CE")
	bob            = common.HexToAddress("0xB0B")
)

func newEngine(t *testing.T) (*Engine, *ledger.Ledger) {
	t.Helper()
	l := ledger.New()
	cfg := Config{Currency: stakedCurrency, PalletAccount: pallet}
	e := New(cfg, l, events.NewBus(), log.NewTestLogger(log.InfoLevel))
	return e, l
}

func TestStakeIntoEmptyPoolMintsSharesOneToOne(t *testing.T) {
	e, l := newEngine(t)
	require.NoError(t, l.Deposit(stakedCurrency, alice, big.NewInt(1_000)))

	require.NoError(t, e.Stake(alice, big.NewInt(600)))

	require.Equal(t, big.NewInt(600), e.StakeInfoOf(alice).Shares)
	require.Equal(t, big.NewInt(600), e.TotalShares())
	require.Equal(t, big.NewInt(600), e.Principal())
	require.Equal(t, big.NewInt(400), l.FreeBalance(stakedCurrency, alice))
	require.Equal(t, big.NewInt(600), l.FreeBalance(stakedCurrency, pallet))
}

func TestStakeAfterDonationMintsFewerSharesPerUnit(t *testing.T) {
	e, l := newEngine(t)
	require.NoError(t, l.Deposit(stakedCurrency, alice, big.NewInt(1_000)))
	require.NoError(t, l.Deposit(stakedCurrency, bob, big.NewInt(1_000)))

	require.NoError(t, e.Stake(alice, big.NewInt(1_000))) // 1000 shares at price 1

	// Principal grows behind the shares' backs (e.g. a yield sweep crediting
	// the pallet account directly); bob's deposit now buys half as many
	// shares per unit as alice's did.
	require.NoError(t, l.Deposit(stakedCurrency, pallet, big.NewInt(1_000)))
	e.principal = new(big.Int).Add(e.principal, big.NewInt(1_000))

	require.NoError(t, e.Stake(bob, big.NewInt(1_000)))
	require.Equal(t, big.NewInt(500), e.StakeInfoOf(bob).Shares)
	require.Equal(t, big.NewInt(1_500), e.TotalShares())
}

func TestUnstakePartialBurnsProportionalShares(t *testing.T) {
	e, l := newEngine(t)
	require.NoError(t, l.Deposit(stakedCurrency, alice, big.NewInt(1_000)))
	require.NoError(t, e.Stake(alice, big.NewInt(1_000)))

	require.NoError(t, e.Unstake(alice, big.NewInt(400)))

	require.Equal(t, big.NewInt(600), e.StakeInfoOf(alice).Shares)
	require.Equal(t, big.NewInt(400), e.StakeInfoOf(alice).Withdrawn)
	require.Equal(t, big.NewInt(600), e.TotalShares())
	require.Equal(t, big.NewInt(600), e.Principal())
	require.Equal(t, big.NewInt(400), e.TotalWithdrawn())
	require.Equal(t, big.NewInt(400), l.FreeBalance(stakedCurrency, alice))
}

func TestUnstakeAboveValueFails(t *testing.T) {
	e, l := newEngine(t)
	require.NoError(t, l.Deposit(stakedCurrency, alice, big.NewInt(1_000)))
	require.NoError(t, e.Stake(alice, big.NewInt(1_000)))

	err := e.Unstake(alice, big.NewInt(1_001))
	require.ErrorIs(t, err, ErrInsufficientShares)
}

func TestUnstakeWithNoPositionFails(t *testing.T) {
	e, _ := newEngine(t)
	err := e.Unstake(alice, big.NewInt(1))
	require.ErrorIs(t, err, ErrNothingStaked)
}

func TestUnstakeAllRedeemsFullPositionAndClearsShares(t *testing.T) {
	e, l := newEngine(t)
	require.NoError(t, l.Deposit(stakedCurrency, alice, big.NewInt(1_000)))
	require.NoError(t, l.Deposit(stakedCurrency, bob, big.NewInt(1_000)))
	require.NoError(t, e.Stake(alice, big.NewInt(1_000)))
	require.NoError(t, e.Stake(bob, big.NewInt(1_000)))

	require.NoError(t, e.UnstakeAll(alice))

	require.Equal(t, big.NewInt(0), e.StakeInfoOf(alice).Shares)
	require.Equal(t, big.NewInt(1_000), e.StakeInfoOf(alice).Withdrawn)
	require.Equal(t, big.NewInt(1_000), l.FreeBalance(stakedCurrency, alice))
	require.Equal(t, big.NewInt(1_000), e.TotalShares()) // bob's position untouched
	require.Equal(t, big.NewInt(1_000), e.Principal())
}

func TestUnstakeAllWithNoPositionFails(t *testing.T) {
	e, _ := newEngine(t)
	err := e.UnstakeAll(alice)
	require.ErrorIs(t, err, ErrNothingStaked)
}
