// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/aquadao/treasury/currency"
)

var (
	G     = currency.Token("G")
	alice = common.HexToAddress("0x1")
	bob   = common.HexToAddress("0x2")
	lock1 = LockIdentifier{'v', 'e', 's', 't'}
)

func TestDepositWithdrawTransfer(t *testing.T) {
	l := New()
	require.NoError(t, l.Deposit(G, alice, big.NewInt(100)))
	require.Equal(t, big.NewInt(100), l.TotalIssuance(G))
	require.Equal(t, big.NewInt(100), l.TotalBalance(G, alice))

	require.NoError(t, l.Transfer(G, alice, bob, big.NewInt(40)))
	require.Equal(t, big.NewInt(60), l.TotalBalance(G, alice))
	require.Equal(t, big.NewInt(40), l.TotalBalance(G, bob))

	require.NoError(t, l.Withdraw(G, bob, big.NewInt(10)))
	require.Equal(t, big.NewInt(30), l.TotalBalance(G, bob))
	require.Equal(t, big.NewInt(90), l.TotalIssuance(G))
}

func TestInsufficientBalance(t *testing.T) {
	l := New()
	require.NoError(t, l.Deposit(G, alice, big.NewInt(5)))
	err := l.Transfer(G, alice, bob, big.NewInt(6))
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestLocksBoundFreeBalance(t *testing.T) {
	l := New()
	require.NoError(t, l.Deposit(G, alice, big.NewInt(100)))
	require.NoError(t, l.SetLock(lock1, G, alice, big.NewInt(80)))
	require.Equal(t, big.NewInt(20), l.FreeBalance(G, alice))

	err := l.Transfer(G, alice, bob, big.NewInt(50))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	require.NoError(t, l.RemoveLock(lock1, G, alice))
	require.Equal(t, big.NewInt(100), l.FreeBalance(G, alice))
}

func TestSetLockReplacesRatherThanStacks(t *testing.T) {
	l := New()
	require.NoError(t, l.Deposit(G, alice, big.NewInt(100)))
	require.NoError(t, l.SetLock(lock1, G, alice, big.NewInt(50)))
	require.NoError(t, l.SetLock(lock1, G, alice, big.NewInt(10)))
	require.Equal(t, big.NewInt(90), l.FreeBalance(G, alice))
}
