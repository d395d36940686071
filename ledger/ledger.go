// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger implements the MultiCurrency / MultiLockableCurrency
// contract spec.md §6 models as "out of scope: the host ledger's
// account/balance primitives". It is a self-contained, mutex-guarded,
// in-memory multi-currency balance sheet with named locks, standing in for
// whatever balances pallet a host chain would actually provide. Grounded on
// the teacher's StateDB balance-mutation shape in dex/pool_manager.go
// (GetBalance/AddBalance/SubBalance), generalized from a single native asset
// to an arbitrary currency.ID keyspace.
package ledger

import (
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/aquadao/treasury/currency"
)

// AccountID is the ledger's account representation. The teacher's precompile
// packages use common.Address as the universal identity throughout (see
// dex/types.go Position.Owner, dex/liquid.go LiquidAccount.Owner); the
// treasury core reuses it rather than inventing a parallel account type.
type AccountID = common.Address

// LockIdentifier names a named lock, matching spec.md §6's LockIdentifier
// configuration constant (an 8-byte tag, the same width Substrate balances
// locks use).
type LockIdentifier [8]byte

var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrLockedBalance       = errors.New("ledger: transfer would violate a lock")
)

// MultiCurrency is the read/transfer surface STE, SUB and ALM consume.
type MultiCurrency interface {
	TotalIssuance(c currency.ID) *big.Int
	TotalBalance(c currency.ID, acct AccountID) *big.Int
	FreeBalance(c currency.ID, acct AccountID) *big.Int
	Transfer(c currency.ID, from, to AccountID, amount *big.Int) error
	Deposit(c currency.ID, acct AccountID, amount *big.Int) error
	Withdraw(c currency.ID, acct AccountID, amount *big.Int) error
}

// MultiLockableCurrency adds named-lock management, used by STE to enforce
// vesting on staked-token balances.
type MultiLockableCurrency interface {
	MultiCurrency
	SetLock(id LockIdentifier, c currency.ID, acct AccountID, amount *big.Int) error
	RemoveLock(id LockIdentifier, c currency.ID, acct AccountID) error
}

type balanceKey struct {
	c    currency.ID
	acct AccountID
}

type lockKey struct {
	id   LockIdentifier
	c    currency.ID
	acct AccountID
}

// Ledger is the in-memory MultiLockableCurrency implementation.
type Ledger struct {
	mu        sync.Mutex
	balances  map[balanceKey]*big.Int
	issuance  map[currency.ID]*big.Int
	locks     map[lockKey]*big.Int
	maxLocked map[balanceKey]*big.Int // cached max-over-locks per (currency, account)
}

var _ MultiLockableCurrency = (*Ledger)(nil)

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances:  make(map[balanceKey]*big.Int),
		issuance:  make(map[currency.ID]*big.Int),
		locks:     make(map[lockKey]*big.Int),
		maxLocked: make(map[balanceKey]*big.Int),
	}
}

func zeroIfNil(n *big.Int) *big.Int {
	if n == nil {
		return big.NewInt(0)
	}
	return n
}

// TotalIssuance returns the sum ever deposited minus ever withdrawn for c.
func (l *Ledger) TotalIssuance(c currency.ID) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(zeroIfNil(l.issuance[c]))
}

// TotalBalance returns acct's full balance of c, locked or not.
func (l *Ledger) TotalBalance(c currency.ID, acct AccountID) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(zeroIfNil(l.balances[balanceKey{c, acct}]))
}

// FreeBalance returns acct's balance of c minus the largest single lock on
// it (locks do not stack; the strictest lock governs), matching the
// Substrate balances-pallet semantics the original pallets assume.
func (l *Ledger) FreeBalance(c currency.ID, acct AccountID) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.freeBalanceLocked(c, acct)
}

func (l *Ledger) freeBalanceLocked(c currency.ID, acct AccountID) *big.Int {
	total := zeroIfNil(l.balances[balanceKey{c, acct}])
	locked := zeroIfNil(l.maxLocked[balanceKey{c, acct}])
	free := new(big.Int).Sub(total, locked)
	if free.Sign() < 0 {
		free.SetInt64(0)
	}
	return free
}

// Deposit credits amount of c to acct, increasing total issuance.
func (l *Ledger) Deposit(c currency.ID, acct AccountID, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := balanceKey{c, acct}
	l.balances[key] = new(big.Int).Add(zeroIfNil(l.balances[key]), amount)
	l.issuance[c] = new(big.Int).Add(zeroIfNil(l.issuance[c]), amount)
	return nil
}

// Withdraw debits amount of c from acct's free balance, decreasing total
// issuance. Fails if amount exceeds the free (unlocked) balance.
func (l *Ledger) Withdraw(c currency.ID, acct AccountID, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.freeBalanceLocked(c, acct).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	key := balanceKey{c, acct}
	l.balances[key] = new(big.Int).Sub(l.balances[key], amount)
	l.issuance[c] = new(big.Int).Sub(l.issuance[c], amount)
	return nil
}

// Transfer moves amount of c from the free balance of from to to.
func (l *Ledger) Transfer(c currency.ID, from, to AccountID, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.freeBalanceLocked(c, from).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	fromKey, toKey := balanceKey{c, from}, balanceKey{c, to}
	l.balances[fromKey] = new(big.Int).Sub(l.balances[fromKey], amount)
	l.balances[toKey] = new(big.Int).Add(zeroIfNil(l.balances[toKey]), amount)
	return nil
}

// SetLock overwrites the lock named id on (c, acct) with amount, recomputing
// the cached max-over-locks used by FreeBalance.
func (l *Ledger) SetLock(id LockIdentifier, c currency.ID, acct AccountID, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locks[lockKey{id, c, acct}] = new(big.Int).Set(amount)
	l.recomputeMaxLocked(c, acct)
	return nil
}

// RemoveLock removes the lock named id from (c, acct).
func (l *Ledger) RemoveLock(id LockIdentifier, c currency.ID, acct AccountID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, lockKey{id, c, acct})
	l.recomputeMaxLocked(c, acct)
	return nil
}

// recomputeMaxLocked must be called with l.mu held.
func (l *Ledger) recomputeMaxLocked(c currency.ID, acct AccountID) {
	max := big.NewInt(0)
	for k, amt := range l.locks {
		if k.c == c && k.acct == acct && amt.Cmp(max) > 0 {
			max = amt
		}
	}
	key := balanceKey{c, acct}
	if max.Sign() == 0 {
		delete(l.maxLocked, key)
		return
	}
	l.maxLocked[key] = max
}

// SetBalanceForTesting seeds acct's balance of c without touching issuance
// bookkeeping correctness guarantees beyond what Deposit already provides;
// exported for test setup convenience (mirrors dex/liquid_test.go's
// setBalance helper).
func (l *Ledger) SetBalanceForTesting(c currency.ID, acct AccountID, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := balanceKey{c, acct}
	old := zeroIfNil(l.balances[key])
	delta := new(big.Int).Sub(amount, old)
	l.balances[key] = new(big.Int).Set(amount)
	l.issuance[c] = new(big.Int).Add(zeroIfNil(l.issuance[c]), delta)
}
