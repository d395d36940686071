// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dstake implements the flat DAO staking ledger: a share-based
// pool over one underlying currency, where an account's claim on the pool's
// principal grows and shrinks only through Stake/Unstake itself (there is no
// vesting, no discount curve, no exchange-rate oracle — see steng for that).
// Grounded on original_source/treasury-staking/src/lib.rs, whose stake/
// unstake/unstake_all calls were left as //TODO stubs; this fills them in
// with the standard share-pool bookkeeping that StakeInfo{shares, withdrawn}
// implies (shares represent a claim on Principal, redeemable pro rata).
package dstake

import (
	"math/big"
	"sync"

	"github.com/luxfi/log"

	"github.com/aquadao/treasury/events"
	"github.com/aquadao/treasury/ledger"
)

// Engine is the flat DAO staking ledger.
type Engine struct {
	mu sync.Mutex

	cfg    Config
	ledger ledger.MultiCurrency
	bus    *events.Bus
	log    log.Logger

	totalShares    *big.Int
	totalWithdrawn *big.Int
	principal      *big.Int
	stakeInfos     map[ledger.AccountID]StakeInfo
}

// New builds an Engine.
func New(cfg Config, cur ledger.MultiCurrency, bus *events.Bus, logger log.Logger) *Engine {
	return &Engine{
		cfg:            cfg,
		ledger:         cur,
		bus:            bus,
		log:            logger,
		totalShares:    big.NewInt(0),
		totalWithdrawn: big.NewInt(0),
		principal:      big.NewInt(0),
		stakeInfos:     make(map[ledger.AccountID]StakeInfo),
	}
}

// TotalShares returns the pool's current share supply.
func (e *Engine) TotalShares() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.totalShares)
}

// TotalWithdrawn returns the cumulative underlying ever unstaked.
func (e *Engine) TotalWithdrawn() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.totalWithdrawn)
}

// Principal returns the pool's current underlying balance.
func (e *Engine) Principal() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.principal)
}

// StakeInfoOf returns a snapshot of who's position, zero-valued if who has
// never staked.
func (e *Engine) StakeInfoOf(who ledger.AccountID) StakeInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	info, ok := e.stakeInfos[who]
	if !ok {
		return StakeInfo{Shares: big.NewInt(0), Withdrawn: big.NewInt(0)}
	}
	return StakeInfo{Shares: new(big.Int).Set(info.Shares), Withdrawn: new(big.Int).Set(info.Withdrawn)}
}

// Stake deposits amount of the configured currency into the pool, minting
// shares at the pool's current price (principal / total_shares), or 1:1 if
// the pool is currently empty.
func (e *Engine) Stake(who ledger.AccountID, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	shares := e.sharesForDepositLocked(amount)

	if err := e.ledger.Transfer(e.cfg.Currency, who, e.cfg.PalletAccount, amount); err != nil {
		return err
	}

	info := e.stakeInfos[who]
	if info.Shares == nil {
		info = StakeInfo{Shares: big.NewInt(0), Withdrawn: big.NewInt(0)}
	}
	info.Shares = new(big.Int).Add(info.Shares, shares)
	e.stakeInfos[who] = info

	e.totalShares = new(big.Int).Add(e.totalShares, shares)
	e.principal = new(big.Int).Add(e.principal, amount)

	e.bus.Emit(Staked{Who: who, Amount: new(big.Int).Set(amount)})
	return nil
}

// Unstake withdraws amount of underlying from who's position, burning the
// shares it represents at the pool's current price.
func (e *Engine) Unstake(who ledger.AccountID, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	info, ok := e.stakeInfos[who]
	if !ok || info.Shares.Sign() == 0 {
		return ErrNothingStaked
	}
	value := e.shareValueLocked(info.Shares)
	if amount.Cmp(value) > 0 {
		return ErrInsufficientShares
	}

	shares := e.sharesForWithdrawalLocked(amount, info.Shares)
	return e.settleUnstakeLocked(who, info, shares, amount)
}

// UnstakeAll withdraws who's entire position: every share it holds, redeemed
// for its full present value, matching unstake_all's "redeem everything"
// contract (the original stub always emitted amount=0; this ledger computes
// it from the caller's actual position).
func (e *Engine) UnstakeAll(who ledger.AccountID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	info, ok := e.stakeInfos[who]
	if !ok || info.Shares.Sign() == 0 {
		return ErrNothingStaked
	}
	amount := e.shareValueLocked(info.Shares)
	return e.settleUnstakeLocked(who, info, new(big.Int).Set(info.Shares), amount)
}

// settleUnstakeLocked burns shares from who's position, moves amount back out
// of the pallet account, and updates the pool-wide counters. Caller holds
// e.mu.
func (e *Engine) settleUnstakeLocked(who ledger.AccountID, info StakeInfo, shares, amount *big.Int) error {
	if err := e.ledger.Transfer(e.cfg.Currency, e.cfg.PalletAccount, who, amount); err != nil {
		return err
	}

	info.Shares = new(big.Int).Sub(info.Shares, shares)
	info.Withdrawn = new(big.Int).Add(info.Withdrawn, amount)
	e.stakeInfos[who] = info

	e.totalShares = new(big.Int).Sub(e.totalShares, shares)
	e.principal = new(big.Int).Sub(e.principal, amount)
	e.totalWithdrawn = new(big.Int).Add(e.totalWithdrawn, amount)

	// The ledger has no transfer fee of its own (see steng for the unstake
	// fee STE's staked-token exchange charges); fee is always zero here,
	// matching the original stub's `let fee = 0`.
	e.bus.Emit(Unstaked{Who: who, Amount: new(big.Int).Set(amount), Fee: big.NewInt(0)})
	return nil
}

// sharesForDepositLocked returns the number of shares amount buys at the
// pool's current price. Caller holds e.mu.
func (e *Engine) sharesForDepositLocked(amount *big.Int) *big.Int {
	if e.totalShares.Sign() == 0 || e.principal.Sign() == 0 {
		return new(big.Int).Set(amount)
	}
	shares := new(big.Int).Mul(amount, e.totalShares)
	return shares.Quo(shares, e.principal)
}

// shareValueLocked returns the present underlying value of shares at the
// pool's current price. Caller holds e.mu.
func (e *Engine) shareValueLocked(shares *big.Int) *big.Int {
	if e.totalShares.Sign() == 0 {
		return big.NewInt(0)
	}
	value := new(big.Int).Mul(shares, e.principal)
	return value.Quo(value, e.totalShares)
}

// sharesForWithdrawalLocked returns the number of shares redeemed to pay out
// amount, rounded up so the pool never pays out more value than it burns,
// and clamped to the caller's held shares. Caller holds e.mu.
func (e *Engine) sharesForWithdrawalLocked(amount, held *big.Int) *big.Int {
	numerator := new(big.Int).Mul(amount, e.totalShares)
	shares := new(big.Int).Quo(numerator, e.principal)
	remainder := new(big.Int).Mod(numerator, e.principal)
	if remainder.Sign() != 0 {
		shares.Add(shares, big.NewInt(1))
	}
	if shares.Cmp(held) > 0 {
		shares = new(big.Int).Set(held)
	}
	return shares
}
