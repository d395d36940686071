// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package steng

import (
	"math/big"

	"github.com/aquadao/treasury/clock"
	"github.com/aquadao/treasury/currency"
	"github.com/aquadao/treasury/fixedpoint"
	"github.com/aquadao/treasury/ledger"
)

// Chunk is a single vesting lock: amount of S unlocking at block UnlockAt.
type Chunk struct {
	UnlockAt clock.BlockNumber
	Amount   *big.Int
}

// BondingLedger is a per-account ordered sequence of vesting chunks plus
// their running total, matching spec.md §3's BondingLedger. Chunks are
// appended in call order and never merged or sorted, so UnlockAt does not
// necessarily increase: two mints in the same block, or mints with different
// vesting periods, can append a chunk whose UnlockAt equals or precedes an
// earlier one's. Claim scans every chunk, so release does not depend on order.
type BondingLedger struct {
	Chunks []Chunk
	Total  *big.Int
}

func newBondingLedger() *BondingLedger {
	return &BondingLedger{Total: big.NewInt(0)}
}

// Config holds the Staked-Token Engine's configuration constants
// (spec.md §6).
type Config struct {
	Governance          currency.ID // G
	Staked              currency.ID // S
	PalletAccount       ledger.AccountID
	DaoAccount          ledger.AccountID
	FeeDestAccount      ledger.AccountID
	RewardDestAccount   ledger.AccountID
	TreasuryShare       fixedpoint.U
	DaoShare            fixedpoint.U
	DefaultExchangeRate fixedpoint.U // X0, must be nonzero
	InflationPeriod     uint64       // N blocks, > 0
	InflationRate       fixedpoint.U
	MaxVestingChunks    int
	MinVestingAmount    *big.Int
	LockID              ledger.LockIdentifier
}

// Events - Staked-Token Engine
type Staked struct {
	Who    ledger.AccountID
	Amount *big.Int // G transferred in
	Shares *big.Int // S credited
}

type Unstaked struct {
	Who      ledger.AccountID
	Shares   *big.Int // S burned
	Received *big.Int // G received after fee
	Fee      *big.Int // G routed to FeeDestAccount
}

type Claimed struct {
	Who      ledger.AccountID
	Released *big.Int // S unlocked
}

type UnstakeFeeRateUpdated struct {
	Rate fixedpoint.U
}

type VestingAdded struct {
	Who      ledger.AccountID
	UnlockAt clock.BlockNumber
	Amount   *big.Int // S locked
}

// RewardHook is notified whenever reward-destination S credit happens
// (mint_for_subscription and inflation both route a share there).
type RewardHook interface {
	OnReward(who ledger.AccountID, sharesCredited *big.Int)
}

// NoopRewardHook discards notifications.
type NoopRewardHook struct{}

func (NoopRewardHook) OnReward(ledger.AccountID, *big.Int) {}
