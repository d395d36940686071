// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package subeng

import (
	"math/big"

	"github.com/aquadao/treasury/clock"
	"github.com/aquadao/treasury/currency"
	"github.com/aquadao/treasury/fixedpoint"
	"github.com/aquadao/treasury/ledger"
)

// Discount describes the idle-accrual, sale-decay discount curve attached to
// a subscription (spec.md §4.2). Max, IncOnIdle and DecPerUnit are signed
// fixed-point rates, matching original_source/dao/src/lib.rs's DiscountRate =
// FixedI128 (even Max, conceptually never negative but stored in the same
// signed type everything else in the curve uses); Interval is a block count.
type Discount struct {
	Max        fixedpoint.I // ceiling the accrued discount saturates at
	Interval   clock.BlockNumber
	IncOnIdle  fixedpoint.I // added per full Interval elapsed with no sale
	DecPerUnit fixedpoint.I // subtracted per whole unit of G sold since
}

// Subscription is a bonding-curve sale of G against a single payment
// currency, matching spec.md §3's Subscription record.
type Subscription struct {
	ID            uint32
	Currency      currency.ID // c, the accepted payment currency
	VestingPeriod clock.BlockNumber
	MinAmount     *big.Int     // floor on the quoted q
	MinRatio      fixedpoint.U // caps q at floor(payment / MinRatio)
	Amount        *big.Int     // total G capacity, nil means unbounded
	Discount      Discount

	TotalSold    *big.Int
	LastSoldAt   clock.BlockNumber
	LastDiscount fixedpoint.I
}

// Update carries the optional fields update_subscription may change;
// a nil field leaves the corresponding Subscription field untouched.
type Update struct {
	VestingPeriod *clock.BlockNumber
	MinAmount     *big.Int
	MinRatio      *fixedpoint.U
	Amount        *big.Int
	Discount      *Discount
}

// Config holds the Subscription Engine's configuration constants
// (spec.md §6).
type Config struct {
	Governance    currency.ID // G
	Stable        currency.ID // the unit every price is quoted against
	PalletAccount ledger.AccountID
	// Decimals supplies dec(c) for every currency the engine is asked to
	// price; missing entries surface as ErrNoDecimalsInfo.
	Decimals map[currency.ID]uint8
}

// Events - Subscription Engine
type SubscriptionCreated struct {
	ID       uint32
	Currency currency.ID
	Amount   *big.Int
	Discount Discount
}

type SubscriptionUpdated struct {
	ID     uint32
	Update Update
}

type SubscriptionClosed struct {
	ID uint32
}

type Subscribed struct {
	ID      uint32
	Who     ledger.AccountID
	Payment *big.Int
	Amount  *big.Int // q, the G quoted and vested
}
