// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package subeng implements the Subscription Engine (SUB): bonding-curve
// sales of the governance token G against a configurable payment currency,
// with an idle-accrual / sale-decay discount curve and oracle-priced
// quoting. Grounded on original_source/dao/src/lib.rs, reworked into the
// teacher's stateful-module idiom (dex/liquid.go's exchange-rate vault,
// generalized from a single collateral pair to a per-subscription bonding
// curve).
package subeng

import (
	"math/big"
	"sync"

	"github.com/luxfi/log"

	"github.com/aquadao/treasury/authz"
	"github.com/aquadao/treasury/clock"
	"github.com/aquadao/treasury/events"
	"github.com/aquadao/treasury/fixedpoint"
	"github.com/aquadao/treasury/ledger"
	"github.com/aquadao/treasury/oracle"
	"github.com/aquadao/treasury/steng"
)

// Engine is the Subscription Engine.
type Engine struct {
	mu sync.Mutex

	cfg    Config
	ledger ledger.MultiCurrency
	clock  clock.BlockNumberProvider
	price  oracle.PriceProvider
	origin authz.Origin
	staked steng.StakedTokenManager
	bus    *events.Bus
	log    log.Logger

	subs   map[uint32]*Subscription
	nextID uint32
}

// New builds an Engine.
func New(cfg Config, cur ledger.MultiCurrency, bc clock.BlockNumberProvider, price oracle.PriceProvider, origin authz.Origin, staked steng.StakedTokenManager, bus *events.Bus, logger log.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		ledger: cur,
		clock:  bc,
		price:  price,
		origin: origin,
		staked: staked,
		bus:    bus,
		log:    logger,
		subs:   make(map[uint32]*Subscription),
	}
}

// CreateSubscription is an authorized-origin operation that opens a new
// bonding-curve sale.
func (e *Engine) CreateSubscription(caller ledger.AccountID, cur Subscription) (uint32, error) {
	if err := authz.Check(e.origin, caller); err != nil {
		return 0, err
	}
	if cur.MinRatio.IsZero() {
		return 0, ErrZeroMinRatio
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	cur.ID = id
	cur.TotalSold = big.NewInt(0)
	cur.LastSoldAt = e.clock.CurrentBlockNumber()
	cur.LastDiscount = fixedpoint.ZeroI()
	e.subs[id] = &cur

	e.bus.Emit(SubscriptionCreated{ID: id, Currency: cur.Currency, Amount: cur.Amount, Discount: cur.Discount})
	return id, nil
}

// UpdateSubscription is an authorized-origin operation that patches the
// mutable fields of an existing subscription; nil fields in upd are left
// untouched.
func (e *Engine) UpdateSubscription(caller ledger.AccountID, id uint32, upd Update) error {
	if err := authz.Check(e.origin, caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	sub, ok := e.subs[id]
	if !ok {
		return ErrSubscriptionNotFound
	}
	if upd.VestingPeriod != nil {
		sub.VestingPeriod = *upd.VestingPeriod
	}
	if upd.MinAmount != nil {
		sub.MinAmount = new(big.Int).Set(upd.MinAmount)
	}
	if upd.MinRatio != nil {
		if upd.MinRatio.IsZero() {
			return ErrZeroMinRatio
		}
		sub.MinRatio = *upd.MinRatio
	}
	if upd.Amount != nil {
		sub.Amount = new(big.Int).Set(upd.Amount)
	}
	if upd.Discount != nil {
		sub.Discount = *upd.Discount
	}

	e.bus.Emit(SubscriptionUpdated{ID: id, Update: upd})
	return nil
}

// CloseSubscription is an authorized-origin operation that permanently
// removes a subscription; in-flight quotes already executed are unaffected.
func (e *Engine) CloseSubscription(caller ledger.AccountID, id uint32) error {
	if err := authz.Check(e.origin, caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.subs[id]; !ok {
		return ErrSubscriptionNotFound
	}
	delete(e.subs, id)
	e.bus.Emit(SubscriptionClosed{ID: id})
	return nil
}

// Subscribe quotes and executes a purchase of G against payment of the
// subscription's configured currency, implementing the bonding-curve quote
// math (spec.md §4.2):
//
//	k              = floor((now - last_sold_at) / discount.interval)
//	units_sold     = floor(total_sold / 10^dec(G))
//	inc            = discount.dec_per_unit * units_sold
//	bump           = discount.inc_on_idle * k
//	d              = last_discount + bump - inc
//	price_discount = min(d, discount.max)
//	p0             = price_G * (1 - price_discount)
//	alpha          = price_G * |discount.dec_per_unit|
//	v              = (payment / 10^dec(c)) * price_c
//	z              = 2*alpha*v + p0^2
//	q0             = (sqrt(z) - p0) / alpha          (q0 = v/p0 when alpha == 0)
//	q              = min(q0 converted to a G balance, floor(payment / min_ratio))
func (e *Engine) Subscribe(who ledger.AccountID, id uint32, payment, minTarget *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub, ok := e.subs[id]
	if !ok {
		return ErrSubscriptionNotFound
	}

	priceG, ok := e.price.RelativePrice(e.cfg.Governance, e.cfg.Stable)
	if !ok {
		return ErrNoPrice
	}
	priceC, ok := e.price.RelativePrice(sub.Currency, e.cfg.Stable)
	if !ok {
		return ErrNoPrice
	}
	decG, ok := e.cfg.Decimals[e.cfg.Governance]
	if !ok {
		return ErrNoDecimalsInfo
	}
	decC, ok := e.cfg.Decimals[sub.Currency]
	if !ok {
		return ErrNoDecimalsInfo
	}

	now := e.clock.CurrentBlockNumber()
	var k uint64
	if sub.Discount.Interval > 0 {
		k = (now - sub.LastSoldAt) / sub.Discount.Interval
	}
	unitsSold := pow10Div(sub.TotalSold, decG)
	inc := sub.Discount.DecPerUnit.MulInt(unitsSold)
	bump := sub.Discount.IncOnIdle.MulInt(new(big.Int).SetUint64(k))
	d := sub.LastDiscount.Add(bump).Sub(inc)
	priceDiscount := d.Min(sub.Discount.Max)

	p0 := priceG.Mul(priceDiscount.OneMinus())
	alpha := priceG.Mul(sub.Discount.DecPerUnit.Abs())

	paymentHuman, err := fixedpoint.RatioOf(payment, pow10(decC))
	if err != nil {
		return err
	}
	vHuman := priceC.Mul(paymentHuman)

	var qHuman fixedpoint.U
	if alpha.IsZero() {
		if p0.IsZero() {
			return ErrNoPrice
		}
		qHuman, err = vHuman.Div(p0)
		if err != nil {
			return err
		}
	} else {
		z := alpha.Mul(vHuman).Mul(fixedpoint.UFromInt(2)).Add(p0.Mul(p0))
		numerator := z.Sqrt().Sub(p0)
		qHuman, err = numerator.Div(alpha)
		if err != nil {
			return err
		}
	}
	q := qHuman.MulBalance(pow10(decG))

	qMax, err := sub.MinRatio.DivBalance(payment)
	if err != nil {
		return err
	}
	if qMax.Cmp(q) < 0 {
		q = qMax
	}

	if sub.MinAmount != nil && q.Cmp(sub.MinAmount) < 0 {
		return ErrBelowMinSubscriptionAmount
	}
	if sub.Amount != nil {
		remaining := new(big.Int).Sub(sub.Amount, sub.TotalSold)
		if q.Cmp(remaining) > 0 {
			return ErrSubscriptionIsFull
		}
	}
	if minTarget != nil && q.Cmp(minTarget) < 0 {
		return ErrBelowMinTargetAmount
	}

	// Validate the mint before moving payment into escrow: under the single-
	// threaded block-processing model (spec.md §5) no other operation can run
	// between this check and the transfer below, so a passing check here
	// guarantees MintForSubscription will not reject the call afterward —
	// the caller's payment is never taken only to have nothing minted for it
	// (spec.md §4.2, §5: the whole call commits or leaves state untouched).
	if err := e.staked.CheckMintForSubscription(who, q); err != nil {
		return err
	}
	if err := e.ledger.Transfer(sub.Currency, who, e.cfg.PalletAccount, payment); err != nil {
		return err
	}
	if err := e.staked.MintForSubscription(who, q, sub.VestingPeriod); err != nil {
		return err
	}

	sub.TotalSold.Add(sub.TotalSold, q)
	sub.LastSoldAt = now
	sub.LastDiscount = priceDiscount

	e.bus.Emit(Subscribed{ID: id, Who: who, Payment: new(big.Int).Set(payment), Amount: q})
	return nil
}

// SubscriptionOf returns a snapshot of subscription id, or nil if unknown.
func (e *Engine) SubscriptionOf(id uint32) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub, ok := e.subs[id]
	if !ok {
		return nil
	}
	cp := *sub
	cp.TotalSold = new(big.Int).Set(sub.TotalSold)
	if sub.Amount != nil {
		cp.Amount = new(big.Int).Set(sub.Amount)
	}
	return &cp
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// pow10Div returns floor(amount / 10^n) as a plain integer count.
func pow10Div(amount *big.Int, n uint8) *big.Int {
	return new(big.Int).Quo(amount, pow10(n))
}
