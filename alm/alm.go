// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package alm implements the Allocation Manager (ALM): tracks a target
// basket of currencies the treasury wants the DAO account's holdings to
// approximate, computes how far the current basket has drifted, and runs
// one configured liquidity-provisioning strategy per rebalance tick to walk
// it back in range. Grounded on
// original_source/adao-manager/src/lib.rs, reworked into the teacher's
// stateful-module idiom (dex/pool_manager.go's position/rebalance shape).
package alm

import (
	"math/big"
	"sync"

	"github.com/luxfi/log"
	"go.uber.org/zap"

	"github.com/aquadao/treasury/authz"
	"github.com/aquadao/treasury/clock"
	"github.com/aquadao/treasury/currency"
	"github.com/aquadao/treasury/events"
	"github.com/aquadao/treasury/fixedpoint"
	"github.com/aquadao/treasury/ledger"
	"github.com/aquadao/treasury/oracle"
	"github.com/aquadao/treasury/pool"
)

// Engine is the Allocation Manager.
type Engine struct {
	mu sync.Mutex

	cfg    Config
	ledger ledger.MultiCurrency
	price  oracle.PriceProvider
	dex    pool.DEX
	origin authz.Origin
	bus    *events.Bus
	log    log.Logger

	targets    map[currency.ID]Allocation
	percents   map[currency.ID]Percent
	strategies []Strategy
}

// New builds an Engine.
func New(cfg Config, cur ledger.MultiCurrency, price oracle.PriceProvider, dex pool.DEX, origin authz.Origin, bus *events.Bus, logger log.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		ledger:   cur,
		price:    price,
		dex:      dex,
		origin:   origin,
		bus:      bus,
		log:      logger,
		targets:  make(map[currency.ID]Allocation),
		percents: make(map[currency.ID]Percent),
	}
}

// SetTargetAllocations is an authorized-origin operation that inserts or
// removes target basket entries: a nil Allocation for a currency removes it,
// matching set_target_allocations' Option<Allocation> semantics.
func (e *Engine) SetTargetAllocations(caller ledger.AccountID, targets map[currency.ID]*Allocation) error {
	if err := authz.Check(e.origin, caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	working := cloneTargets(e.targets)
	emitted := make([]events.Event, 0, len(targets))
	for c, alloc := range targets {
		if alloc != nil {
			working[c] = *alloc
			emitted = append(emitted, TargetAllocationSet{Currency: c, Allocation: *alloc})
		} else {
			delete(working, c)
			emitted = append(emitted, TargetAllocationRemoved{Currency: c})
		}
	}
	return e.commitTargetAllocations(working, emitted)
}

// AdjustTargetAllocations is an authorized-origin operation that applies
// signed deltas to existing target basket entries, saturating each at zero.
func (e *Engine) AdjustTargetAllocations(caller ledger.AccountID, adjustments map[currency.ID]Adjustment) error {
	if err := authz.Check(e.origin, caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	working := cloneTargets(e.targets)
	emitted := make([]events.Event, 0, len(adjustments))
	for c, adj := range adjustments {
		alloc, ok := working[c]
		if !ok {
			return ErrTargetAllocationNotFound
		}
		alloc.Value = saturatingAddSigned(alloc.Value, adj.Value)
		alloc.Range = saturatingAddSigned(alloc.Range, adj.Range)
		working[c] = alloc
		emitted = append(emitted, TargetAllocationAdjusted{Currency: c, Adjustment: adj})
	}
	return e.commitTargetAllocations(working, emitted)
}

// commitTargetAllocations recomputes Percent for the candidate basket and,
// only if that succeeds, replaces e.targets/e.percents and emits the staged
// events — the whole call either takes effect or leaves state untouched,
// matching the #[transactional] wrapper
// original_source/adao-manager/src/lib.rs's set_target_allocations and
// adjust_target_allocations both carry. Caller holds e.mu.
func (e *Engine) commitTargetAllocations(working map[currency.ID]Allocation, emitted []events.Event) error {
	percents, err := computeTargetAllocationPercents(working)
	if err != nil {
		return err
	}
	e.targets = working
	e.percents = percents
	for _, ev := range emitted {
		e.bus.Emit(ev)
	}
	return nil
}

func cloneTargets(targets map[currency.ID]Allocation) map[currency.ID]Allocation {
	cp := make(map[currency.ID]Allocation, len(targets))
	for c, a := range targets {
		cp[c] = a
	}
	return cp
}

// SetStrategies is an authorized-origin operation that replaces the
// round-robin list of rebalance strategies.
func (e *Engine) SetStrategies(caller ledger.AccountID, strategies []Strategy) error {
	if err := authz.Check(e.origin, caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies = strategies
	e.bus.Emit(StrategiesSet{Strategies: strategies})
	return nil
}

// computeTargetAllocationPercents recomputes Percent for every entry in
// targets from the basket's total target value.
func computeTargetAllocationPercents(targets map[currency.ID]Allocation) (map[currency.ID]Percent, error) {
	total := big.NewInt(0)
	for _, alloc := range targets {
		total.Add(total, alloc.Value)
	}
	if total.Sign() == 0 {
		return nil, ErrZeroTargetAllocation
	}

	percents := make(map[currency.ID]Percent, len(targets))
	for c, alloc := range targets {
		value, err := fixedpoint.RatioOf(alloc.Value, total)
		if err != nil {
			return nil, err
		}
		minPct, err := fixedpoint.RatioOf(saturatingSubToZero(alloc.Value, alloc.Range), total)
		if err != nil {
			return nil, err
		}
		maxPct, err := fixedpoint.RatioOf(new(big.Int).Add(alloc.Value, alloc.Range), total)
		if err != nil {
			return nil, err
		}
		percents[c] = Percent{Value: value, Min: minPct, Max: maxPct}
	}
	return percents, nil
}

// currentAllocationsLocked returns the DAO account's present holdings of
// every targeted currency (excluding Governance, whose own-token holdings
// the basket does not value against itself) priced in Stable, plus their
// total value. Caller holds e.mu.
func (e *Engine) currentAllocationsLocked() (map[currency.ID]CurrentAllocation, *big.Int, error) {
	totalValue := big.NewInt(0)
	allocations := make(map[currency.ID]CurrentAllocation)
	for c := range e.targets {
		if c == e.cfg.Governance {
			continue
		}
		price, ok := e.price.RelativePrice(c, e.cfg.Stable)
		if !ok {
			return nil, nil, ErrNoPrice
		}
		amount := e.ledger.TotalBalance(c, e.cfg.DaoAccount)
		value := price.MulBalance(amount)
		totalValue.Add(totalValue, value)
		allocations[c] = CurrentAllocation{Amount: amount, Value: value}
	}
	if totalValue.Sign() == 0 {
		return nil, nil, ErrZeroTargetAllocation
	}
	for c, a := range allocations {
		percent, err := fixedpoint.RatioOf(a.Value, totalValue)
		if err != nil {
			return nil, nil, err
		}
		a.Percent = percent
		allocations[c] = a
	}
	return allocations, totalValue, nil
}

// allocationDiffLocked computes the gap between current and target
// allocation for every currency named in either the current basket or the
// target one. Caller holds e.mu.
func (e *Engine) allocationDiffLocked() (map[currency.ID]Diff, error) {
	current, totalValue, err := e.currentAllocationsLocked()
	if err != nil {
		return nil, err
	}

	diffs := make(map[currency.ID]Diff, len(e.percents))
	for c, target := range e.percents {
		targetValue := target.Value.MulBalance(totalValue)
		price, ok := e.price.RelativePrice(c, e.cfg.Stable)
		if !ok {
			return nil, ErrNoPrice
		}
		targetAmount, err := price.DivBalance(targetValue)
		if err != nil {
			return nil, err
		}

		if cur, ok := current[c]; ok {
			var rangeDiff fixedpoint.I
			switch {
			case cur.Percent.Cmp(target.Min) < 0:
				rangeDiff = fixedpoint.IFromU(target.Min.Sub(cur.Percent)).Mul(fixedpoint.IFromInt(-1))
			case cur.Percent.Cmp(target.Max) > 0:
				rangeDiff = fixedpoint.IFromU(cur.Percent.Sub(target.Max))
			default:
				rangeDiff = fixedpoint.ZeroI()
			}

			var diffPercent fixedpoint.I
			if cur.Percent.Cmp(target.Value) > 0 {
				diffPercent = fixedpoint.IFromU(cur.Percent.Sub(target.Value))
			} else {
				diffPercent = fixedpoint.IFromU(target.Value.Sub(cur.Percent)).Mul(fixedpoint.IFromInt(-1))
			}

			diffs[c] = Diff{
				Current:    cur.Percent,
				Target:     target.Value,
				Diff:       diffPercent,
				RangeDiff:  rangeDiff,
				DiffAmount: new(big.Int).Sub(cur.Amount, targetAmount),
			}
		} else {
			diffs[c] = Diff{
				Current:    fixedpoint.ZeroU(),
				Target:     target.Value,
				Diff:       fixedpoint.IFromU(target.Value).Mul(fixedpoint.IFromInt(-1)),
				RangeDiff:  fixedpoint.IFromU(target.Min).Mul(fixedpoint.IFromInt(-1)),
				DiffAmount: new(big.Int).Neg(targetAmount),
			}
		}
	}

	for c, cur := range current {
		if _, ok := e.percents[c]; ok {
			continue
		}
		diffs[c] = Diff{
			Current:    cur.Percent,
			Target:     fixedpoint.ZeroU(),
			Diff:       fixedpoint.IFromU(cur.Percent),
			RangeDiff:  fixedpoint.IFromU(cur.Percent),
			DiffAmount: new(big.Int).Set(cur.Amount),
		}
	}
	return diffs, nil
}

// OnInitialize runs the per-block rebalance hook (spec.md §4.3): at every
// block where block mod RebalancePeriod == RebalanceOffset, pick the
// round-robin strategy for this tick and run it in isolation. Failures are
// logged and swallowed so one misbehaving strategy cannot brick block
// processing or block the next tick's strategy from running.
func (e *Engine) OnInitialize(block clock.BlockNumber) {
	if e.cfg.RebalancePeriod == 0 || block%e.cfg.RebalancePeriod != e.cfg.RebalanceOffset {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.strategies) == 0 {
		return
	}
	index := (block / e.cfg.RebalancePeriod) % uint64(len(e.strategies))
	strategy := e.strategies[index]

	diff, err := e.allocationDiffLocked()
	if err != nil {
		e.log.Error("computing allocation diff failed, block processing continues",
			zap.Uint64("block", block), zap.Error(err))
		return
	}
	if err := e.rebalanceLocked(strategy, diff); err != nil {
		e.log.Error("rebalance failed, block processing continues",
			zap.Uint64("block", block), zap.Error(err))
	}
}

// rebalanceLocked dispatches to the native-mint or trade-existing-balance
// strategy depending on the strategy's paired currency. Caller holds e.mu.
func (e *Engine) rebalanceLocked(strategy Strategy, diff map[currency.ID]Diff) error {
	lp := e.dex.PairLPShare(e.cfg.Stable, strategy.Kind.Other)
	lpDiff, ok := diff[lp]
	if !ok {
		return nil
	}
	if lpDiff.RangeDiff.Sign() >= 0 {
		return nil
	}
	if strategy.Kind.Other == e.cfg.Governance {
		return e.rebalanceGovernanceLocked(strategy, diff, lpDiff)
	}
	return e.rebalanceOtherLocked(strategy, strategy.Kind.Other, diff, lpDiff)
}

// rebalanceGovernanceLocked mints fresh Governance to pair against Stable
// drawn from the DAO account, matching rebalance_ausd_adao. Stable is moved
// out of the DAO account — the step most likely to fail, on an
// under-funded DAO balance — before any Governance is minted, and the mint
// is undone if the pool add fails afterward, so a rejected trade never
// leaves minted Governance or escrowed Stable stranded in the pallet account
// (spec.md §4.3, §5: the rebalance unit commits in full or not at all).
func (e *Engine) rebalanceGovernanceLocked(strategy Strategy, diff map[currency.ID]Diff, lpDiff Diff) error {
	maxAmount := big.NewInt(0)
	if d, ok := diff[e.cfg.Stable]; ok {
		maxAmount = d.DiffAmount
	}
	amount := new(big.Int).Quo(strategy.tradeAmount(absBig(lpDiff.DiffAmount), maxAmount), big.NewInt(2))
	if amount.Sign() <= 0 {
		return nil
	}

	govPrice, ok := e.price.RelativePrice(e.cfg.Governance, e.cfg.Stable)
	if !ok {
		return ErrNoPrice
	}
	govToMint := govPrice.MulBalance(amount)
	if govToMint.Sign() <= 0 {
		return nil
	}

	if err := e.ledger.Transfer(e.cfg.Stable, e.cfg.DaoAccount, e.cfg.PalletAccount, amount); err != nil {
		return err
	}
	if err := e.ledger.Deposit(e.cfg.Governance, e.cfg.PalletAccount, govToMint); err != nil {
		_ = e.ledger.Transfer(e.cfg.Stable, e.cfg.PalletAccount, e.cfg.DaoAccount, amount)
		return err
	}
	if _, err := e.dex.AddLiquidity(e.cfg.PalletAccount, e.cfg.Governance, e.cfg.Stable, govToMint, amount, big.NewInt(0), false); err != nil {
		_ = e.ledger.Withdraw(e.cfg.Governance, e.cfg.PalletAccount, govToMint)
		_ = e.ledger.Transfer(e.cfg.Stable, e.cfg.PalletAccount, e.cfg.DaoAccount, amount)
		return err
	}

	lpShare := e.dex.PairLPShare(e.cfg.Governance, e.cfg.Stable)
	lpBalance := e.ledger.FreeBalance(lpShare, e.cfg.PalletAccount)
	return e.ledger.Transfer(lpShare, e.cfg.PalletAccount, e.cfg.DaoAccount, lpBalance)
}

// rebalanceOtherLocked pairs Stable against an existing DAO-held balance of
// other, matching rebalance_ausd_other.
func (e *Engine) rebalanceOtherLocked(strategy Strategy, other currency.ID, diff map[currency.ID]Diff, lpDiff Diff) error {
	otherPrice, ok := e.price.RelativePrice(other, e.cfg.Stable)
	if !ok {
		return ErrNoPrice
	}
	maxOtherToAdd := e.ledger.FreeBalance(other, e.cfg.DaoAccount)
	maxOtherToAddAmount := otherPrice.MulBalance(maxOtherToAdd)

	maxAmount := big.NewInt(0)
	if d, ok := diff[e.cfg.Stable]; ok {
		maxAmount = d.DiffAmount
	}
	ceiling := maxAmount
	if maxOtherToAddAmount.Cmp(ceiling) < 0 {
		ceiling = maxOtherToAddAmount
	}
	amount := new(big.Int).Quo(strategy.tradeAmount(absBig(lpDiff.DiffAmount), ceiling), big.NewInt(2))
	otherToAdd := otherPrice.MulBalance(amount)
	if amount.Sign() <= 0 || otherToAdd.Sign() <= 0 {
		return nil
	}

	_, err := e.dex.AddLiquidity(e.cfg.DaoAccount, other, e.cfg.Stable, otherToAdd, amount, big.NewInt(0), false)
	return err
}

func absBig(n *big.Int) *big.Int {
	return new(big.Int).Abs(n)
}

func saturatingSubToZero(a, b *big.Int) *big.Int {
	r := new(big.Int).Sub(a, b)
	if r.Sign() < 0 {
		return big.NewInt(0)
	}
	return r
}

func saturatingAddSigned(base, delta *big.Int) *big.Int {
	r := new(big.Int).Add(base, delta)
	if r.Sign() < 0 {
		return big.NewInt(0)
	}
	return r
}
