// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle implements the PriceProvider contract spec.md §6 leaves as
// an injected dependency, plus a thin EMA smoothing decorator. Grounded on
// the mark/index price bookkeeping in dex/perpetuals.go (PerpMarket tracks
// both a spot MarkPrice and an oracle IndexPrice with an EMA premium), here
// reduced to the single relative_price(base, quote) the core needs.
package oracle

import (
	"sync"

	"github.com/aquadao/treasury/currency"
	"github.com/aquadao/treasury/fixedpoint"
)

// PriceProvider is the oracle contract: relative_price returns the price of
// base denominated in quote, or ok=false if no price is available.
type PriceProvider interface {
	RelativePrice(base, quote currency.ID) (fixedpoint.U, bool)
}

type pairKey struct {
	base, quote currency.ID
}

// Table is a settable price table: a minimal stand-in for a real oracle
// aggregation pallet, exposing exactly the contract surface the core calls.
type Table struct {
	mu     sync.RWMutex
	prices map[pairKey]fixedpoint.U
}

var _ PriceProvider = (*Table)(nil)

// NewTable returns an empty price table (every pair unpriced).
func NewTable() *Table {
	return &Table{prices: make(map[pairKey]fixedpoint.U)}
}

// Set records the price of base in terms of quote.
func (t *Table) Set(base, quote currency.ID, price fixedpoint.U) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prices[pairKey{base, quote}] = price
}

// Clear removes any recorded price for (base, quote), simulating an oracle
// outage so callers can exercise the NoPrice failure path.
func (t *Table) Clear(base, quote currency.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.prices, pairKey{base, quote})
}

// RelativePrice implements PriceProvider.
func (t *Table) RelativePrice(base, quote currency.ID) (fixedpoint.U, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.prices[pairKey{base, quote}]
	return p, ok
}

// EMA wraps a PriceProvider and smooths its readings with an exponential
// moving average, alpha in (0, 1] fixed-point (alpha=1 disables smoothing).
// Grounded on dex/perpetuals.go's FundingState.PremiumEMA pattern.
type EMA struct {
	mu       sync.Mutex
	inner    PriceProvider
	alpha    fixedpoint.U
	smoothed map[pairKey]fixedpoint.U
}

var _ PriceProvider = (*EMA)(nil)

// NewEMA wraps inner with EMA smoothing at the given alpha.
func NewEMA(inner PriceProvider, alpha fixedpoint.U) *EMA {
	return &EMA{inner: inner, alpha: alpha, smoothed: make(map[pairKey]fixedpoint.U)}
}

// RelativePrice returns the smoothed price, updating the running EMA with
// the inner provider's latest reading on every call.
func (e *EMA) RelativePrice(base, quote currency.ID) (fixedpoint.U, bool) {
	latest, ok := e.inner.RelativePrice(base, quote)
	if !ok {
		return fixedpoint.U{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	key := pairKey{base, quote}
	prev, seen := e.smoothed[key]
	if !seen {
		e.smoothed[key] = latest
		return latest, true
	}
	// ema = alpha*latest + (1-alpha)*prev
	next := e.alpha.Mul(latest).Add(fixedpoint.UFromInt(1).Sub(e.alpha).Mul(prev))
	e.smoothed[key] = next
	return next, true
}
