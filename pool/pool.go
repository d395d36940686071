// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pool implements the DEX contract spec.md §6 models as an injected
// dependency: an internal constant-product (x*y=k) liquidity pool that ALM's
// strategies provision liquidity into. Grounded on the pool/position
// lifecycle in dex/pool_manager.go (Initialize / ModifyLiquidity /
// calculateLiquidityAmounts), simplified from Uniswap-v4-style concentrated
// liquidity to a single constant-product reserve pair per
// spec.md §1 ("no order book, AMM math, or oracle aggregation" beyond what
// ALM needs to exercise).
package pool

import (
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/aquadao/treasury/currency"
	"github.com/aquadao/treasury/ledger"
)

var (
	ErrInvalidTradingPair = errors.New("pool: invalid trading pair")
	ErrInsufficientShares = errors.New("pool: minted shares below minimum")
	ErrNoLiquidity        = errors.New("pool: pool has no liquidity")
)

// DEX is the contract ALM consumes.
type DEX interface {
	// AddLiquidity provisions amtA of a and amtB of b from who into the
	// (a, b) pool, minting LP-share tokens to who (or, if stakeShares,
	// retaining them in the pool's own sovereign account — mirroring a
	// "stake the LP position" option some DEXes expose). Fails
	// ErrInsufficientShares if the minted amount is below minShares.
	AddLiquidity(who ledger.AccountID, a, b currency.ID, amtA, amtB *big.Int, minShares *big.Int, stakeShares bool) (*big.Int, error)
	// PairLPShare returns the LP-share currency id for the pair (a, b).
	PairLPShare(a, b currency.ID) currency.ID
}

type reserves struct {
	a, b        currency.ID
	reserveA    *big.Int
	reserveB    *big.Int
	totalShares *big.Int
}

func pairKey(a, b currency.ID) (currency.ID, currency.ID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

// Pool is the in-memory constant-product DEX implementation.
type Pool struct {
	mu       sync.Mutex
	ledger   ledger.MultiCurrency
	sovereig common.Address
	reserves map[currency.ID]*reserves // keyed by the pair's LP-share id
}

var _ DEX = (*Pool)(nil)

// New returns a Pool that escrows reserves in sovereign and mutates balances
// through cur.
func New(cur ledger.MultiCurrency, sovereign common.Address) *Pool {
	return &Pool{
		ledger:   cur,
		sovereig: sovereign,
		reserves: make(map[currency.ID]*reserves),
	}
}

// PairLPShare implements DEX.
func (p *Pool) PairLPShare(a, b currency.ID) currency.ID {
	return currency.LPShare(a, b)
}

// AddLiquidity implements DEX using the standard constant-product formula:
// the first deposit into a pair sets the price and mints shares =
// floor(sqrt(amtA*amtB)); subsequent deposits mint shares proportional to
// the smaller of the two reserve ratios, rounding down in the depositor's
// favor-neutral direction (floor), matching the teacher's
// calculateLiquidityAmounts rounding discipline in dex/pool_manager.go. The
// two escrow transfers and the share deposit undo themselves in reverse
// order if a later step fails, so a caller never has one leg of the pair
// collected with nothing escrowed or minted for it.
func (p *Pool) AddLiquidity(who ledger.AccountID, a, b currency.ID, amtA, amtB *big.Int, minShares *big.Int, stakeShares bool) (*big.Int, error) {
	if a == b {
		return nil, ErrInvalidTradingPair
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ca, cb := pairKey(a, b)
	lp := currency.LPShare(a, b)
	r, ok := p.reserves[lp]
	if !ok {
		r = &reserves{a: ca, b: cb, reserveA: big.NewInt(0), reserveB: big.NewInt(0), totalShares: big.NewInt(0)}
		p.reserves[lp] = r
	}

	// Normalize (amtA, amtB) onto the canonical (ca, cb) ordering.
	inA, inB := amtA, amtB
	if ca != a {
		inA, inB = amtB, amtA
	}

	var shares *big.Int
	if r.totalShares.Sign() == 0 {
		shares = new(big.Int).Mul(inA, inB)
		shares.Sqrt(shares)
	} else {
		shareFromA := new(big.Int).Mul(inA, r.totalShares)
		shareFromA.Quo(shareFromA, r.reserveA)
		shareFromB := new(big.Int).Mul(inB, r.totalShares)
		shareFromB.Quo(shareFromB, r.reserveB)
		if shareFromA.Cmp(shareFromB) < 0 {
			shares = shareFromA
		} else {
			shares = shareFromB
		}
	}
	if minShares != nil && shares.Cmp(minShares) < 0 {
		return nil, ErrInsufficientShares
	}

	if err := p.ledger.Transfer(ca, who, p.sovereig, inA); err != nil {
		return nil, err
	}
	if err := p.ledger.Transfer(cb, who, p.sovereig, inB); err != nil {
		_ = p.ledger.Transfer(ca, p.sovereig, who, inA)
		return nil, err
	}

	recipient := who
	if stakeShares {
		recipient = p.sovereig
	}
	if err := p.ledger.Deposit(lp, recipient, shares); err != nil {
		_ = p.ledger.Transfer(cb, p.sovereig, who, inB)
		_ = p.ledger.Transfer(ca, p.sovereig, who, inA)
		return nil, err
	}

	r.reserveA.Add(r.reserveA, inA)
	r.reserveB.Add(r.reserveB, inB)
	r.totalShares.Add(r.totalShares, shares)
	return new(big.Int).Set(shares), nil
}

// Reserves returns the current (reserveA, reserveB) for the pair (a, b), in
// the order requested, or (nil, nil) if the pair has never been initialized.
func (p *Pool) Reserves(a, b currency.ID) (*big.Int, *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	lp := currency.LPShare(a, b)
	r, ok := p.reserves[lp]
	if !ok {
		return nil, nil
	}
	if r.a == a {
		return new(big.Int).Set(r.reserveA), new(big.Int).Set(r.reserveB)
	}
	return new(big.Int).Set(r.reserveB), new(big.Int).Set(r.reserveA)
}
