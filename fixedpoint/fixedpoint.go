// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fixedpoint implements the exact integer fixed-point arithmetic the
// treasury core runs on: unsigned ratios (U) for prices and percentages, and
// signed ratios (I) for discount rates, both scaled by a fixed denominator
// chosen so that the denominator itself has an exact integer square root.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"
)

// Acc is the fixed-point denominator, 10^18. Chosen as a perfect square so
// that Sqrt below is exact on its own inputs (sqrt(Acc) = 10^9).
var Acc = big.NewInt(1_000_000_000_000_000_000)

// accSqrt is the exact integer square root of Acc.
var accSqrt = big.NewInt(1_000_000_000)

var (
	ErrOverflow       = errors.New("fixedpoint: overflow")
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")
)

// U is an unsigned fixed-point ratio, inner value / Acc. Used for Price,
// Ratio and Rate in spec terms. The zero value is 0, usable without
// construction (a struct field left unset is a valid zero rate).
type U struct {
	inner *big.Int
}

// I is a signed fixed-point ratio, used for DiscountRate. The zero value
// is 0, usable without construction.
type I struct {
	inner *big.Int
}

// raw returns u's inner value, treating the zero value as 0.
func (u U) raw() *big.Int {
	if u.inner == nil {
		return big.NewInt(0)
	}
	return u.inner
}

// raw returns i's inner value, treating the zero value as 0.
func (i I) raw() *big.Int {
	if i.inner == nil {
		return big.NewInt(0)
	}
	return i.inner
}

// NewU builds a U from a raw inner value (already scaled by Acc). Panics if
// negative: callers that might produce a negative inner value should use I.
func NewU(inner *big.Int) U {
	if inner.Sign() < 0 {
		panic("fixedpoint: negative inner value for U")
	}
	return U{inner: new(big.Int).Set(inner)}
}

// UFromRat builds U = num/den scaled by Acc, e.g. UFromRat(1, 2) == 0.5.
func UFromRat(num, den int64) U {
	n := new(big.Int).Mul(big.NewInt(num), Acc)
	n.Quo(n, big.NewInt(den))
	return NewU(n)
}

// UFromInt builds U representing the integer n (n * Acc).
func UFromInt(n int64) U {
	return NewU(new(big.Int).Mul(big.NewInt(n), Acc))
}

// ZeroU is the additive identity.
func ZeroU() U { return U{inner: big.NewInt(0)} }

// Inner returns the raw scaled value.
func (u U) Inner() *big.Int { return new(big.Int).Set(u.raw()) }

// IsZero reports whether u == 0.
func (u U) IsZero() bool { return u.raw().Sign() == 0 }

// Cmp compares u to other, like big.Int.Cmp.
func (u U) Cmp(other U) int { return u.raw().Cmp(other.raw()) }

// Add returns u + other.
func (u U) Add(other U) U { return U{inner: new(big.Int).Add(u.raw(), other.raw())} }

// Sub returns u - other, saturating at zero.
func (u U) Sub(other U) U {
	r := new(big.Int).Sub(u.raw(), other.raw())
	if r.Sign() < 0 {
		r.SetInt64(0)
	}
	return U{inner: r}
}

// Mul returns u * other, rounded toward zero.
func (u U) Mul(other U) U {
	r := new(big.Int).Mul(u.raw(), other.raw())
	r.Quo(r, Acc)
	return U{inner: r}
}

// Div returns u / other, rounded toward zero.
func (u U) Div(other U) (U, error) {
	den := other.raw()
	if den.Sign() == 0 {
		return U{}, ErrDivisionByZero
	}
	r := new(big.Int).Mul(u.raw(), Acc)
	r.Quo(r, den)
	return U{inner: r}, nil
}

// MulBalance returns floor(u * amount) as an integer balance (amount is a
// plain, non-fixed-point integer, e.g. a token quantity).
func (u U) MulBalance(amount *big.Int) *big.Int {
	r := new(big.Int).Mul(u.raw(), amount)
	return r.Quo(r, Acc)
}

// DivBalance returns floor(amount / u) as an integer balance.
func (u U) DivBalance(amount *big.Int) (*big.Int, error) {
	den := u.raw()
	if den.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	r := new(big.Int).Mul(amount, Acc)
	return r.Quo(r, den), nil
}

// RatioOf returns floor(num/den * Acc) as a U, i.e. the fixed-point ratio of
// two plain integer balances. Used wherever the spec derives a rate from two
// Balance quantities (e.g. STE's exchange rate X = total_G / total_S).
func RatioOf(num, den *big.Int) (U, error) {
	if den.Sign() == 0 {
		return U{}, ErrDivisionByZero
	}
	inner := new(big.Int).Mul(num, Acc)
	inner.Quo(inner, den)
	return U{inner: inner}, nil
}

// Min returns the smaller of u and other.
func (u U) Min(other U) U {
	if u.Cmp(other) <= 0 {
		return u
	}
	return other
}

// String renders the ratio as a decimal string, e.g. "0.500000000000000000".
func (u U) String() string {
	return ratString(u.raw(), Acc)
}

// Sqrt returns an approximation of sqrt(u) as a fixed-point U:
//
//	sqrt(u) = floor_sqrt(inner(u)) * floor_sqrt(Acc)
//
// Acc is chosen as a perfect square (10^18, floor_sqrt(Acc) = 10^9) precisely
// so this reassembly is well defined. The result is exact when inner(u) is a
// perfect square; otherwise it rounds down to a multiple of 10^9 and can fall
// short of floor(sqrt(inner(u)*Acc)) by up to 10^9-1 ulps (e.g. u = 1.000002
// gives 1.000000999 against 1.0000009999995).
func (u U) Sqrt() U {
	root := new(big.Int).Sqrt(u.raw())
	root.Mul(root, accSqrt)
	return U{inner: root}
}

// NewI builds an I from a raw signed inner value.
func NewI(inner *big.Int) I { return I{inner: new(big.Int).Set(inner)} }

// IFromU lifts an unsigned ratio to a signed one.
func IFromU(u U) I { return I{inner: new(big.Int).Set(u.raw())} }

// IFromInt builds I representing the integer n.
func IFromInt(n int64) I { return I{inner: new(big.Int).Mul(big.NewInt(n), Acc)} }

// ZeroI is the additive identity.
func ZeroI() I { return I{inner: big.NewInt(0)} }

func (i I) Inner() *big.Int { return new(big.Int).Set(i.raw()) }
func (i I) Sign() int       { return i.raw().Sign() }
func (i I) Cmp(other I) int { return i.raw().Cmp(other.raw()) }
func (i I) IsZero() bool    { return i.raw().Sign() == 0 }

func (i I) Add(other I) I { return I{inner: new(big.Int).Add(i.raw(), other.raw())} }
func (i I) Sub(other I) I { return I{inner: new(big.Int).Sub(i.raw(), other.raw())} }

// MulInt returns i * n where n is a plain (non-fixed-point) integer count,
// e.g. scaling a per-unit rate by a number of units.
func (i I) MulInt(n *big.Int) I {
	return I{inner: new(big.Int).Mul(i.raw(), n)}
}

func (i I) Mul(other I) I {
	r := new(big.Int).Mul(i.raw(), other.raw())
	r.Quo(r, Acc)
	return I{inner: r}
}

// Min returns the smaller (signed) of i and other.
func (i I) Min(other I) I {
	if i.Cmp(other) <= 0 {
		return i
	}
	return other
}

// Abs returns |i| as an unsigned ratio. Callers must only use this at sites
// where positivity is already an invariant (see steng/subeng quote logic).
func (i I) Abs() U {
	return U{inner: new(big.Int).Abs(i.raw())}
}

// OneMinus returns (1 - i) as an unsigned ratio: zero for i == 1, and a
// panic for i > 1, where the result would be negative. A discount clamped
// by a max below 1 never reaches the panic; subeng.Subscribe calls this on
// min(d, discount.max) and does not itself check that max is below 1.
func (i I) OneMinus() U {
	one := new(big.Int).Set(Acc)
	r := new(big.Int).Sub(one, i.raw())
	if r.Sign() < 0 {
		panic(fmt.Sprintf("fixedpoint: OneMinus underflow for discount %s", i.String()))
	}
	return U{inner: r}
}

func (i I) String() string {
	return ratString(i.raw(), Acc)
}

func ratString(inner, acc *big.Int) string {
	neg := inner.Sign() < 0
	abs := new(big.Int).Abs(inner)
	whole := new(big.Int).Quo(abs, acc)
	frac := new(big.Int).Mod(abs, acc)
	s := fmt.Sprintf("%s.%018s", whole.String(), frac.String())
	if neg {
		s = "-" + s
	}
	return s
}
