// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package currency implements the closed tagged union of currency
// identifiers the treasury core operates over: plain tokens and LP-share
// tokens over a pair. Grounded on the teacher's Currency/PoolKey pattern in
// dex/types.go, adapted from an EVM-address-keyed pair to a symbol-keyed
// token union (the core has no ERC20 contracts, only ledger symbols).
package currency

import (
	"fmt"
)

// Kind distinguishes a plain token from an LP-share token.
type Kind uint8

const (
	KindToken Kind = iota
	KindLPShare
)

// ID is a currency identifier: either Token(Symbol) or LPShare(A, B).
// Comparable with ==, so it is safe to use as a Go map key directly.
type ID struct {
	kind Kind
	// symbol is populated for KindToken.
	symbol string
	// a/b are populated (by Symbol, sorted for determinism) for KindLPShare.
	a, b string
}

// Token constructs a plain-token currency id.
func Token(symbol string) ID {
	return ID{kind: KindToken, symbol: symbol}
}

// LPShare constructs the LP-share currency id for the unordered pair (a, b).
// The pair is stored sorted lexicographically so LPShare(x,y) == LPShare(y,x).
func LPShare(a, b ID) ID {
	as, bs := a.String(), b.String()
	if as > bs {
		as, bs = bs, as
	}
	return ID{kind: KindLPShare, a: as, b: bs}
}

// IsToken reports whether id names a plain token.
func (id ID) IsToken() bool { return id.kind == KindToken }

// IsLPShare reports whether id names an LP-share token.
func (id ID) IsLPShare() bool { return id.kind == KindLPShare }

// Symbol returns the token symbol; only meaningful when IsToken().
func (id ID) Symbol() string { return id.symbol }

// String renders a stable, unique textual form, used for display and log
// fields; ID itself (comparable with ==) is the storage key wherever one is
// needed, so nothing derives a separate hash from this.
func (id ID) String() string {
	switch id.kind {
	case KindToken:
		return "T:" + id.symbol
	case KindLPShare:
		return fmt.Sprintf("LP:%s/%s", id.a, id.b)
	default:
		return "?"
	}
}
