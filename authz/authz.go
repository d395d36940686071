// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package authz implements the authorization-origin contract: a boolean
// predicate on a caller, standing in for the host chain's origin-check
// machinery (e.g. "root", "half of the council", a specific collective).
package authz

import (
	"errors"

	"github.com/luxfi/geth/common"
)

// ErrBadOrigin is the generic authorization failure spec.md §7 names.
var ErrBadOrigin = errors.New("authz: bad origin")

// Origin authorizes privileged calls (create/update/close subscription,
// update_unstake_fee_rate, set_target_allocations, ...).
type Origin interface {
	Authorize(caller common.Address) bool
}

// AllowSet is a static authorization allow-list.
type AllowSet struct {
	allowed map[common.Address]struct{}
}

var _ Origin = (*AllowSet)(nil)

// NewAllowSet builds an Origin that authorizes exactly the given accounts.
func NewAllowSet(accounts ...common.Address) *AllowSet {
	a := &AllowSet{allowed: make(map[common.Address]struct{}, len(accounts))}
	for _, acct := range accounts {
		a.allowed[acct] = struct{}{}
	}
	return a
}

// Authorize implements Origin.
func (a *AllowSet) Authorize(caller common.Address) bool {
	_, ok := a.allowed[caller]
	return ok
}

// Check is a small helper for call sites: returns ErrBadOrigin unless origin
// authorizes caller.
func Check(origin Origin, caller common.Address) error {
	if !origin.Authorize(caller) {
		return ErrBadOrigin
	}
	return nil
}
