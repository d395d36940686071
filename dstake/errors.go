// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package dstake

import "errors"

// Errors - flat DAO staking ledger
var (
	ErrZeroAmount         = errors.New("dstake: amount must be nonzero")
	ErrInsufficientShares = errors.New("dstake: account holds fewer shares than requested")
	ErrNothingStaked      = errors.New("dstake: account has no stake")
)
