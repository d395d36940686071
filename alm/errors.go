// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package alm

import "errors"

// Errors - Allocation Manager
var (
	ErrZeroTargetAllocation     = errors.New("alm: target allocation total is zero")
	ErrTargetAllocationNotFound = errors.New("alm: target allocation not found")
	ErrNoPrice                  = errors.New("alm: oracle has no price for this pair")
	ErrInvalidTradingPair       = errors.New("alm: invalid trading pair")
)
