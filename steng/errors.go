// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package steng

import "errors"

// Errors - Staked-Token Engine
var (
	ErrVestingNotFound         = errors.New("steng: no vesting chunk matured yet")
	ErrMaxVestingChunkExceeded = errors.New("steng: account already holds the maximum number of vesting chunks")
	ErrBelowMinVestingAmount   = errors.New("steng: vesting amount below the configured minimum")
)
