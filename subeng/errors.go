// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package subeng

import "errors"

// Errors - Subscription Engine
var (
	ErrSubscriptionNotFound       = errors.New("subeng: subscription not found")
	ErrNoPrice                    = errors.New("subeng: oracle has no price for this pair")
	ErrSubscriptionIsFull         = errors.New("subeng: subscription capacity exhausted")
	ErrBelowMinTargetAmount       = errors.New("subeng: quote below caller's min_target")
	ErrBelowMinSubscriptionAmount = errors.New("subeng: quote below the subscription's min_amount")
	ErrNoDecimalsInfo             = errors.New("subeng: no decimals configured for currency")
	ErrZeroMinRatio               = errors.New("subeng: min_ratio must be nonzero")
)
