// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package clock implements the BlockNumberProvider contract: a monotonic
// block counter standing in for the host chain's block clock.
package clock

import "sync/atomic"

// BlockNumber matches the host's block height representation.
type BlockNumber = uint64

// BlockNumberProvider is the injected clock contract.
type BlockNumberProvider interface {
	CurrentBlockNumber() BlockNumber
}

// Chain is a simple atomic block counter implementation.
type Chain struct {
	height atomic.Uint64
}

var _ BlockNumberProvider = (*Chain)(nil)

// NewChain returns a clock starting at block 0.
func NewChain() *Chain { return &Chain{} }

// CurrentBlockNumber implements BlockNumberProvider.
func (c *Chain) CurrentBlockNumber() BlockNumber { return c.height.Load() }

// Advance moves the clock forward by n blocks and returns the new height.
func (c *Chain) Advance(n uint64) BlockNumber { return c.height.Add(n) }

// Set pins the clock to an exact height, useful in tests.
func (c *Chain) Set(height BlockNumber) { c.height.Store(height) }
