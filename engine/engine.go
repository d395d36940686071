// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package engine implements the single-threaded block-processing loop the
// treasury core runs on: a monotonic clock ticks, every registered
// component's OnInitialize hook runs once per tick in a fixed order before
// any queued caller operation would be dispatched, and a component's own
// per-call locking (steng.Engine, subeng.Engine, alm.Engine, dstake.Engine
// each guard a whole operation under a single mutex) makes every dispatched
// call one critical section. The mutex does not roll back a call that fails
// partway; each engine orders its checks ahead of its mutations, and undoes
// earlier steps with compensating mutations where a later step can still
// fail. There is no separate journal. Grounded on the teacher's block-production loop style
// (DevMarc16-Quantum-Proof-Blockchain/chain/node/node.go's
// startBlockProduction: a time.Ticker driving one block-producing call per
// tick, stoppable via context cancellation and a sync.WaitGroup), adapted
// from a PoW/consensus block loop to a plain periodic-hook dispatcher.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/luxfi/log"
	"go.uber.org/zap"

	"github.com/aquadao/treasury/clock"
)

// Hook is anything that wants to run once per block, ahead of operation
// dispatch (steng.Engine.OnInitialize, alm.Engine.OnInitialize, ...).
type Hook interface {
	OnInitialize(block clock.BlockNumber)
}

// HookFunc adapts a plain function to Hook.
type HookFunc func(block clock.BlockNumber)

// OnInitialize implements Hook.
func (f HookFunc) OnInitialize(block clock.BlockNumber) { f(block) }

// Chain drives the block clock and runs every registered Hook, in
// registration order, at the top of each block.
type Chain struct {
	mu    sync.Mutex
	clock *clock.Chain
	hooks []Hook
	log   log.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewChain builds a Chain over bc, running hooks in the given order at every
// block. STE's inflation hook should generally be registered ahead of ALM's
// rebalance hook, since a freshly inflated governance supply is a read ALM's
// rebalance math can legitimately observe within the same block.
func NewChain(bc *clock.Chain, logger log.Logger, hooks ...Hook) *Chain {
	return &Chain{clock: bc, hooks: hooks, log: logger}
}

// BlockNumber returns the chain's current height.
func (c *Chain) BlockNumber() clock.BlockNumber {
	return c.clock.CurrentBlockNumber()
}

// AdvanceBlock moves the clock forward by one block and runs every
// registered hook against the new height, in order. Safe to call
// concurrently with Run (both serialize through c.mu).
func (c *Chain) AdvanceBlock() clock.BlockNumber {
	c.mu.Lock()
	defer c.mu.Unlock()

	height := c.clock.Advance(1)
	for _, h := range c.hooks {
		c.runHookSafely(h, height)
	}
	return height
}

// runHookSafely isolates one hook's panic (e.g. an adapted teacher module
// hit an unexpected nil) so it cannot take down the rest of the block's
// hooks; hooks are themselves expected to log-and-swallow their own
// operational errors (see steng.Engine.OnInitialize, alm.Engine.OnInitialize).
func (c *Chain) runHookSafely(h Hook, height clock.BlockNumber) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("block hook panicked, block processing continues",
				zap.Uint64("block", height), zap.Any("panic", r))
		}
	}()
	h.OnInitialize(height)
}

// Run starts a background goroutine that calls AdvanceBlock every
// blockPeriod until ctx is cancelled or Stop is called. Returns immediately;
// call Stop to end the loop and block until it has exited.
func (c *Chain) Run(ctx context.Context, blockPeriod time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(blockPeriod)
		defer ticker.Stop()

		c.log.Info("block production started", zap.Duration("period", blockPeriod))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				height := c.AdvanceBlock()
				c.log.Debug("block processed", zap.Uint64("block", height))
			}
		}
	}()
}

// Stop cancels a running Run loop and blocks until it has exited. No-op if
// Run was never called.
func (c *Chain) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}
