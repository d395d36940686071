// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/luxfi/log"

	"github.com/aquadao/treasury/alm"
	"github.com/aquadao/treasury/authz"
	"github.com/aquadao/treasury/clock"
	"github.com/aquadao/treasury/dstake"
	"github.com/aquadao/treasury/engine"
	"github.com/aquadao/treasury/events"
	"github.com/aquadao/treasury/ledger"
	"github.com/aquadao/treasury/oracle"
	"github.com/aquadao/treasury/pool"
	"github.com/aquadao/treasury/steng"
	"github.com/aquadao/treasury/subeng"
)

// vestingLockID names the single named lock the staked-token ledger applies
// to every account's unvested balance.
var vestingLockID = ledger.LockIdentifier{'v', 'e', 's', 't'}

// Runtime bundles every wired component of one running treasury instance.
type Runtime struct {
	cfg *Config

	Logger log.Logger
	Ledger *ledger.Ledger
	Clock  *clock.Chain
	Prices *oracle.Table
	Pool   *pool.Pool
	Bus    *events.Bus

	STE    *steng.Engine
	SUB    *subeng.Engine
	ALM    *alm.Engine
	DStake *dstake.Engine
	Chain  *engine.Chain
}

// parseLevel maps a YAML log_level string to a luxfi/log level, defaulting
// to Info on anything unrecognized.
func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// NewRuntime wires every component from cfg: ledger, oracle table, pool, the
// four engines, and the block-processing Chain that drives their
// OnInitialize hooks. The governor account is authorized for every
// privileged call of the STE, SUB and ALM engines (dstake has no privileged
// calls and takes no origin), matching a single-council-origin deployment.
func NewRuntime(cfg *Config) (*Runtime, error) {
	logger := log.NewTestLogger(parseLevel(cfg.LogLevel))

	l := ledger.New()
	prices := oracle.NewTable()
	bus := events.NewBus()
	bc := clock.NewChain()
	dex := pool.New(l, account(cfg.PoolSovereign))
	origin := authz.NewAllowSet(account(cfg.GovernorAccount))

	steEngine := steng.New(cfg.stengConfig(vestingLockID), l, bc, origin, steng.NoopRewardHook{}, bus, logger)
	subEngine := subeng.New(cfg.subengConfig(), l, bc, prices, origin, steEngine, bus, logger)
	almEngine := alm.New(cfg.almConfig(), l, prices, dex, origin, bus, logger)
	dstakeEngine := dstake.New(cfg.dstakeConfig(), l, bus, logger)

	chain := engine.NewChain(bc, logger, steEngine, almEngine)

	rt := &Runtime{
		cfg:    cfg,
		Logger: logger,
		Ledger: l,
		Clock:  bc,
		Prices: prices,
		Pool:   dex,
		Bus:    bus,
		STE:    steEngine,
		SUB:    subEngine,
		ALM:    almEngine,
		DStake: dstakeEngine,
		Chain:  chain,
	}

	if err := rt.seedFromConfig(); err != nil {
		return nil, err
	}
	return rt, nil
}

// seedFromConfig applies the config file's initial subscriptions, target
// allocations, and rebalance strategies, all as the configured governor.
func (rt *Runtime) seedFromConfig() error {
	governor := account(rt.cfg.GovernorAccount)

	for _, sub := range rt.cfg.subscriptions() {
		if _, err := rt.SUB.CreateSubscription(governor, sub); err != nil {
			return fmt.Errorf("treasuryd: seeding subscription for %s: %w", sub.Currency.String(), err)
		}
	}
	if targets := rt.cfg.almTargets(); len(targets) > 0 {
		if err := rt.ALM.SetTargetAllocations(governor, targets); err != nil {
			return fmt.Errorf("treasuryd: seeding target allocations: %w", err)
		}
	}
	if strategies := rt.cfg.almStrategies(); len(strategies) > 0 {
		if err := rt.ALM.SetStrategies(governor, strategies); err != nil {
			return fmt.Errorf("treasuryd: seeding strategies: %w", err)
		}
	}
	return nil
}
