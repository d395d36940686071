// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/luxfi/geth/common"
	"gopkg.in/yaml.v2"

	"github.com/aquadao/treasury/alm"
	"github.com/aquadao/treasury/clock"
	"github.com/aquadao/treasury/currency"
	"github.com/aquadao/treasury/dstake"
	"github.com/aquadao/treasury/fixedpoint"
	"github.com/aquadao/treasury/ledger"
	"github.com/aquadao/treasury/steng"
	"github.com/aquadao/treasury/subeng"
)

// Ratio is a YAML-friendly exact fraction, avoiding the precision loss a
// floating-point config field would carry into fixed-point engine math
// (e.g. treasury_share: {num: 1, den: 10} for exactly 10%).
type Ratio struct {
	Num int64 `yaml:"num"`
	Den int64 `yaml:"den"`
}

func (r Ratio) u() fixedpoint.U {
	if r.Den == 0 {
		return fixedpoint.ZeroU()
	}
	return fixedpoint.UFromRat(r.Num, r.Den)
}

func (r Ratio) i() fixedpoint.I {
	if r.Num >= 0 {
		return fixedpoint.IFromU(r.u())
	}
	neg := Ratio{Num: -r.Num, Den: r.Den}
	return fixedpoint.ZeroI().Sub(fixedpoint.IFromU(neg.u()))
}

// DiscountConfig configures one subscription's accrual/decay curve.
type DiscountConfig struct {
	Max        Ratio  `yaml:"max"`
	IntervalBlocks uint64 `yaml:"interval_blocks"`
	IncOnIdle  Ratio  `yaml:"inc_on_idle"`
	DecPerUnit Ratio  `yaml:"dec_per_unit"`
}

func (d DiscountConfig) engine() subeng.Discount {
	return subeng.Discount{
		Max:        d.Max.i(),
		Interval:   d.IntervalBlocks,
		IncOnIdle:  d.IncOnIdle.i(),
		DecPerUnit: d.DecPerUnit.i(),
	}
}

// SubscriptionConfig seeds one subeng.Subscription at startup.
type SubscriptionConfig struct {
	Currency      string   `yaml:"currency"`
	VestingBlocks uint64   `yaml:"vesting_blocks"`
	MinAmount     string   `yaml:"min_amount"`
	MinRatio      Ratio    `yaml:"min_ratio"`
	Amount        string   `yaml:"amount,omitempty"`
	Discount      DiscountConfig `yaml:"discount"`
}

// StrategyConfig configures one ALM rebalance strategy.
type StrategyConfig struct {
	Other             string `yaml:"other"`
	PercentPerTrade   Ratio  `yaml:"percent_per_trade"`
	MaxAmountPerTrade string `yaml:"max_amount_per_trade"`
	MinAmountPerTrade string `yaml:"min_amount_per_trade"`
}

// AllocationConfig configures one ALM target-basket entry.
type AllocationConfig struct {
	Currency string `yaml:"currency"`
	Value    string `yaml:"value"`
	Range    string `yaml:"range"`
}

// Config is the top-level treasuryd configuration, loaded from YAML.
type Config struct {
	LogLevel    string        `yaml:"log_level"`
	BlockPeriod time.Duration `yaml:"block_period"`

	Governance string `yaml:"governance_currency"`
	Staked     string `yaml:"staked_currency"`
	Stable     string `yaml:"stable_currency"`

	PalletAccount     string `yaml:"pallet_account"`
	DaoAccount        string `yaml:"dao_account"`
	FeeDestAccount    string `yaml:"fee_dest_account"`
	RewardDestAccount string `yaml:"reward_dest_account"`
	PoolSovereign     string `yaml:"pool_sovereign_account"`
	GovernorAccount   string `yaml:"governor_account"`

	Decimals map[string]uint8 `yaml:"decimals"`

	TreasuryShare       Ratio `yaml:"treasury_share"`
	DaoShare            Ratio `yaml:"dao_share"`
	DefaultExchangeRate Ratio `yaml:"default_exchange_rate"`
	InflationPeriod     uint64 `yaml:"inflation_period"`
	InflationRate       Ratio `yaml:"inflation_rate"`
	MaxVestingChunks    int   `yaml:"max_vesting_chunks"`
	MinVestingAmount    string `yaml:"min_vesting_amount"`

	RebalancePeriod uint64 `yaml:"rebalance_period"`
	RebalanceOffset uint64 `yaml:"rebalance_offset"`

	Subscriptions []SubscriptionConfig `yaml:"subscriptions"`
	Allocations   []AllocationConfig   `yaml:"allocations"`
	Strategies    []StrategyConfig     `yaml:"strategies"`
}

// LoadConfig reads and parses a treasuryd YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("treasuryd: read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("treasuryd: parse config %s: %w", path, err)
	}
	if cfg.BlockPeriod == 0 {
		cfg.BlockPeriod = 6 * time.Second
	}
	return &cfg, nil
}

func account(s string) ledger.AccountID {
	return common.HexToAddress(s)
}

func bigOrZero(s string) *big.Int {
	if s == "" {
		return big.NewInt(0)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(fmt.Sprintf("treasuryd: invalid integer amount %q", s))
	}
	return n
}

func bigOrNil(s string) *big.Int {
	if s == "" {
		return nil
	}
	return bigOrZero(s)
}

// stengConfig derives steng.Config from the top-level configuration.
func (c *Config) stengConfig(lockID ledger.LockIdentifier) steng.Config {
	return steng.Config{
		Governance:          currency.Token(c.Governance),
		Staked:              currency.Token(c.Staked),
		PalletAccount:       account(c.PalletAccount),
		DaoAccount:          account(c.DaoAccount),
		FeeDestAccount:      account(c.FeeDestAccount),
		RewardDestAccount:   account(c.RewardDestAccount),
		TreasuryShare:       c.TreasuryShare.u(),
		DaoShare:            c.DaoShare.u(),
		DefaultExchangeRate: c.DefaultExchangeRate.u(),
		InflationPeriod:     c.InflationPeriod,
		InflationRate:       c.InflationRate.u(),
		MaxVestingChunks:    c.MaxVestingChunks,
		MinVestingAmount:    bigOrNil(c.MinVestingAmount),
		LockID:              lockID,
	}
}

// subengConfig derives subeng.Config from the top-level configuration.
func (c *Config) subengConfig() subeng.Config {
	decimals := make(map[currency.ID]uint8, len(c.Decimals))
	for symbol, dec := range c.Decimals {
		decimals[currency.Token(symbol)] = dec
	}
	return subeng.Config{
		Governance:    currency.Token(c.Governance),
		Stable:        currency.Token(c.Stable),
		PalletAccount: account(c.PalletAccount),
		Decimals:      decimals,
	}
}

// almConfig derives alm.Config from the top-level configuration.
func (c *Config) almConfig() alm.Config {
	return alm.Config{
		Stable:          currency.Token(c.Stable),
		Governance:      currency.Token(c.Governance),
		DaoAccount:      account(c.DaoAccount),
		PalletAccount:   account(c.PalletAccount),
		RebalancePeriod: c.RebalancePeriod,
		RebalanceOffset: c.RebalanceOffset,
	}
}

// dstakeConfig derives dstake.Config from the top-level configuration.
func (c *Config) dstakeConfig() dstake.Config {
	return dstake.Config{
		Currency:      currency.Token(c.Stable),
		PalletAccount: account(c.PalletAccount),
	}
}

func (c *Config) almStrategies() []alm.Strategy {
	out := make([]alm.Strategy, 0, len(c.Strategies))
	for _, s := range c.Strategies {
		out = append(out, alm.Strategy{
			Kind:              alm.Kind{Other: currency.Token(s.Other)},
			PercentPerTrade:   s.PercentPerTrade.u(),
			MaxAmountPerTrade: bigOrZero(s.MaxAmountPerTrade),
			MinAmountPerTrade: bigOrZero(s.MinAmountPerTrade),
		})
	}
	return out
}

func (c *Config) almTargets() map[currency.ID]*alm.Allocation {
	out := make(map[currency.ID]*alm.Allocation, len(c.Allocations))
	for _, a := range c.Allocations {
		out[currency.Token(a.Currency)] = &alm.Allocation{
			Value: bigOrZero(a.Value),
			Range: bigOrZero(a.Range),
		}
	}
	return out
}

func (c *Config) subscriptions() []subeng.Subscription {
	out := make([]subeng.Subscription, 0, len(c.Subscriptions))
	for _, s := range c.Subscriptions {
		out = append(out, subeng.Subscription{
			Currency:      currency.Token(s.Currency),
			VestingPeriod: clock.BlockNumber(s.VestingBlocks),
			MinAmount:     bigOrZero(s.MinAmount),
			MinRatio:      s.MinRatio.u(),
			Amount:        bigOrNil(s.Amount),
			Discount:      s.Discount.engine(),
		})
	}
	return out
}
