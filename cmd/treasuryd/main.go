// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Command treasuryd wires the Staked-Token Engine, Subscription Engine,
// Allocation Manager and flat staking ledger into one running treasury
// core, driven by a single block-processing loop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "treasuryd",
	Short: "AquaDAO treasury core daemon",
	Long:  "A standalone block-processing loop for the subscription, staked-token and allocation-manager engines.",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load a config file and run the block-processing loop until interrupted",
	RunE:  runTreasury,
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Load a config file, advance a handful of blocks, and print the exchange rate after each",
	RunE:  runDemo,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./treasuryd.yaml", "path to the treasuryd YAML config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(demoCmd)
}

func runTreasury(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return err
	}
	rt, err := NewRuntime(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt.Chain.Run(ctx, cfg.BlockPeriod)

	rt.Logger.Info("treasuryd running", zap.Duration("block_period", cfg.BlockPeriod))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs

	rt.Logger.Info("treasuryd shutting down")
	rt.Chain.Stop()
	return nil
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return err
	}
	rt, err := NewRuntime(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("treasuryd demo: advancing 5 blocks at height %d\n", rt.Chain.BlockNumber())
	for i := 0; i < 5; i++ {
		height := rt.Chain.AdvanceBlock()
		rate := rt.STE.ExchangeRate()
		fmt.Printf("block %d: staked-token exchange rate = %s\n", height, rate.String())
	}

	fmt.Printf("done in %s\n", time.Now().Format(time.RFC3339))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
