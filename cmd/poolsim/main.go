// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// poolsim replays a scripted scenario (mints, swaps, flashes, clock
// advances) against an in-memory pool and logs every state change.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "poolsim",
		Short:        "Concentrated-liquidity pool simulator",
		SilenceUsage: true,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario file against a fresh pool",
		RunE:  runScenario,
	}
	runCmd.Flags().String("scenario", "scenario.yaml", "scenario file path")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScenario(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("scenario")
	level, _ := cmd.Flags().GetString("log-level")

	logger, err := newLogger(level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	sc, err := loadScenario(path)
	if err != nil {
		return err
	}
	return sc.run(logger)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
