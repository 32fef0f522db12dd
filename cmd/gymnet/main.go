// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// gymnet runs a random policy against an OMNeT++ simulation through the
// gymnet protocol engine. It is the smallest complete agent: every step
// samples an action from the simulator's announced action space, and
// each episode runs until the simulator shuts down.
//
// Configuration comes from --config or GYMNET_CONFIG; with neither, the
// defaults apply and --scenario-dir is required.
//
// Usage:
//
//	gymnet --config gymnet.yaml --episodes 3
//	gymnet --scenario-dir simulations --seed 7 --log-level debug
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/gymnet/lib/config"
	"github.com/bureau-foundation/gymnet/lib/gymenv"
	"github.com/bureau-foundation/gymnet/lib/process"
	"github.com/bureau-foundation/gymnet/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	var (
		configPath  string
		scenarioDir string
		logLevel    string
		episodes    int
		maxSteps    int
		seed        uint32
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("gymnet", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "f", "", "path to gymnet.yaml (default: $GYMNET_CONFIG)")
	flagSet.StringVar(&scenarioDir, "scenario-dir", "", "directory containing omnetpp.ini (overrides the config)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn, or error (overrides the config)")
	flagSet.IntVarP(&episodes, "episodes", "n", 1, "number of episodes to run")
	flagSet.IntVar(&maxSteps, "max-steps", 0, "stop an episode after this many steps (0: run until the simulator finishes)")
	flagSet.Uint32Var(&seed, "seed", 0, "seed for the first episode (default: random)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		version.Print(os.Stdout, "gymnet")
		return nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if episodes < 1 {
		return fmt.Errorf("--episodes must be at least 1, got %d", episodes)
	}

	cfg, err := loadConfig(configPath, os.Getenv(config.EnvVar))
	if err != nil {
		return err
	}
	if scenarioDir != "" {
		cfg.ScenarioDir = scenarioDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := policyOptions{episodes: episodes, maxSteps: maxSteps}
	if flagSet.Changed("seed") {
		policy.seed = &seed
	}
	return gymenv.Run(ctx, cfg, logger, func(ctx context.Context, env *gymenv.Env) error {
		return runRandomPolicy(ctx, env, logger, policy)
	})
}

// loadConfig reads the explicit path, then the GYMNET_CONFIG path, and
// falls back to the defaults when neither is given.
func loadConfig(path, fromEnvironment string) (*config.Config, error) {
	switch {
	case path != "":
		return config.LoadFile(path)
	case fromEnvironment != "":
		return config.LoadFile(fromEnvironment)
	default:
		return config.Default(), nil
	}
}
