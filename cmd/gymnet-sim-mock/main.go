// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// gymnet-sim-mock stands in for an OMNeT++ simulation with a gym
// connection module. It accepts the command line the supervisor builds
// for a real simulator, connects to the engine's port, announces its
// spaces, and then emits one observation per 100ms of simulated time
// until --sim-time-limit is reached, when it sends shutdown and exits.
//
// Observations are sampled from the observation space using the run's
// seed. The reward for each step is the negative magnitude of the
// previous action, so a policy that learns to act quietly does best.
//
// Mock-specific settings arrive the way OMNeT++ parameters do, as
// --key=value arguments (extra_args in gymnet.yaml):
//
//	--mock-action-space        action descriptor (default Dict(example_action: Box(-1, 1, [1])))
//	--mock-observation-space   observation descriptor (default Dict(example_obskey: Box(0, 9, [10])))
//	--mock-format              wire format, protobuf or cbor
//	--mock-steps               step count, overriding the time limit
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/gymnet/lib/process"
	"github.com/bureau-foundation/gymnet/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 1 && args[0] == "--version" {
		version.Print(os.Stdout, "gymnet-sim-mock")
		return nil
	}

	invocation, err := parseCommandLine(args)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With(
		"simulator", "gymnet-sim-mock",
		"pid", os.Getpid(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := simulate(ctx, invocation, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("terminated")
		}
		return err
	}
	return nil
}
