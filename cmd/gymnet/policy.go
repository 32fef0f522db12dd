// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/gymnet/lib/gymenv"
)

type policyOptions struct {
	episodes int
	maxSteps int

	// seed is the first episode's seed; later episodes count up from
	// it. Nil draws a random one.
	seed *uint32
}

// runRandomPolicy plays the configured number of episodes, sampling
// every action uniformly from the action space.
func runRandomPolicy(ctx context.Context, env *gymenv.Env, logger *slog.Logger, options policyOptions) error {
	base := env.Seed(options.seed)[0]
	for episode := range options.episodes {
		seed := base + uint32(episode)
		result, err := env.Reset(ctx, gymenv.WithSeed(seed))
		if err != nil {
			return fmt.Errorf("episode %d: reset: %w", episode, err)
		}
		logger.Info("episode started",
			"episode", episode,
			"seed", seed,
			"address", env.BoundAddress(),
			"action_space", env.ActionSpace().String(),
			"observation_space", env.ObservationSpace().String(),
		)

		steps := 0
		total := 0.0
		for !result.Done && (options.maxSteps == 0 || steps < options.maxSteps) {
			action := env.SampleAction()
			result, err = env.Step(ctx, action)
			if err != nil {
				return fmt.Errorf("episode %d: step %d: %w", episode, steps+1, err)
			}
			steps++
			if result.Filler {
				break
			}
			total += result.Reward
			logger.Debug("step",
				"episode", episode,
				"step", steps,
				"action", action.String(),
				"observation", result.Observation.String(),
				"reward", result.Reward,
			)
		}
		logger.Info("episode finished",
			"episode", episode,
			"steps", steps,
			"return", total,
			"simulator_done", result.Done,
		)
	}
	return nil
}
