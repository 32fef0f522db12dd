// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/gymnet/lib/space"
	"github.com/bureau-foundation/gymnet/lib/wire"
)

// stepInterval is the simulated time between observations.
const stepInterval = 100 * time.Millisecond

const (
	defaultActionSpace      = "Dict(example_action: Box(-1, 1, [1]))"
	defaultObservationSpace = "Dict(example_obskey: Box(0, 9, [10]))"
)

// invocation is a parsed simulator command line.
type invocation struct {
	userInterface string
	configName    string
	simTimeLimit  time.Duration
	seed          uint32
	managerSeed   uint32
	port          int

	actionSpace      space.Descriptor
	observationSpace space.Descriptor
	format           wire.Format

	// steps is the number of observations before shutdown.
	steps int

	// parameters holds positional key=value arguments, which a real
	// simulator would treat as configuration overrides.
	parameters map[string]string
}

// parseCommandLine reads the OMNeT++ command line produced by the
// supervisor: -u<ui> -c<config> --sim-time-limit=<t> --seed-set=<n>
// --*.manager.seed=<n> --*.gym_connection.port=<p> followed by
// key=value extras.
func parseCommandLine(args []string) (invocation, error) {
	var (
		result           invocation
		simTimeLimit     string
		actionSpace      string
		observationSpace string
		formatName       string
		steps            int
	)

	flagSet := pflag.NewFlagSet("gymnet-sim-mock", pflag.ContinueOnError)
	flagSet.ParseErrorsWhitelist.UnknownFlags = true
	flagSet.StringVarP(&result.userInterface, "user-interface", "u", "Cmdenv", "user interface")
	flagSet.StringVarP(&result.configName, "config", "c", "General", "configuration name in omnetpp.ini")
	flagSet.StringVar(&simTimeLimit, "sim-time-limit", "1s", "simulated time to run for")
	flagSet.Uint32Var(&result.seed, "seed-set", 0, "random number seed set")
	flagSet.Uint32Var(&result.managerSeed, "*.manager.seed", 0, "gym manager seed")
	flagSet.IntVar(&result.port, "*.gym_connection.port", 0, "engine port")
	flagSet.StringVar(&actionSpace, "mock-action-space", defaultActionSpace, "action descriptor")
	flagSet.StringVar(&observationSpace, "mock-observation-space", defaultObservationSpace, "observation descriptor")
	flagSet.StringVar(&formatName, "mock-format", wire.Protobuf.Name(), "wire format")
	flagSet.IntVar(&steps, "mock-steps", -1, "observations before shutdown (default: from --sim-time-limit)")

	if err := flagSet.Parse(args); err != nil {
		return invocation{}, err
	}

	if !flagSet.Changed("*.gym_connection.port") {
		return invocation{}, fmt.Errorf("--*.gym_connection.port is required")
	}
	if result.port <= 0 || result.port > 65535 {
		return invocation{}, fmt.Errorf("--*.gym_connection.port: %d is not a valid port", result.port)
	}

	limit, err := parseSimTime(simTimeLimit)
	if err != nil {
		return invocation{}, fmt.Errorf("--sim-time-limit: %w", err)
	}
	result.simTimeLimit = limit

	if result.actionSpace, err = space.Parse(actionSpace); err != nil {
		return invocation{}, fmt.Errorf("--mock-action-space: %w", err)
	}
	if result.observationSpace, err = space.Parse(observationSpace); err != nil {
		return invocation{}, fmt.Errorf("--mock-observation-space: %w", err)
	}
	if result.format, err = wire.ByName(formatName); err != nil {
		return invocation{}, fmt.Errorf("--mock-format: %w", err)
	}

	result.steps = int(limit / stepInterval)
	if steps >= 0 {
		result.steps = steps
	}

	result.parameters = make(map[string]string)
	for _, argument := range flagSet.Args() {
		key, value, ok := strings.Cut(argument, "=")
		if !ok {
			return invocation{}, fmt.Errorf("unexpected argument %q (want key=value)", argument)
		}
		result.parameters[key] = value
	}
	return result, nil
}

// parseSimTime reads an OMNeT++ simulation time. A bare number is in
// seconds.
func parseSimTime(text string) (time.Duration, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("empty time")
	}
	if last := text[len(text)-1]; (last >= '0' && last <= '9') || last == '.' {
		text += "s"
	}
	duration, err := time.ParseDuration(text)
	if err != nil {
		return 0, err
	}
	if duration < 0 {
		return 0, fmt.Errorf("negative time %s", text)
	}
	return duration, nil
}
