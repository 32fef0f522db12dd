// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gymenv

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/bureau-foundation/gymnet/lib/config"
	"github.com/bureau-foundation/gymnet/lib/session"
	"github.com/bureau-foundation/gymnet/lib/space"
	"github.com/bureau-foundation/gymnet/lib/spacecodec"
	"github.com/bureau-foundation/gymnet/lib/supervisor"
	"github.com/bureau-foundation/gymnet/lib/wire"
)

// StepResult is one observation delivered to the agent.
type StepResult = session.StepResult

// Env is a simulator-backed environment.
type Env struct {
	controller *session.Controller
	logger     *slog.Logger

	mu      sync.Mutex
	seed    uint32
	sampler *space.Sampler
}

// New validates cfg and returns an environment with no session yet.
// The first Reset binds the endpoint and launches the simulator.
func New(cfg *config.Config, logger *slog.Logger) (*Env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	format, err := wire.ByName(cfg.WireFormat)
	if err != nil {
		return nil, err
	}
	encoder, err := spacecodec.EncoderByName(cfg.ActionEncoder)
	if err != nil {
		return nil, err
	}

	options := session.Options{
		Address:     net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Port)),
		Timeout:     cfg.Timeout,
		GracePeriod: cfg.GracePeriod,
		ExitTimeout: cfg.ExitTimeout,
		Codec:       spacecodec.New(format, encoder),
		Logger:      logger,
	}
	if cfg.RunSimulator {
		simulator, err := simulatorOptions(cfg)
		if err != nil {
			return nil, err
		}
		options.Simulator = simulator
	}

	return &Env{
		controller: session.New(options),
		logger:     logger,
		sampler:    space.NewSampler(0),
	}, nil
}

func simulatorOptions(cfg *config.Config) (*supervisor.Options, error) {
	env, err := cfg.SimulatorEnv()
	if err != nil {
		return nil, err
	}
	workingDir, err := filepath.Abs(cfg.ScenarioDir)
	if err != nil {
		return nil, fmt.Errorf("resolving scenario_dir: %w", err)
	}
	var output io.Writer
	if cfg.PrintStdout {
		output = os.Stderr
	}
	return &supervisor.Options{
		Executable:    cfg.ResolveExecutable(),
		WorkingDir:    workingDir,
		UserInterface: cfg.UserInterface,
		ConfigName:    cfg.ConfigName,
		SimTimeLimit:  cfg.SimTimeLimit,
		ExtraArgs:     cfg.ExtraArgs,
		PathPrefix:    cfg.EnvPath,
		Env:           env,
		Output:        output,
	}, nil
}

// ResetOption adjusts a single Reset call.
type ResetOption func(*resetOptions)

type resetOptions struct {
	seed *uint32
}

// WithSeed reseeds the environment before the new episode, as Seed
// would.
func WithSeed(seed uint32) ResetOption {
	return func(options *resetOptions) { options.seed = &seed }
}

// Reset closes any running episode, starts a new simulator, and returns
// its first observation.
func (e *Env) Reset(ctx context.Context, opts ...ResetOption) (StepResult, error) {
	var options resetOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.seed != nil {
		e.Seed(options.seed)
	}

	e.mu.Lock()
	seed := e.seed
	e.mu.Unlock()
	return e.controller.Reset(ctx, seed)
}

// Step sends action and returns the next observation. The action is
// encoded by the configured action encoder.
func (e *Env) Step(ctx context.Context, action any) (StepResult, error) {
	return e.controller.Step(ctx, action)
}

// Close terminates the simulator and releases the endpoint. It is safe
// to call more than once and from any goroutine.
func (e *Env) Close() error {
	return e.controller.Close()
}

// Seed sets the seed used by the next Reset and by SampleAction, and
// returns it. A nil seed draws a random one.
func (e *Env) Seed(seed *uint32) []uint32 {
	var value uint32
	if seed != nil {
		value = *seed
	} else {
		value = randomSeed()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.seed = value
	e.sampler = space.NewSampler(uint64(value))
	return []uint32{value}
}

func randomSeed() uint32 {
	var buffer [4]byte
	// crypto/rand.Read never returns an error.
	rand.Read(buffer[:])
	return binary.LittleEndian.Uint32(buffer[:])
}

// ActionSpace returns the action descriptor of the current episode, or
// the unset descriptor before the first successful Reset.
func (e *Env) ActionSpace() space.Descriptor {
	return e.controller.ActionSpace()
}

// ObservationSpace returns the observation descriptor of the current
// episode.
func (e *Env) ObservationSpace() space.Descriptor {
	return e.controller.ObservationSpace()
}

// SampleAction draws a random action from the action space.
func (e *Env) SampleAction() space.Value {
	descriptor := e.controller.ActionSpace()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sampler.Sample(descriptor)
}

// BoundAddress returns the endpoint address of the current episode, or
// "" when none is bound.
func (e *Env) BoundAddress() string {
	return e.controller.Address()
}

// Run creates an environment from cfg, passes it to fn, and closes it
// when fn returns or ctx is cancelled, whichever comes first. A
// ResourceLeakError from closing is joined to fn's error.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, fn func(context.Context, *Env) error) (err error) {
	env, err := New(cfg, logger)
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		if closeErr := env.Close(); closeErr != nil {
			env.logger.Error("closing environment on cancellation", "error", closeErr)
		}
	})
	defer func() {
		stop()
		if closeErr := env.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("closing environment: %w", closeErr))
		}
	}()

	return fn(ctx, env)
}
