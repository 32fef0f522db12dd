// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/bureau-foundation/gymnet/lib/space"
	"github.com/bureau-foundation/gymnet/lib/spacecodec"
	"github.com/bureau-foundation/gymnet/lib/wire"
	"github.com/bureau-foundation/gymnet/transport"
)

// connectTimeout bounds how long the mock waits for the engine's port
// to accept connections.
const connectTimeout = 10 * time.Second

// simulator plays one run against the engine.
type simulator struct {
	invocation invocation
	requester  *transport.Requester
	logger     *slog.Logger
	nextID     uint64
}

func simulate(ctx context.Context, invocation invocation, logger *slog.Logger) error {
	address := net.JoinHostPort("127.0.0.1", strconv.Itoa(invocation.port))
	requester, err := dial(ctx, address)
	if err != nil {
		return err
	}
	defer requester.Close()

	logger.Info("connected to engine",
		"address", address,
		"config", invocation.configName,
		"seed", invocation.seed,
		"steps", invocation.steps,
		"format", invocation.format.Name(),
	)
	s := &simulator{invocation: invocation, requester: requester, logger: logger}
	return s.run(ctx)
}

// dial retries until the engine is listening. The engine binds before
// launching, so retries only cover a slow accept loop.
func dial(ctx context.Context, address string) (*transport.Requester, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	for {
		requester, err := transport.Dial(ctx, address)
		if err == nil {
			return requester, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connecting to engine: %w", errors.Join(ctx.Err(), err))
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func (s *simulator) run(ctx context.Context) error {
	reply, err := s.exchange(ctx, wire.InitRequest(s.id(),
		s.invocation.actionSpace.String(), s.invocation.observationSpace.String()))
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if !reply.IsAck() {
		return fmt.Errorf("init: expected an empty acknowledgement, got an action")
	}

	sampler := space.NewSampler(uint64(s.invocation.seed))
	reward := 0.0
	for step := range s.invocation.steps {
		observation, err := spacecodec.FromValue(sampler.Sample(s.invocation.observationSpace))
		if err != nil {
			return fmt.Errorf("step %d: encoding observation: %w", step, err)
		}
		reply, err := s.exchange(ctx, wire.StepRequest(s.id(), wire.Step{
			Observation: observation,
			Reward:      wire.Space{Variant: wire.VariantBox, Box: []float64{reward}},
		}))
		if err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
		action, err := s.action(reply)
		if err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
		reward = -magnitude(action)
		s.logger.Debug("step",
			"step", step,
			"sim_time", time.Duration(step+1)*stepInterval,
			"action", action.String(),
		)
	}

	// The engine answers shutdown with a filler action.
	reply, err = s.exchange(ctx, wire.ShutdownRequest(s.id()))
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if !reply.IsAck() {
		if _, err := s.action(reply); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	s.logger.Info("simulation finished", "steps", s.invocation.steps)
	return nil
}

func (s *simulator) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *simulator) exchange(ctx context.Context, request wire.Request) (wire.Reply, error) {
	body, err := s.invocation.format.EncodeRequest(request)
	if err != nil {
		return wire.Reply{}, err
	}
	data, err := s.requester.Request(ctx, body)
	if err != nil {
		return wire.Reply{}, err
	}
	return s.invocation.format.DecodeReply(data)
}

// action decodes a reply's action and checks it against the action
// space.
func (s *simulator) action(reply wire.Reply) (space.Value, error) {
	if reply.IsAck() {
		return space.Value{}, fmt.Errorf("expected an action, got an empty acknowledgement")
	}
	value, err := spacecodec.ToValue(*reply.Action)
	if err != nil {
		return space.Value{}, err
	}
	if err := s.invocation.actionSpace.Validate(value); err != nil {
		return space.Value{}, fmt.Errorf("action outside the action space: %w", err)
	}
	return value, nil
}

// magnitude is the L1 norm of every number in value.
func magnitude(value space.Value) float64 {
	total := math.Abs(float64(value.Int))
	for _, element := range value.Floats {
		total += math.Abs(element)
	}
	for _, element := range value.Ints {
		total += math.Abs(float64(element))
	}
	for _, flag := range value.Bools {
		if flag {
			total++
		}
	}
	for _, element := range value.Elements {
		total += magnitude(element)
	}
	for _, field := range value.Fields {
		total += magnitude(field)
	}
	return total
}
