// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/gymnet/lib/space"
	"github.com/bureau-foundation/gymnet/lib/spacecodec"
	"github.com/bureau-foundation/gymnet/lib/supervisor"
	"github.com/bureau-foundation/gymnet/lib/wire"
	"github.com/bureau-foundation/gymnet/transport"
)

const (
	DefaultTimeout     = 3 * time.Second
	DefaultGracePeriod = time.Second
	DefaultExitTimeout = 5 * time.Second
)

// ErrSimulatorExited is returned when the supervised simulator exits
// while the controller is waiting for its next message.
var ErrSimulatorExited = errors.New("session: simulator exited unexpectedly")

// State is a controller lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateAwaitingInit
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingInit:
		return "awaiting-init"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// StepResult is what Reset and Step return for one simulator message.
type StepResult struct {
	Observation space.Value
	Reward      float64
	Done        bool
	Truncated   bool

	// Info is the optional info tree of the Step message, unset when
	// the simulator sent none.
	Info space.Value

	// Filler marks a result synthesized at the end of an episode. Its
	// Observation is a sample from the observation descriptor (unset if
	// the simulator shut down before Init) and carries no meaning.
	Filler bool
}

// Options configure a Controller. Zero values select the defaults.
type Options struct {
	// Address is the endpoint bind address. Empty selects an ephemeral
	// loopback port.
	Address string

	// Timeout bounds every wait for a simulator message. Negative
	// waits without limit.
	Timeout time.Duration

	// GracePeriod is how long termination waits after each signal.
	GracePeriod time.Duration

	// ExitTimeout bounds the wait for the simulator to exit after it
	// requested shutdown.
	ExitTimeout time.Duration

	// Simulator describes the process launched on every Reset. Port
	// and Seed are filled in per session. Nil means the simulator is
	// started externally and connects to Address on its own.
	Simulator *supervisor.Options

	Codec  *spacecodec.Codec
	Logger *slog.Logger
}

// episode is everything one Reset acquires.
type episode struct {
	id       string
	logger   *slog.Logger
	endpoint *transport.Endpoint
	process  *supervisor.Process
	sampler  *space.Sampler

	// Guarded by Controller.mu.
	action      space.Descriptor
	observation space.Descriptor
	finished    bool

	// pending is the request carrying the latest observation. Only the
	// goroutine running Reset and Step touches it.
	pending *transport.Request
}

// Controller drives the episode lifecycle against one simulator at a
// time. Reset and Step must not be called concurrently with each
// other; Close and the accessors may be called from any goroutine.
type Controller struct {
	options Options
	codec   *spacecodec.Codec
	logger  *slog.Logger

	// onBound is called with each freshly bound address. Tests use it
	// to connect a simulator of their own.
	onBound func(address string)

	mu         sync.Mutex
	state      State
	generation uint64
	current    *episode
}

// New returns an idle controller.
func New(options Options) *Controller {
	if options.Address == "" {
		options.Address = transport.DefaultAddress
	}
	if options.Timeout == 0 {
		options.Timeout = DefaultTimeout
	}
	if options.GracePeriod <= 0 {
		options.GracePeriod = DefaultGracePeriod
	}
	if options.ExitTimeout <= 0 {
		options.ExitTimeout = DefaultExitTimeout
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	codec := options.Codec
	if codec == nil {
		codec = spacecodec.New(nil, nil)
	}
	return &Controller{options: options, codec: codec, logger: logger}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActionSpace returns the action descriptor announced by the simulator,
// or the unset descriptor before the handshake.
func (c *Controller) ActionSpace() space.Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return space.Descriptor{}
	}
	return c.current.action
}

// ObservationSpace returns the observation descriptor announced by the
// simulator, or the unset descriptor before the handshake.
func (c *Controller) ObservationSpace() space.Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return space.Descriptor{}
	}
	return c.current.observation
}

// Address returns the bound endpoint address of the current session,
// or "" when there is none.
func (c *Controller) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.endpoint.Address()
}

// SessionID returns the identifier logged with the current session.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.id
}

// PID returns the supervised simulator's process id, or 0.
func (c *Controller) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return 0
	}
	return c.current.process.PID()
}

// transition must be called with mu held.
func (c *Controller) transition(next State) {
	if c.state != next {
		c.logger.Debug("session state", "from", c.state.String(), "to", next.String())
	}
	c.state = next
}

// Reset ends any previous session, starts a new one seeded with seed,
// completes the handshake, and returns the first observation.
//
// If the simulator shuts down before sending an observation, Reset
// returns a Filler result with Done set.
func (c *Controller) Reset(ctx context.Context, seed uint32) (StepResult, error) {
	c.mu.Lock()
	previous, active := c.detachLocked(c.current, StateIdle)
	generation := c.generation
	c.mu.Unlock()
	if err := c.release(previous, active, "closed"); err != nil {
		return StepResult{}, err
	}

	ep, err := c.start(ctx, seed)
	if err != nil {
		return StepResult{}, err
	}

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		if err := c.release(ep, false, ""); err != nil {
			return StepResult{}, errors.Join(ErrClosed, err)
		}
		return StepResult{}, ErrClosed
	}
	c.current = ep
	c.transition(StateAwaitingInit)
	c.mu.Unlock()

	request, message, err := c.receive(ctx, ep)
	if err != nil {
		return StepResult{}, c.fail(ep, err)
	}
	switch message.Kind {
	case wire.RequestInit:
	case wire.RequestShutdown:
		ep.logger.Info("simulator shut down before init")
		return c.finish(ctx, ep, request)
	case wire.RequestStep:
		return StepResult{}, c.fail(ep, &ProtocolError{Op: "handshake", Reason: "step received before init"})
	default:
		return StepResult{}, c.fail(ep, &ProtocolError{Op: "handshake", Reason: "request carries no message"})
	}

	if err := c.handshake(ep, request, message.Init); err != nil {
		return StepResult{}, c.fail(ep, err)
	}

	request, message, err = c.receive(ctx, ep)
	if err != nil {
		return StepResult{}, c.fail(ep, err)
	}
	switch message.Kind {
	case wire.RequestStep:
	case wire.RequestShutdown:
		ep.logger.Info("simulator shut down before the first observation")
		return c.finish(ctx, ep, request)
	default:
		return StepResult{}, c.fail(ep, &ProtocolError{
			Op:     "handshake",
			Reason: fmt.Sprintf("expected the first observation, got %s", message.Kind),
		})
	}

	result, err := c.decodeStep(ep, message.Step)
	if err != nil {
		return StepResult{}, c.fail(ep, err)
	}
	ep.pending = request

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != ep {
		return StepResult{}, ErrClosed
	}
	c.transition(StateReady)
	return result, nil
}

// start binds the endpoint and launches the simulator.
func (c *Controller) start(ctx context.Context, seed uint32) (*episode, error) {
	id := uuid.NewString()
	logger := c.logger.With("session_id", id)

	endpoint, err := transport.Bind(c.options.Address, logger)
	if err != nil {
		return nil, err
	}
	ep := &episode{
		id:       id,
		logger:   logger,
		endpoint: endpoint,
		sampler:  space.NewSampler(uint64(seed)),
	}
	logger.Debug("endpoint bound", "address", endpoint.Address(), "port", endpoint.Port())
	if c.onBound != nil {
		c.onBound(endpoint.Address())
	}

	if c.options.Simulator == nil {
		return ep, nil
	}
	launch := *c.options.Simulator
	launch.Port = endpoint.Port()
	launch.Seed = seed
	if launch.Logger == nil {
		launch.Logger = logger
	}
	process, err := supervisor.Launch(launch)
	recordLaunch(ctx, err == nil)
	if err != nil {
		endpoint.Close()
		return nil, err
	}
	ep.process = process
	logger.Info("simulator launched", "pid", process.PID(), "port", endpoint.Port(), "seed", seed)
	return ep, nil
}

// handshake stores the descriptors from init and acknowledges it.
func (c *Controller) handshake(ep *episode, request *transport.Request, init *wire.Init) error {
	if init == nil {
		return &ProtocolError{Op: "handshake", Reason: "init request without body"}
	}
	action, err := spacecodec.DecodeDescriptor(init.ActionSpace)
	if err != nil {
		return err
	}
	observation, err := spacecodec.DecodeDescriptor(init.ObservationSpace)
	if err != nil {
		return err
	}

	c.mu.Lock()
	ep.action = action
	ep.observation = observation
	c.mu.Unlock()
	ep.logger.Info("simulator handshake",
		"action_space", action.String(),
		"observation_space", observation.String(),
		"contract", space.Fingerprint(action, observation),
	)

	ack, err := c.codec.EncodeAck()
	if err != nil {
		return err
	}
	return request.Reply(ack)
}

// Step sends action as the reply to the pending simulator request and
// returns the next observation. When the simulator answers with a
// shutdown instead, Step replies with a sampled filler action, waits
// for the simulator to exit, and returns a Filler result with Done set.
func (c *Controller) Step(ctx context.Context, action any) (StepResult, error) {
	c.mu.Lock()
	ep, state := c.current, c.state
	finished := ep != nil && ep.finished
	c.mu.Unlock()
	switch {
	case state == StateClosed:
		return StepResult{}, ErrClosed
	case ep == nil || state != StateReady:
		return StepResult{}, ErrNotReady
	case finished:
		return StepResult{}, ErrEpisodeDone
	}

	start := time.Now()
	data, err := c.codec.EncodeAction(action, ep.action)
	if err != nil {
		return StepResult{}, c.fail(ep, err)
	}
	request := ep.pending
	ep.pending = nil
	if err := request.Reply(data); err != nil {
		recordStep(ctx, time.Since(start), "error")
		return StepResult{}, c.fail(ep, err)
	}

	request, message, err := c.receive(ctx, ep)
	if err != nil {
		recordStep(ctx, time.Since(start), "error")
		return StepResult{}, c.fail(ep, err)
	}
	switch message.Kind {
	case wire.RequestStep:
		result, err := c.decodeStep(ep, message.Step)
		if err != nil {
			recordStep(ctx, time.Since(start), "error")
			return StepResult{}, c.fail(ep, err)
		}
		ep.pending = request
		recordStep(ctx, time.Since(start), "observation")
		return result, nil
	case wire.RequestShutdown:
		recordStep(ctx, time.Since(start), "shutdown")
		return c.finish(ctx, ep, request)
	default:
		recordStep(ctx, time.Since(start), "error")
		return StepResult{}, c.fail(ep, &ProtocolError{
			Op:     "step",
			Reason: fmt.Sprintf("unexpected %s request during an episode", message.Kind),
		})
	}
}

func (c *Controller) decodeStep(ep *episode, step *wire.Step) (StepResult, error) {
	if step == nil {
		return StepResult{}, &ProtocolError{Op: "decode step", Reason: "step request without body"}
	}
	observation, err := spacecodec.DecodeValue(step.Observation, ep.observation)
	if err != nil {
		return StepResult{}, err
	}
	reward, err := spacecodec.Reward(step.Reward)
	if err != nil {
		return StepResult{}, err
	}
	info, err := spacecodec.Info(step.Info)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{Observation: observation, Reward: reward, Info: info}, nil
}

// finish answers a shutdown request and ends the episode.
func (c *Controller) finish(ctx context.Context, ep *episode, request *transport.Request) (StepResult, error) {
	var (
		reply []byte
		err   error
	)
	if ep.action.IsZero() {
		reply, err = c.codec.EncodeAck()
	} else {
		reply, err = c.codec.EncodeFillerAction(ep.sampler.Sample(ep.action), ep.action)
	}
	if err != nil {
		return StepResult{}, c.fail(ep, err)
	}
	if err := request.Reply(reply); err != nil {
		if !errors.Is(err, transport.ErrPeerGone) {
			return StepResult{}, c.fail(ep, err)
		}
		ep.logger.Debug("simulator left before the final action was sent")
	}

	c.mu.Lock()
	if c.current != ep {
		c.mu.Unlock()
		return StepResult{}, ErrClosed
	}
	ep.finished = true
	c.transition(StateReady)
	c.mu.Unlock()
	recordEpisodeEnd(ctx, "shutdown")
	ep.logger.Info("episode finished by simulator")

	c.awaitExit(ctx, ep)
	return StepResult{
		Observation: ep.sampler.Sample(ep.observation),
		Done:        true,
		Filler:      true,
	}, nil
}

// awaitExit waits up to ExitTimeout for the simulator to exit on its
// own. A simulator that lingers is terminated by the next Close or
// Reset.
func (c *Controller) awaitExit(ctx context.Context, ep *episode) {
	if ep.process == nil {
		return
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.options.ExitTimeout)
	defer cancel()
	if err := ep.process.Wait(waitCtx); err != nil {
		ep.logger.Warn("simulator still running after shutdown", "pid", ep.process.PID(), "waited", c.options.ExitTimeout)
		return
	}
	if err := ep.process.ExitError(); err != nil {
		ep.logger.Warn("simulator exited with error", "pid", ep.process.PID(), "error", err)
		return
	}
	ep.logger.Debug("simulator exited", "pid", ep.process.PID())
}

// receive waits for the next request and decodes it. A supervised
// simulator that exits during the wait ends it early.
func (c *Controller) receive(ctx context.Context, ep *episode) (*transport.Request, wire.Request, error) {
	receiveCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if ep.process != nil {
		go func() {
			select {
			case <-ep.process.Done():
				cancel(ErrSimulatorExited)
			case <-receiveCtx.Done():
			}
		}()
	}

	request, err := ep.endpoint.Receive(receiveCtx, c.options.Timeout)
	if err != nil {
		var timeout *transport.TimeoutError
		switch {
		case errors.As(err, &timeout):
			timeout.PID = ep.process.PID()
			recordReceiveTimeout(ctx)
			ep.logger.Error("simulator timed out",
				"timeout", timeout.Timeout,
				"elapsed", timeout.Elapsed,
				"pid", timeout.PID,
			)
		case ctx.Err() == nil && errors.Is(context.Cause(receiveCtx), ErrSimulatorExited):
			err = fmt.Errorf("%w (pid %d): %v", ErrSimulatorExited, ep.process.PID(), ep.process.ExitError())
		}
		return nil, wire.Request{}, err
	}

	message, err := c.codec.DecodeRequest(request.Body)
	if err != nil {
		return nil, wire.Request{}, err
	}
	ep.logger.Debug("simulator request", "id", message.ID, "kind", message.Kind.String())
	return request, message, nil
}

// fail ends the episode after err and returns the error the caller
// should see. If Close already took the episode, that is ErrClosed.
func (c *Controller) fail(ep *episode, err error) error {
	c.mu.Lock()
	owned := c.current == ep
	var active bool
	if owned {
		_, active = c.detachLocked(ep, StateIdle)
	}
	c.mu.Unlock()
	if !owned {
		return ErrClosed
	}

	ep.logger.Debug("episode aborted", "error", err)
	if releaseErr := c.release(ep, active, "error"); releaseErr != nil {
		return errors.Join(err, releaseErr)
	}
	return err
}

// detachLocked removes ep as the current episode and moves to next. It
// reports whether the episode was still running. mu must be held.
func (c *Controller) detachLocked(ep *episode, next State) (*episode, bool) {
	if c.current == ep {
		c.current = nil
	}
	c.transition(next)
	if ep == nil {
		return nil, false
	}
	return ep, !ep.finished
}

// release closes the endpoint and terminates the simulator. Only a
// ResourceLeakError is returned; endpoint close failures are logged.
func (c *Controller) release(ep *episode, active bool, end string) error {
	if ep == nil {
		return nil
	}
	if active && end != "" {
		recordEpisodeEnd(context.Background(), end)
	}
	if err := ep.endpoint.Close(); err != nil {
		ep.logger.Warn("closing endpoint", "error", err)
	}
	if err := ep.process.Terminate(c.options.GracePeriod); err != nil {
		return err
	}
	ep.logger.Debug("session released")
	return nil
}

// Close ends the current session: the endpoint is closed, unblocking
// any Reset or Step waiting on it, and the simulator is terminated. It
// returns nil when there is nothing to tear down and a
// *supervisor.ResourceLeakError if the simulator survives termination.
func (c *Controller) Close() error {
	c.mu.Lock()
	ep, active := c.detachLocked(c.current, StateClosed)
	c.generation++
	c.mu.Unlock()
	return c.release(ep, active, "closed")
}
