// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gymenv

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/gymnet/lib/config"
	"github.com/bureau-foundation/gymnet/lib/session"
	"github.com/bureau-foundation/gymnet/lib/spacecodec"
	"github.com/bureau-foundation/gymnet/lib/supervisor"
	"github.com/bureau-foundation/gymnet/lib/testutil"
	"github.com/bureau-foundation/gymnet/lib/wire"
	"github.com/bureau-foundation/gymnet/transport"
)

// freePort returns a loopback port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding a free port: %v", err)
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

// externalConfig returns a config for a simulator the test runs itself
// on a fixed port.
func externalConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ScenarioDir = testutil.ScenarioDir(t)
	cfg.RunSimulator = false
	cfg.Port = freePort(t)
	cfg.Timeout = 5 * time.Second
	return cfg
}

// connect dials address until the environment has bound it, then plays
// requests in order. Replies arrive on the returned channel, which is
// closed when the conversation ends for any reason.
func connect(address string, requests ...wire.Request) <-chan wire.Reply {
	replies := make(chan wire.Reply, len(requests))
	go func() {
		defer close(replies)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var requester *transport.Requester
		for requester == nil {
			var err error
			if requester, err = transport.Dial(ctx, address); err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case <-time.After(10 * time.Millisecond):
				case <-ctx.Done():
					return
				}
			}
		}
		defer requester.Close()

		for _, request := range requests {
			body, err := wire.Protobuf.EncodeRequest(request)
			if err != nil {
				return
			}
			data, err := requester.Request(ctx, body)
			if err != nil {
				return
			}
			reply, err := wire.Protobuf.DecodeReply(data)
			if err != nil {
				return
			}
			replies <- reply
		}
	}()
	return replies
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := config.Default()
	_, err := New(cfg, nil)
	var validationError *config.ValidationError
	if !errors.As(err, &validationError) {
		t.Fatalf("expected *config.ValidationError, got %T: %v", err, err)
	}
	if validationError.Field != "scenario_dir" {
		t.Errorf("Field = %q, want scenario_dir", validationError.Field)
	}
}

func TestEpisode(t *testing.T) {
	cfg := externalConfig(t)
	env, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { env.Close() })

	observation := func(values ...float64) wire.Space {
		return wire.Space{Variant: wire.VariantBox, Box: values}
	}
	replies := connect(net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Port)),
		wire.InitRequest(1, "Dict(example_action: Box(-1, 1, [2]))", "Box([2])"),
		wire.StepRequest(2, wire.Step{Observation: observation(0, 0), Reward: observation(0)}),
		wire.StepRequest(3, wire.Step{Observation: observation(1, 1), Reward: observation(2)}),
		wire.ShutdownRequest(4),
	)

	first, err := env.Reset(context.Background(), WithSeed(3))
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if first.Done {
		t.Error("first observation marked done")
	}
	if got := env.BoundAddress(); got == "" {
		t.Error("no bound address during an episode")
	}
	testutil.RequireReceive(t, replies, 5*time.Second, "waiting for ack")

	result, err := env.Step(context.Background(), []float64{0.5, -0.5})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if result.Reward != 2 || result.Done {
		t.Errorf("step result = %+v", result)
	}
	action := testutil.RequireReceive(t, replies, 5*time.Second, "waiting for action")
	encoded, err := spacecodec.ToValue(*action.Action)
	if err != nil {
		t.Fatalf("decoding action: %v", err)
	}
	if !env.ActionSpace().Contains(encoded) {
		t.Errorf("action %s not in %s", encoded, env.ActionSpace())
	}

	final, err := env.Step(context.Background(), env.SampleAction())
	if err != nil {
		t.Fatalf("final Step: %v", err)
	}
	if !final.Done || !final.Filler {
		t.Errorf("final result = %+v, want done filler", final)
	}
	if _, err := env.Step(context.Background(), env.SampleAction()); !errors.Is(err, session.ErrEpisodeDone) {
		t.Errorf("Step after shutdown = %v, want ErrEpisodeDone", err)
	}
}

func TestRelativeScenarioDirLaunchesProjectBinary(t *testing.T) {
	testutil.RequireShell(t)
	scenario := testutil.ScenarioDir(t)
	root := filepath.Dir(scenario)
	marker := filepath.Join(root, "launched")
	testutil.Script(t, filepath.Join(root, "src"), "run", `pwd > "`+marker+`"`)
	t.Chdir(root)

	cfg := config.Default()
	cfg.ScenarioDir = filepath.Base(scenario)
	cfg.Timeout = 5 * time.Second
	env, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { env.Close() })

	// The script exits without speaking the protocol, so Reset fails
	// once it has run.
	var launchError *supervisor.LaunchError
	if _, err := env.Reset(context.Background(), WithSeed(1)); errors.As(err, &launchError) {
		t.Fatalf("Reset could not launch the project binary: %v", err)
	}

	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("simulator did not run: %v", err)
	}
	got, err := filepath.EvalSymlinks(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatal(err)
	}
	want, err := filepath.EvalSymlinks(scenario)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("simulator ran in %s, want %s", got, want)
	}
}

func TestSeed(t *testing.T) {
	env, err := New(externalConfig(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	seed := uint32(99)
	if got := env.Seed(&seed); len(got) != 1 || got[0] != 99 {
		t.Errorf("Seed(99) = %v", got)
	}
	if got := env.Seed(nil); len(got) != 1 {
		t.Errorf("Seed(nil) = %v, want one seed", got)
	}
	if !env.SampleAction().IsZero() {
		t.Error("SampleAction before any episode should be unset")
	}
}

func TestRunClosesOnReturn(t *testing.T) {
	cfg := externalConfig(t)
	replies := connect(net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Port)),
		wire.InitRequest(1, "Discrete(2)", "Box([1])"),
		wire.StepRequest(2, wire.Step{
			Observation: wire.Space{Variant: wire.VariantBox, Box: []float64{0}},
			Reward:      wire.Space{Variant: wire.VariantDiscrete},
		}),
	)

	sentinel := errors.New("agent gave up")
	var kept *Env
	err := Run(context.Background(), cfg, nil, func(ctx context.Context, env *Env) error {
		kept = env
		if _, err := env.Reset(ctx); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Run = %v, want the callback's error", err)
	}
	if kept.BoundAddress() != "" {
		t.Error("environment still bound after Run returned")
	}
	// The simulator's pending step is abandoned by the close.
	testutil.RequireReceive(t, replies, 5*time.Second, "waiting for ack")
	testutil.RequireClosed(t, closedSignal(replies), 5*time.Second, "simulator not disconnected")
}

func TestRunClosesOnCancel(t *testing.T) {
	cfg := externalConfig(t)
	cfg.Timeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		results <- Run(ctx, cfg, nil, func(ctx context.Context, env *Env) error {
			close(started)
			_, err := env.Reset(ctx)
			return err
		})
	}()

	testutil.RequireClosed(t, started, 5*time.Second, "callback never ran")
	cancel()
	err := testutil.RequireReceive(t, results, 5*time.Second, "Run did not return after cancellation")
	if !errors.Is(err, context.Canceled) && !errors.Is(err, session.ErrClosed) {
		t.Errorf("Run = %v, want cancellation", err)
	}
}

// closedSignal converts the end of a reply stream into a closed channel.
func closedSignal(replies <-chan wire.Reply) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for range replies {
		}
		close(done)
	}()
	return done
}
