// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Options describe one simulator launch.
type Options struct {
	// Executable is the simulator binary. A relative path containing a
	// separator is resolved against WorkingDir; a bare name is looked
	// up in the child's PATH, PathPrefix included.
	Executable string

	// WorkingDir is the scenario directory holding omnetpp.ini.
	WorkingDir string

	UserInterface string // -u
	ConfigName    string // -c
	SimTimeLimit  string // --sim-time-limit

	// Seed is passed as both the global seed set and the traffic
	// manager's seed.
	Seed uint32

	// Port is the engine's bound port the simulator connects to.
	Port int

	// ExtraArgs are appended as key=value in key order. Keys carry
	// their own dashes.
	ExtraArgs map[string]string

	// PathPrefix is prepended to the child's PATH. It may already end
	// with a list separator.
	PathPrefix string

	// Env holds KEY=VALUE pairs added to the inherited environment,
	// overriding inherited values.
	Env []string

	// Output receives the simulator's stdout and stderr. Nil discards
	// both.
	Output io.Writer

	Logger *slog.Logger
}

// CommandLine returns the full argument vector, executable first.
func CommandLine(options Options) []string {
	seed := strconv.FormatUint(uint64(options.Seed), 10)
	command := []string{
		options.Executable,
		"-u" + options.UserInterface,
		"-c" + options.ConfigName,
		"--sim-time-limit=" + options.SimTimeLimit,
		"--seed-set=" + seed,
		"--*.manager.seed=" + seed,
		"--*.gym_connection.port=" + strconv.Itoa(options.Port),
	}
	keys := make([]string, 0, len(options.ExtraArgs))
	for key := range options.ExtraArgs {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		command = append(command, key+"="+options.ExtraArgs[key])
	}
	return command
}

// signal is the escalation step passed to the platform signaller.
type signal int

const (
	signalTerminate signal = iota
	signalKill
)

func (s signal) String() string {
	if s == signalKill {
		return "SIGKILL"
	}
	return "SIGTERM"
}

// Process is a running or exited simulator.
type Process struct {
	pid     int
	process *os.Process
	done    chan struct{}
	waitErr error
	logger  *slog.Logger

	// sendSignal delivers an escalation step. Tests replace it to
	// simulate a process that ignores signals.
	sendSignal func(*os.Process, signal) error
}

// Launch starts the simulator described by options.
func Launch(options Options) (*Process, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	env := environment(os.Environ(), options.PathPrefix, options.Env)
	executable := options.Executable
	if !filepath.IsAbs(executable) && hasSeparator(executable) {
		executable = filepath.Join(options.WorkingDir, executable)
	}
	path, err := lookExecutable(executable, env)
	if err != nil {
		return nil, &LaunchError{Executable: options.Executable, Err: err}
	}

	arguments := CommandLine(options)
	cmd := exec.Command(path, arguments[1:]...)
	cmd.Dir = options.WorkingDir
	cmd.Env = env
	if options.Output != nil {
		cmd.Stdout = options.Output
		cmd.Stderr = options.Output
	}
	configure(cmd)

	logger.Debug("launching simulator",
		"command", strings.Join(arguments, " "),
		"dir", options.WorkingDir,
		"path_prefix", options.PathPrefix,
	)
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Executable: path, Err: err}
	}

	process := &Process{
		pid:        cmd.Process.Pid,
		process:    cmd.Process,
		done:       make(chan struct{}),
		logger:     logger,
		sendSignal: signalProcess,
	}
	go func() {
		process.waitErr = cmd.Wait()
		close(process.done)
	}()
	logger.Debug("simulator launched", "pid", process.pid)
	return process, nil
}

// environment merges overrides into base and applies the PATH prefix.
// Later entries win, so overrides are appended after removing any base
// entry with the same key.
func environment(base []string, pathPrefix string, overrides []string) []string {
	result := make([]string, 0, len(base)+len(overrides)+1)
	overridden := make(map[string]bool, len(overrides))
	for _, entry := range overrides {
		overridden[envKey(entry)] = true
	}
	for _, entry := range base {
		if !overridden[envKey(entry)] {
			result = append(result, entry)
		}
	}
	result = append(result, overrides...)

	if pathPrefix == "" {
		return result
	}
	separator := string(os.PathListSeparator)
	prefix := pathPrefix
	if !strings.HasSuffix(prefix, separator) {
		prefix += separator
	}
	for i, entry := range result {
		key := envKey(entry)
		if key == "PATH" || (runtime.GOOS == "windows" && strings.EqualFold(key, "PATH")) {
			result[i] = key + "=" + prefix + entry[len(key)+1:]
			return result
		}
	}
	return append(result, "PATH="+strings.TrimSuffix(prefix, separator))
}

// lookExecutable finds name the way the child's shell would. Names with
// a separator are checked directly; bare names are searched in the
// PATH of env rather than the parent's.
func lookExecutable(name string, env []string) (string, error) {
	if hasSeparator(name) {
		return exec.LookPath(name)
	}
	for _, directory := range filepath.SplitList(pathOf(env)) {
		if directory == "" {
			continue
		}
		if path, err := exec.LookPath(filepath.Join(directory, name)); err == nil {
			return path, nil
		}
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

func hasSeparator(name string) bool {
	return strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/')
}

// pathOf returns the last PATH entry in env.
func pathOf(env []string) string {
	value := ""
	for _, entry := range env {
		key := envKey(entry)
		if key == "PATH" || (runtime.GOOS == "windows" && strings.EqualFold(key, "PATH")) {
			value = entry[len(key)+1:]
		}
	}
	return value
}

func envKey(entry string) string {
	key, _, _ := strings.Cut(entry, "=")
	return key
}

// PID returns the operating system process id.
func (p *Process) PID() int {
	if p == nil {
		return 0
	}
	return p.pid
}

// Done is closed when the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Alive reports whether the process is still running. It never blocks.
func (p *Process) Alive() bool {
	if p == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// ExitError returns the result of waiting on the process: nil for a
// zero exit status, an *exec.ExitError otherwise. It is only
// meaningful once Done is closed.
func (p *Process) ExitError() error {
	select {
	case <-p.done:
		return p.waitErr
	default:
		return nil
	}
}

// Wait blocks until the process exits or ctx ends. It returns ctx.Err()
// in the latter case and nil otherwise; the exit status is available
// from ExitError.
func (p *Process) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitFor reports whether the process exits within timeout.
func (p *Process) waitFor(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}

// Terminate stops the process: SIGTERM, wait up to grace, SIGKILL,
// wait up to grace again. It returns nil once the process has exited,
// immediately if it already had, and a *ResourceLeakError if it is
// still running after both signals. Safe to call repeatedly and on a
// nil Process.
func (p *Process) Terminate(grace time.Duration) error {
	if !p.Alive() {
		return nil
	}

	p.logger.Debug("terminating simulator", "pid", p.pid, "grace", grace)
	for _, step := range []signal{signalTerminate, signalKill} {
		if err := p.sendSignal(p.process, step); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Warn("signalling simulator failed", "pid", p.pid, "signal", step.String(), "error", err)
		}
		if p.waitFor(grace) {
			return nil
		}
		if step == signalTerminate {
			p.logger.Warn("simulator ignored SIGTERM, sending SIGKILL", "pid", p.pid, "grace", grace)
		}
	}

	p.logger.Error("simulator could not be killed", "pid", p.pid, "grace", grace)
	return &ResourceLeakError{PID: p.pid, Grace: grace}
}
