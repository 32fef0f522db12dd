// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bureau-foundation/gymnet/lib/testutil"
)

func TestCommandLine(t *testing.T) {
	got := CommandLine(Options{
		Executable:    "/opt/veins/src/run",
		UserInterface: "Cmdenv",
		ConfigName:    "demo",
		SimTimeLimit:  "500ms",
		Seed:          42,
		Port:          5555,
		ExtraArgs: map[string]string{
			"--record-eventlog":               "false",
			"--*.node[*].appl.beaconInterval": "1s",
		},
	})
	want := []string{
		"/opt/veins/src/run",
		"-uCmdenv",
		"-cdemo",
		"--sim-time-limit=500ms",
		"--seed-set=42",
		"--*.manager.seed=42",
		"--*.gym_connection.port=5555",
		"--*.node[*].appl.beaconInterval=1s",
		"--record-eventlog=false",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("command line mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvironment(t *testing.T) {
	separator := string(os.PathListSeparator)
	base := []string{"HOME=/home/sim", "PATH=/usr/bin", "LANG=C"}

	got := environment(base, "/opt/omnetpp/bin", []string{"LANG=en_US.UTF-8", "VEINS=1"})
	want := []string{"HOME=/home/sim", "PATH=/opt/omnetpp/bin" + separator + "/usr/bin", "LANG=en_US.UTF-8", "VEINS=1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("environment mismatch (-want +got):\n%s", diff)
	}

	// A prefix that already ends with the separator is not doubled.
	got = environment([]string{"PATH=/usr/bin"}, "/a"+separator, nil)
	if got[0] != "PATH=/a"+separator+"/usr/bin" {
		t.Errorf("PATH = %q", got[0])
	}

	got = environment(nil, "/a", nil)
	if diff := cmp.Diff([]string{"PATH=/a"}, got); diff != "" {
		t.Errorf("missing PATH (-want +got):\n%s", diff)
	}

	if got := environment(base, "", nil); !cmp.Equal(got, base) {
		t.Errorf("environment without prefix = %v", got)
	}
}

func TestLaunchMissingExecutable(t *testing.T) {
	_, err := Launch(Options{Executable: filepath.Join(t.TempDir(), "missing"), WorkingDir: t.TempDir()})
	var launchError *LaunchError
	if !errors.As(err, &launchError) {
		t.Fatalf("error = %v, want *LaunchError", err)
	}
}

func TestLaunchNotExecutable(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "run")
	if err := os.WriteFile(path, []byte("not a program"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Launch(Options{Executable: path, WorkingDir: directory})
	var launchError *LaunchError
	if !errors.As(err, &launchError) {
		t.Fatalf("error = %v, want *LaunchError", err)
	}
}

func TestLaunchFindsBareNameThroughPathPrefix(t *testing.T) {
	testutil.RequireShell(t)
	scenario := testutil.ScenarioDir(t)
	bin := t.TempDir()
	testutil.Script(t, bin, "gymnet-test-simulator", `echo "found"`)

	var output bytes.Buffer
	process, err := Launch(Options{
		Executable: "gymnet-test-simulator",
		WorkingDir: scenario,
		PathPrefix: bin,
		Output:     &output,
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	testutil.RequireClosed(t, process.Done(), 10*time.Second, "script exit")
	if err := process.ExitError(); err != nil {
		t.Fatalf("script failed: %v\n%s", err, output.String())
	}
	if !strings.Contains(output.String(), "found") {
		t.Errorf("output = %q, want the prefixed script to run", output.String())
	}

	_, err = Launch(Options{Executable: "gymnet-test-simulator", WorkingDir: scenario})
	var launchError *LaunchError
	if !errors.As(err, &launchError) {
		t.Errorf("Launch without the prefix = %v, want *LaunchError", err)
	}
}

func TestLookExecutable(t *testing.T) {
	testutil.RequireShell(t)
	first, second := t.TempDir(), t.TempDir()
	want := testutil.Script(t, second, "run", "exit 0")
	env := []string{"HOME=/root", "PATH=/nonexistent", "PATH=" + first + string(os.PathListSeparator) + second}

	got, err := lookExecutable("run", env)
	if err != nil {
		t.Fatalf("lookExecutable: %v", err)
	}
	if got != want {
		t.Errorf("lookExecutable = %q, want %q", got, want)
	}
	if _, err := lookExecutable("run", []string{"PATH=" + first}); err == nil {
		t.Error("lookExecutable found run outside PATH")
	}
}

func TestLaunchPassesArgumentsDirectoryAndEnvironment(t *testing.T) {
	testutil.RequireShell(t)
	scenario := testutil.ScenarioDir(t)
	script := testutil.Script(t, scenario, "run", `echo "dir=$PWD"; echo "args=$*"; echo "veins=$VEINS_FLAG"; echo "path=$PATH"`)

	var output bytes.Buffer
	process, err := Launch(Options{
		Executable:    "./" + filepath.Base(script),
		WorkingDir:    scenario,
		UserInterface: "Cmdenv",
		ConfigName:    "General",
		SimTimeLimit:  "1s",
		Seed:          7,
		Port:          1234,
		PathPrefix:    "/opt/omnetpp/bin",
		Env:           []string{"VEINS_FLAG=on"},
		Output:        &output,
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	testutil.RequireClosed(t, process.Done(), 10*time.Second, "script exit")
	if err := process.ExitError(); err != nil {
		t.Fatalf("script failed: %v\n%s", err, output.String())
	}

	resolved, err := filepath.EvalSymlinks(scenario)
	if err != nil {
		t.Fatal(err)
	}
	text := output.String()
	for _, want := range []string{
		"args=-uCmdenv -cGeneral --sim-time-limit=1s --seed-set=7 --*.manager.seed=7 --*.gym_connection.port=1234",
		"veins=on",
		"path=/opt/omnetpp/bin" + string(os.PathListSeparator),
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if !strings.Contains(text, "dir="+resolved) && !strings.Contains(text, "dir="+scenario) {
		t.Errorf("script did not run in %s:\n%s", scenario, text)
	}
}

func sleeper(t *testing.T, body string) *Process {
	t.Helper()
	return launchScript(t, body, nil)
}

func launchScript(t *testing.T, body string, output io.Writer) *Process {
	t.Helper()
	testutil.RequireShell(t)
	if runtime.GOOS == "windows" {
		t.Skip("process group signalling is unix-only")
	}
	directory := t.TempDir()
	script := testutil.Script(t, directory, "run", body)
	process, err := Launch(Options{Executable: script, WorkingDir: directory, Output: output})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	t.Cleanup(func() {
		signalProcess(process.process, signalKill)
		<-process.Done()
	})
	return process
}

// readySleeper launches body, which must print "ready" once its signal
// traps are installed, and returns after that line arrives.
func readySleeper(t *testing.T, body string) *Process {
	t.Helper()
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	t.Cleanup(func() { reader.Close() })
	process := launchScript(t, body, writer)
	writer.Close()

	lines := make(chan string, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(reader)
		if scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	if line := testutil.RequireReceive(t, lines, 10*time.Second, "script never reported ready"); line != "ready" {
		t.Fatalf("script printed %q, want ready", line)
	}
	return process
}

func TestTerminateGraceful(t *testing.T) {
	process := readySleeper(t, `trap 'exit 0' TERM; echo ready; while :; do sleep 0.05; done`)
	if !process.Alive() {
		t.Fatal("process not alive after launch")
	}
	if err := process.Terminate(5 * time.Second); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if process.Alive() {
		t.Error("process alive after Terminate")
	}
}

func TestTerminateEscalatesToKill(t *testing.T) {
	process := readySleeper(t, `trap '' TERM; echo ready; while :; do sleep 0.05; done`)
	start := time.Now()
	if err := process.Terminate(200 * time.Millisecond); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("Terminate returned after %v, before the SIGTERM grace period", elapsed)
	}
	if process.Alive() {
		t.Error("process alive after SIGKILL")
	}
}

func TestTerminateReportsLeak(t *testing.T) {
	process := sleeper(t, `while :; do sleep 0.05; done`)
	var sent []signal
	process.sendSignal = func(_ *os.Process, step signal) error {
		sent = append(sent, step)
		return nil
	}

	err := process.Terminate(50 * time.Millisecond)
	var leak *ResourceLeakError
	if !errors.As(err, &leak) {
		t.Fatalf("error = %v, want *ResourceLeakError", err)
	}
	if leak.PID != process.PID() || leak.Grace != 50*time.Millisecond {
		t.Errorf("ResourceLeakError = %+v", leak)
	}
	if diff := cmp.Diff([]signal{signalTerminate, signalKill}, sent); diff != "" {
		t.Errorf("signals (-want +got):\n%s", diff)
	}
}

func TestTerminateIdempotent(t *testing.T) {
	var never *Process
	if err := never.Terminate(time.Hour); err != nil {
		t.Errorf("Terminate on nil process: %v", err)
	}
	if never.Alive() {
		t.Error("nil process reports alive")
	}

	process := sleeper(t, `exit 3`)
	testutil.RequireClosed(t, process.Done(), 10*time.Second, "script exit")
	process.sendSignal = func(*os.Process, signal) error {
		t.Error("signal sent to exited process")
		return nil
	}
	start := time.Now()
	for range 2 {
		if err := process.Terminate(time.Hour); err != nil {
			t.Errorf("Terminate on exited process: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Terminate on exited process blocked for %v", elapsed)
	}
	if process.ExitError() == nil {
		t.Error("exit status 3 not reported")
	}
}
