// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// ScenarioDir creates <tmp>/scenario containing an empty omnetpp.ini
// and a sibling <tmp>/src directory, mirroring the layout of a veins
// project checkout. It returns the scenario directory.
func ScenarioDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	scenario := filepath.Join(root, "scenario")
	for _, directory := range []string{scenario, filepath.Join(root, "src")} {
		if err := os.MkdirAll(directory, 0o755); err != nil {
			t.Fatalf("creating %s: %v", directory, err)
		}
	}
	if err := os.WriteFile(filepath.Join(scenario, "omnetpp.ini"), []byte("[General]\n"), 0o644); err != nil {
		t.Fatalf("writing omnetpp.ini: %v", err)
	}
	return scenario
}

// Script writes an executable /bin/sh script named name into directory
// and returns its path.
func Script(t *testing.T, directory, name, body string) string {
	t.Helper()
	path := filepath.Join(directory, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("writing script %s: %v", path, err)
	}
	return path
}

// RequireShell skips the test when /bin/sh is unavailable.
func RequireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("/bin/sh"); err != nil {
		t.Skipf("/bin/sh unavailable: %v", err)
	}
}
