// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package supervisor

import (
	"os"
	"os/exec"
)

func configure(*exec.Cmd) {}

// signalProcess kills the process outright: there is no graceful
// termination signal to deliver outside unix.
func signalProcess(process *os.Process, _ signal) error {
	return process.Kill()
}
