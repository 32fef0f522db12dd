// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configure puts the simulator in its own process group so signals
// reach the processes it spawns (the veins run script launches
// opp_run as a child).
func configure(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalProcess signals the whole process group. ESRCH means the group
// is already gone.
func signalProcess(process *os.Process, step signal) error {
	sig := unix.SIGTERM
	if step == signalKill {
		sig = unix.SIGKILL
	}
	err := unix.Kill(-process.Pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}
