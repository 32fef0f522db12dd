// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"fmt"
	"time"
)

// LaunchError reports that the simulator executable could not be found
// or started.
type LaunchError struct {
	Executable string
	Err        error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching simulator %s: %v", e.Executable, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ResourceLeakError reports a simulator that was still running after
// both SIGTERM and SIGKILL, each followed by Grace of waiting.
type ResourceLeakError struct {
	PID   int
	Grace time.Duration
}

func (e *ResourceLeakError) Error() string {
	return fmt.Sprintf("simulator process %d survived SIGTERM and SIGKILL (grace %s each)", e.PID, e.Grace)
}
