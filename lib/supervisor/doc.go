// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervisor launches the simulator process and guarantees it
// is gone when the session ends.
//
// [Launch] builds the simulator command line from [Options], starts
// the process in its own process group, and returns a [*Process]. A
// background goroutine reaps the process, so [Process.Alive] is a
// non-blocking check and [Process.Done] can be selected on.
//
// [Process.Terminate] escalates: SIGTERM to the process group, wait for
// the grace period, SIGKILL, wait again. A process that survives both
// is reported as a [*ResourceLeakError]. Terminate on a nil or already
// exited process returns immediately.
package supervisor
