// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for gymnet packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// safety valve so tests that wait on goroutines fail instead of
// hanging. They are the only place in the test suite that arms a
// wall-clock timer for synchronization.
//
// [ScenarioDir] and [Script] build the on-disk fixtures the
// supervisor and configuration tests need: a scenario directory with
// an omnetpp.ini, and small /bin/sh programs standing in for the
// simulator. [RequireShell] skips a test on systems without /bin/sh.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
