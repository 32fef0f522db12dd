// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package gymenv is the agent-facing environment: Reset, Step, Close,
// and Seed over a [session.Controller] built from a [config.Config].
//
// [Run] is the preferred entry point. It owns the environment for the
// duration of a callback and closes it on every exit path, including
// cancellation of the context by an interrupt signal, so a simulator
// process is never left running behind the agent.
package gymenv
