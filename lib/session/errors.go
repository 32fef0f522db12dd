// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"

	"github.com/bureau-foundation/gymnet/lib/spacecodec"
)

// ProtocolError reports a message that violates the wire contract.
type ProtocolError = spacecodec.ProtocolError

var (
	// ErrNotReady is returned by Step before a successful Reset, or
	// after an error ended the episode.
	ErrNotReady = errors.New("session: no episode in progress; call Reset")

	// ErrEpisodeDone is returned by Step after the simulator shut the
	// episode down.
	ErrEpisodeDone = errors.New("session: episode finished; call Reset")

	// ErrClosed is returned when Close ends a Reset or Step, and by
	// Step after Close.
	ErrClosed = errors.New("session: closed")
)
