// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by operations on a closed endpoint or
// requester, including a Receive that was blocked when Close ran.
var ErrClosed = errors.New("transport: endpoint closed")

// ErrPeerGone is returned by Reply when the connection that carried the
// request dropped before the reply could be sent.
var ErrPeerGone = errors.New("transport: peer disconnected before reply")

// TimeoutError reports that no complete message arrived within the
// receive timeout. PID identifies the simulator process when the
// caller knows it (0 otherwise).
type TimeoutError struct {
	Timeout time.Duration
	Elapsed time.Duration
	PID     int
}

func (e *TimeoutError) Error() string {
	if e.PID != 0 {
		return fmt.Sprintf("no message from simulator (pid %d) within %s (waited %s)", e.PID, e.Timeout, e.Elapsed.Round(time.Millisecond))
	}
	return fmt.Sprintf("no message from simulator within %s (waited %s)", e.Timeout, e.Elapsed.Round(time.Millisecond))
}
