// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies network errors for the transport layer.
package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsDisconnect reports whether err means the remote end went away: EOF,
// a closed connection, a broken pipe, or a connection reset. A
// simulator that exits right after its last message produces any of
// these on the engine's next read or write.
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
