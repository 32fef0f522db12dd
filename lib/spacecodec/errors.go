// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spacecodec

import "fmt"

// ProtocolError reports a message that violates the wire contract, or
// an action that cannot be expressed in it. Op names the operation
// that failed ("decode descriptor", "decode observation", ...). Err,
// when set, is the underlying parse or mismatch error.
type ProtocolError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol error: %s: %s", e.Op, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func protocolError(op string, err error, format string, args ...any) *ProtocolError {
	return &ProtocolError{Op: op, Reason: fmt.Sprintf(format, args...), Err: err}
}
