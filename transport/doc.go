// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries request/reply messages between the engine
// and a simulator process over a loopback TCP connection.
//
// The simulator side is a ZeroMQ REQ socket, so the engine's
// [Endpoint] speaks ZMTP 3.x with the NULL mechanism as a REP peer
// (https://rfc.zeromq.org/spec/23/). Only the parts of ZMTP a single
// REQ/REP pair needs are implemented: greeting, READY handshake with
// socket type checking, and the empty-delimiter envelope. [Requester]
// is the matching REQ side, used by the mock simulator and tests.
//
// Strict request/reply alternation is part of the type signature:
// [Endpoint.Receive] hands out a [*Request], and [Request.Reply] is the
// only way to send. Receiving again before replying, or replying twice,
// panics.
//
// Receive is bounded by a timeout and can also be interrupted by
// cancelling its context or by closing the endpoint from another
// goroutine. A timed-out receive reports a [*TimeoutError].
package transport
