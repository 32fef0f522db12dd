// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the messages exchanged between the engine and a
// simulator, and the byte formats that carry them.
//
// The simulator sends a [Request] for every interaction and waits for
// exactly one [Reply]:
//
//   - Init announces the action and observation descriptors as text.
//     The reply is an empty acknowledgement.
//   - Step carries an observation, a reward, and optional info. The
//     reply carries the next action.
//   - Shutdown ends the episode. The reply carries one final action so
//     the simulator can complete its own receive/send cycle.
//
// Values travel as a [Space] tree, a tagged union mirroring the
// descriptor variants. This package does not interpret the tree; see
// lib/spacecodec for conversion to and validation against descriptors.
//
// Two formats are provided:
//
//   - [Protobuf]: the protobuf encoding used by the simulator-side
//     veinsgym module. Field numbers are fixed; unknown fields are
//     skipped and repeated scalars are accepted packed or unpacked.
//   - [CBOR]: the same tree as CBOR maps with Core Deterministic
//     Encoding (RFC 8949 §4.2), for simulators and tools that prefer a
//     self-describing format.
//
// In both formats an empty byte string is an acknowledgement reply.
package wire
