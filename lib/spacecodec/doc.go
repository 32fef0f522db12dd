// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package spacecodec converts between wire messages and the structured
// values of lib/space.
//
// Decoding is strict. A descriptor that does not parse, a value with
// no variant, a dict with a repeated key, a value that does not match
// its descriptor, or a reward that is not exactly one scalar are all
// reported as [ProtocolError]. These errors mean the engine and the
// simulator disagree on the contract and are never retried.
//
// Actions are encoded by a replaceable [ActionEncoder]. The default
// [DictBoxEncoder] sends a mapping of names to numeric vectors, the
// shape the veinsgym example scenarios read. [DiscreteEncoder] sends a
// single integer and [ValueEncoder] sends an arbitrary [space.Value]
// unchanged.
package spacecodec
