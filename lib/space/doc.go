// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package space models the shape and content of actions and
// observations exchanged with a simulator.
//
// A [Descriptor] is a tagged variant describing a space: Discrete,
// Box, MultiDiscrete, MultiBinary, or the recursive Tuple and Dict
// containers. A [Value] carries concrete data shaped like a
// descriptor. Both are plain trees: finite, acyclic, and safe to copy
// by value (slices and maps are never mutated after construction).
//
// Descriptors travel over the wire as text. [Parse] reads that text
// with a declared grammar; no part of decoding evaluates code:
//
//	Discrete(2)
//	Box(-1, 1, [4])
//	gym.spaces.Box(low=0.0, high=np.inf, shape=(3,), dtype=np.float32)
//	Tuple(Discrete(3), MultiBinary(2))
//	Dict(speed: Box([1]), lane: Discrete(3))
//
// [Descriptor.String] renders the canonical form, which Parse accepts.
//
// [Descriptor.Validate] checks that a value structurally matches a
// descriptor (same variant and arity at every level). [Descriptor.Contains]
// additionally checks bounds. [Sampler] draws well-formed values from a
// descriptor with a seeded source, and [Fingerprint] identifies an
// action/observation contract.
package space
