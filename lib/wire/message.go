// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"
)

// maxDepth bounds Space nesting on decode.
const maxDepth = 64

// ErrMalformed is wrapped by every decode error caused by bytes that
// are not a valid message in the chosen format.
var ErrMalformed = errors.New("malformed message")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// RequestKind identifies which message a Request carries.
type RequestKind uint8

const (
	RequestUnset RequestKind = iota
	RequestShutdown
	RequestInit
	RequestStep
)

func (k RequestKind) String() string {
	switch k {
	case RequestShutdown:
		return "shutdown"
	case RequestInit:
		return "init"
	case RequestStep:
		return "step"
	default:
		return "unset"
	}
}

// Request is one message from the simulator. Exactly one of Init and
// Step is set for the matching Kind; Shutdown carries no payload.
type Request struct {
	ID   uint64
	Kind RequestKind
	Init *Init
	Step *Step
}

// Init announces the descriptors in their text form.
type Init struct {
	ActionSpace      string
	ObservationSpace string
}

// Step carries the outcome of the previous action. Info is nil when
// the simulator sent none.
type Step struct {
	Observation Space
	Reward      Space
	Info        *Space
}

// Reply is the engine's answer to a Request. A nil Action is an empty
// acknowledgement.
type Reply struct {
	Action *Space
}

// IsAck reports whether the reply is an empty acknowledgement.
func (r Reply) IsAck() bool {
	return r.Action == nil
}

// ShutdownRequest, InitRequest and StepRequest build requests. They
// are used by the simulator side (the mock and tests).
func ShutdownRequest(id uint64) Request {
	return Request{ID: id, Kind: RequestShutdown}
}

func InitRequest(id uint64, actionSpace, observationSpace string) Request {
	return Request{ID: id, Kind: RequestInit, Init: &Init{ActionSpace: actionSpace, ObservationSpace: observationSpace}}
}

func StepRequest(id uint64, step Step) Request {
	return Request{ID: id, Kind: RequestStep, Step: &step}
}

// Variant identifies which field of a Space is set.
type Variant uint8

const (
	VariantUnset Variant = iota
	VariantDiscrete
	VariantBox
	VariantMultiDiscrete
	VariantMultiBinary
	VariantTuple
	VariantDict
)

func (v Variant) String() string {
	switch v {
	case VariantDiscrete:
		return "discrete"
	case VariantBox:
		return "box"
	case VariantMultiDiscrete:
		return "multi_discrete"
	case VariantMultiBinary:
		return "multi_binary"
	case VariantTuple:
		return "tuple"
	case VariantDict:
		return "dict"
	default:
		return "unset"
	}
}

// Space is a value tree as it appears on the wire. Only the field
// selected by Variant is meaningful. Dict items keep their wire order
// and may contain duplicate keys; rejecting those is the caller's job.
type Space struct {
	Variant       Variant
	Discrete      int64
	Box           []float64
	MultiDiscrete []int64
	MultiBinary   []bool
	Tuple         []Space
	Dict          []Item
}

// Item is one key/value pair of a Dict space.
type Item struct {
	Key   string
	Value Space
}
