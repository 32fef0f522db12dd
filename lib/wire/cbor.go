// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR carries the message tree as CBOR maps.
var CBOR Format = cborFormat{}

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items. The
// same message always produces identical bytes.
var encMode cbor.EncMode

// decMode rejects duplicate map keys and ignores unknown fields. The
// nesting limit leaves room for maxDepth Space levels, each of which
// costs a map and an array.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels: 4*maxDepth + 16,
	}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}
}

type cborRequest struct {
	ID       uint64        `cbor:"id,omitempty"`
	Shutdown *cborShutdown `cbor:"shutdown,omitempty"`
	Init     *cborInit     `cbor:"init,omitempty"`
	Step     *cborStep     `cbor:"step,omitempty"`
}

type cborShutdown struct{}

type cborInit struct {
	ActionSpace      string `cbor:"action_space"`
	ObservationSpace string `cbor:"observation_space"`
}

type cborStep struct {
	Observation *cborSpace `cbor:"observation"`
	Reward      *cborSpace `cbor:"reward"`
	Info        *cborSpace `cbor:"info,omitempty"`
}

type cborReply struct {
	Action *cborSpace `cbor:"action"`
}

// cborSpace holds exactly one non-nil field. Pointers distinguish an
// empty tuple or dict from an absent one.
type cborSpace struct {
	Discrete      *int64       `cbor:"discrete,omitempty"`
	Box           *[]float64   `cbor:"box,omitempty"`
	MultiDiscrete *[]int64     `cbor:"multi_discrete,omitempty"`
	MultiBinary   *[]bool      `cbor:"multi_binary,omitempty"`
	Tuple         *[]cborSpace `cbor:"tuple,omitempty"`
	Dict          *[]cborItem  `cbor:"dict,omitempty"`
}

type cborItem struct {
	Key   string    `cbor:"key"`
	Value cborSpace `cbor:"value"`
}

type cborFormat struct{}

func (cborFormat) Name() string { return "cbor" }

func (cborFormat) EncodeRequest(request Request) ([]byte, error) {
	message := cborRequest{ID: request.ID}
	switch request.Kind {
	case RequestShutdown:
		message.Shutdown = &cborShutdown{}
	case RequestInit:
		if request.Init == nil {
			return nil, malformed("init request without payload")
		}
		message.Init = &cborInit{ActionSpace: request.Init.ActionSpace, ObservationSpace: request.Init.ObservationSpace}
	case RequestStep:
		if request.Step == nil {
			return nil, malformed("step request without payload")
		}
		step := &cborStep{
			Observation: toCBOR(request.Step.Observation),
			Reward:      toCBOR(request.Step.Reward),
		}
		if request.Step.Info != nil {
			step.Info = toCBOR(*request.Step.Info)
		}
		message.Step = step
	default:
		return nil, malformed("request kind %s cannot be encoded", request.Kind)
	}
	return encMode.Marshal(message)
}

func (cborFormat) DecodeRequest(data []byte) (Request, error) {
	var message cborRequest
	if err := decMode.Unmarshal(data, &message); err != nil {
		return Request{}, malformed("cbor request: %v", err)
	}

	request := Request{ID: message.ID}
	set := 0
	if message.Shutdown != nil {
		request.Kind = RequestShutdown
		set++
	}
	if message.Init != nil {
		request.Kind = RequestInit
		request.Init = &Init{ActionSpace: message.Init.ActionSpace, ObservationSpace: message.Init.ObservationSpace}
		set++
	}
	if message.Step != nil {
		step, err := fromCBORStep(message.Step)
		if err != nil {
			return Request{}, err
		}
		request.Kind = RequestStep
		request.Step = &step
		set++
	}
	switch set {
	case 0:
		return Request{}, malformed("request carries no message")
	case 1:
		return request, nil
	default:
		return Request{}, malformed("request carries %d messages", set)
	}
}

func (cborFormat) EncodeReply(reply Reply) ([]byte, error) {
	if reply.Action == nil {
		return []byte{}, nil
	}
	return encMode.Marshal(cborReply{Action: toCBOR(*reply.Action)})
}

func (cborFormat) DecodeReply(data []byte) (Reply, error) {
	if len(data) == 0 {
		return Reply{}, nil
	}
	var message cborReply
	if err := decMode.Unmarshal(data, &message); err != nil {
		return Reply{}, malformed("cbor reply: %v", err)
	}
	if message.Action == nil {
		return Reply{}, nil
	}
	action, err := fromCBOR(message.Action, 0)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Action: &action}, nil
}

func fromCBORStep(message *cborStep) (Step, error) {
	var step Step
	var err error
	if message.Observation == nil {
		return Step{}, malformed("step without observation")
	}
	if step.Observation, err = fromCBOR(message.Observation, 0); err != nil {
		return Step{}, err
	}
	if message.Reward == nil {
		return Step{}, malformed("step without reward")
	}
	if step.Reward, err = fromCBOR(message.Reward, 0); err != nil {
		return Step{}, err
	}
	if message.Info != nil {
		info, err := fromCBOR(message.Info, 0)
		if err != nil {
			return Step{}, err
		}
		step.Info = &info
	}
	return step, nil
}

func toCBOR(value Space) *cborSpace {
	message := &cborSpace{}
	switch value.Variant {
	case VariantDiscrete:
		discrete := value.Discrete
		message.Discrete = &discrete
	case VariantBox:
		box := nonNil(value.Box)
		message.Box = &box
	case VariantMultiDiscrete:
		counts := nonNil(value.MultiDiscrete)
		message.MultiDiscrete = &counts
	case VariantMultiBinary:
		flags := nonNil(value.MultiBinary)
		message.MultiBinary = &flags
	case VariantTuple:
		elements := make([]cborSpace, len(value.Tuple))
		for i, element := range value.Tuple {
			elements[i] = *toCBOR(element)
		}
		message.Tuple = &elements
	case VariantDict:
		items := make([]cborItem, len(value.Dict))
		for i, item := range value.Dict {
			items[i] = cborItem{Key: item.Key, Value: *toCBOR(item.Value)}
		}
		message.Dict = &items
	}
	return message
}

func fromCBOR(message *cborSpace, depth int) (Space, error) {
	if depth > maxDepth {
		return Space{}, malformed("space nesting deeper than %d levels", maxDepth)
	}
	var value Space
	set := 0
	if message.Discrete != nil {
		value = Space{Variant: VariantDiscrete, Discrete: *message.Discrete}
		set++
	}
	if message.Box != nil {
		value = Space{Variant: VariantBox, Box: nonNil(*message.Box)}
		set++
	}
	if message.MultiDiscrete != nil {
		value = Space{Variant: VariantMultiDiscrete, MultiDiscrete: nonNil(*message.MultiDiscrete)}
		set++
	}
	if message.MultiBinary != nil {
		value = Space{Variant: VariantMultiBinary, MultiBinary: nonNil(*message.MultiBinary)}
		set++
	}
	if message.Tuple != nil {
		elements := make([]Space, len(*message.Tuple))
		for i := range *message.Tuple {
			element, err := fromCBOR(&(*message.Tuple)[i], depth+1)
			if err != nil {
				return Space{}, err
			}
			elements[i] = element
		}
		value = Space{Variant: VariantTuple, Tuple: elements}
		set++
	}
	if message.Dict != nil {
		items := make([]Item, len(*message.Dict))
		for i := range *message.Dict {
			item := &(*message.Dict)[i]
			element, err := fromCBOR(&item.Value, depth+1)
			if err != nil {
				return Space{}, err
			}
			items[i] = Item{Key: item.Key, Value: element}
		}
		value = Space{Variant: VariantDict, Dict: items}
		set++
	}
	if set > 1 {
		return Space{}, malformed("space sets %d variants", set)
	}
	// set == 0 yields an unset Space, rejected by the space codec
	// alongside the protobuf equivalent.
	return value, nil
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
