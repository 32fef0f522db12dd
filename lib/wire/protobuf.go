// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Protobuf is the format spoken by the veinsgym simulator module.
var Protobuf Format = protobufFormat{}

// Field numbers of the veinsgym schema.
const (
	requestID       protowire.Number = 1
	requestShutdown protowire.Number = 2
	requestInit     protowire.Number = 3
	requestStep     protowire.Number = 4

	initActionSpace      protowire.Number = 1
	initObservationSpace protowire.Number = 2

	stepObservation protowire.Number = 1
	stepReward      protowire.Number = 2
	stepInfo        protowire.Number = 3

	replyAction protowire.Number = 1

	spaceDiscrete      protowire.Number = 1
	spaceBox           protowire.Number = 2
	spaceMultiDiscrete protowire.Number = 3
	spaceMultiBinary   protowire.Number = 4
	spaceTuple         protowire.Number = 5
	spaceDict          protowire.Number = 6

	// Every leaf and container message stores its payload in field 1.
	valuesField protowire.Number = 1

	itemKey   protowire.Number = 1
	itemValue protowire.Number = 2
)

type protobufFormat struct{}

func (protobufFormat) Name() string { return "protobuf" }

func (protobufFormat) EncodeRequest(request Request) ([]byte, error) {
	var data []byte
	if request.ID != 0 {
		data = protowire.AppendTag(data, requestID, protowire.VarintType)
		data = protowire.AppendVarint(data, request.ID)
	}
	switch request.Kind {
	case RequestShutdown:
		data = protowire.AppendTag(data, requestShutdown, protowire.BytesType)
		data = protowire.AppendBytes(data, nil)
	case RequestInit:
		if request.Init == nil {
			return nil, malformed("init request without payload")
		}
		var payload []byte
		payload = appendString(payload, initActionSpace, request.Init.ActionSpace)
		payload = appendString(payload, initObservationSpace, request.Init.ObservationSpace)
		data = protowire.AppendTag(data, requestInit, protowire.BytesType)
		data = protowire.AppendBytes(data, payload)
	case RequestStep:
		if request.Step == nil {
			return nil, malformed("step request without payload")
		}
		var payload []byte
		payload = appendSpace(payload, stepObservation, request.Step.Observation)
		payload = appendSpace(payload, stepReward, request.Step.Reward)
		if request.Step.Info != nil {
			payload = appendSpace(payload, stepInfo, *request.Step.Info)
		}
		data = protowire.AppendTag(data, requestStep, protowire.BytesType)
		data = protowire.AppendBytes(data, payload)
	default:
		return nil, malformed("request kind %s cannot be encoded", request.Kind)
	}
	return data, nil
}

func (protobufFormat) DecodeRequest(data []byte) (Request, error) {
	var request Request
	err := forEachField(data, func(number protowire.Number, kind protowire.Type, field []byte) error {
		switch number {
		case requestID:
			value, err := varintField(kind, field)
			if err != nil {
				return err
			}
			request.ID = value
		case requestShutdown:
			if kind != protowire.BytesType {
				return malformed("shutdown has wire type %d", kind)
			}
			request.Kind, request.Init, request.Step = RequestShutdown, nil, nil
		case requestInit:
			if kind != protowire.BytesType {
				return malformed("init has wire type %d", kind)
			}
			init, err := decodeInit(field)
			if err != nil {
				return err
			}
			request.Kind, request.Init, request.Step = RequestInit, &init, nil
		case requestStep:
			if kind != protowire.BytesType {
				return malformed("step has wire type %d", kind)
			}
			step, err := decodeStep(field)
			if err != nil {
				return err
			}
			request.Kind, request.Init, request.Step = RequestStep, nil, &step
		}
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	if request.Kind == RequestUnset {
		return Request{}, malformed("request carries no message")
	}
	return request, nil
}

func (protobufFormat) EncodeReply(reply Reply) ([]byte, error) {
	if reply.Action == nil {
		return []byte{}, nil
	}
	return appendSpace(nil, replyAction, *reply.Action), nil
}

func (protobufFormat) DecodeReply(data []byte) (Reply, error) {
	var reply Reply
	err := forEachField(data, func(number protowire.Number, kind protowire.Type, field []byte) error {
		if number != replyAction {
			return nil
		}
		if kind != protowire.BytesType {
			return malformed("action has wire type %d", kind)
		}
		action, err := decodeSpace(field, 0)
		if err != nil {
			return err
		}
		reply.Action = &action
		return nil
	})
	if err != nil {
		return Reply{}, err
	}
	return reply, nil
}

// forEachField walks the top-level fields of a message. For BytesType
// fields the callback receives the payload; for varint and fixed
// fields it receives the raw value bytes.
func forEachField(data []byte, visit func(protowire.Number, protowire.Type, []byte) error) error {
	for len(data) > 0 {
		number, kind, n := protowire.ConsumeTag(data)
		if n < 0 {
			return malformed("field tag: %v", protowire.ParseError(n))
		}
		data = data[n:]

		var field []byte
		if kind == protowire.BytesType {
			payload, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return malformed("field %d: %v", number, protowire.ParseError(m))
			}
			field, n = payload, m
		} else {
			n = protowire.ConsumeFieldValue(number, kind, data)
			if n < 0 {
				return malformed("field %d: %v", number, protowire.ParseError(n))
			}
			field = data[:n]
		}
		if err := visit(number, kind, field); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func varintField(kind protowire.Type, field []byte) (uint64, error) {
	if kind != protowire.VarintType {
		return 0, malformed("expected varint, got wire type %d", kind)
	}
	value, n := protowire.ConsumeVarint(field)
	if n < 0 {
		return 0, malformed("varint: %v", protowire.ParseError(n))
	}
	return value, nil
}

func appendString(data []byte, number protowire.Number, value string) []byte {
	if value == "" {
		return data
	}
	data = protowire.AppendTag(data, number, protowire.BytesType)
	return protowire.AppendString(data, value)
}

func decodeInit(data []byte) (Init, error) {
	var init Init
	err := forEachField(data, func(number protowire.Number, kind protowire.Type, field []byte) error {
		if number != initActionSpace && number != initObservationSpace {
			return nil
		}
		if kind != protowire.BytesType {
			return malformed("init field %d has wire type %d", number, kind)
		}
		if number == initActionSpace {
			init.ActionSpace = string(field)
		} else {
			init.ObservationSpace = string(field)
		}
		return nil
	})
	return init, err
}

func decodeStep(data []byte) (Step, error) {
	var step Step
	err := forEachField(data, func(number protowire.Number, kind protowire.Type, field []byte) error {
		if number < stepObservation || number > stepInfo {
			return nil
		}
		if kind != protowire.BytesType {
			return malformed("step field %d has wire type %d", number, kind)
		}
		value, err := decodeSpace(field, 0)
		if err != nil {
			return err
		}
		switch number {
		case stepObservation:
			step.Observation = value
		case stepReward:
			step.Reward = value
		case stepInfo:
			step.Info = &value
		}
		return nil
	})
	return step, err
}

// appendSpace appends value as embedded message field number.
func appendSpace(data []byte, number protowire.Number, value Space) []byte {
	data = protowire.AppendTag(data, number, protowire.BytesType)
	return protowire.AppendBytes(data, encodeSpace(value))
}

func encodeSpace(value Space) []byte {
	var payload []byte
	switch value.Variant {
	case VariantDiscrete:
		if value.Discrete != 0 {
			payload = protowire.AppendTag(payload, valuesField, protowire.VarintType)
			payload = protowire.AppendVarint(payload, uint64(value.Discrete))
		}
		return wrap(spaceDiscrete, payload)

	case VariantBox:
		if len(value.Box) > 0 {
			var packed []byte
			for _, element := range value.Box {
				packed = protowire.AppendFixed64(packed, math.Float64bits(element))
			}
			payload = protowire.AppendTag(payload, valuesField, protowire.BytesType)
			payload = protowire.AppendBytes(payload, packed)
		}
		return wrap(spaceBox, payload)

	case VariantMultiDiscrete:
		if len(value.MultiDiscrete) > 0 {
			var packed []byte
			for _, element := range value.MultiDiscrete {
				packed = protowire.AppendVarint(packed, uint64(element))
			}
			payload = protowire.AppendTag(payload, valuesField, protowire.BytesType)
			payload = protowire.AppendBytes(payload, packed)
		}
		return wrap(spaceMultiDiscrete, payload)

	case VariantMultiBinary:
		if len(value.MultiBinary) > 0 {
			var packed []byte
			for _, element := range value.MultiBinary {
				packed = protowire.AppendVarint(packed, protowire.EncodeBool(element))
			}
			payload = protowire.AppendTag(payload, valuesField, protowire.BytesType)
			payload = protowire.AppendBytes(payload, packed)
		}
		return wrap(spaceMultiBinary, payload)

	case VariantTuple:
		for _, element := range value.Tuple {
			payload = appendSpace(payload, valuesField, element)
		}
		return wrap(spaceTuple, payload)

	case VariantDict:
		for _, item := range value.Dict {
			var encoded []byte
			encoded = appendString(encoded, itemKey, item.Key)
			encoded = appendSpace(encoded, itemValue, item.Value)
			payload = protowire.AppendTag(payload, valuesField, protowire.BytesType)
			payload = protowire.AppendBytes(payload, encoded)
		}
		return wrap(spaceDict, payload)

	default:
		// An unset Space encodes as an empty message, which the
		// receiving side rejects as carrying no variant.
		return nil
	}
}

func wrap(number protowire.Number, payload []byte) []byte {
	data := protowire.AppendTag(nil, number, protowire.BytesType)
	return protowire.AppendBytes(data, payload)
}

func decodeSpace(data []byte, depth int) (Space, error) {
	if depth > maxDepth {
		return Space{}, malformed("space nesting deeper than %d levels", maxDepth)
	}
	var value Space
	err := forEachField(data, func(number protowire.Number, kind protowire.Type, field []byte) error {
		if number < spaceDiscrete || number > spaceDict {
			return nil
		}
		if kind != protowire.BytesType {
			return malformed("space field %d has wire type %d", number, kind)
		}
		// Oneof semantics: the last variant on the wire wins.
		var err error
		switch number {
		case spaceDiscrete:
			value, err = decodeDiscrete(field)
		case spaceBox:
			value, err = decodeBox(field)
		case spaceMultiDiscrete:
			value, err = decodeMultiDiscrete(field)
		case spaceMultiBinary:
			value, err = decodeMultiBinary(field)
		case spaceTuple:
			value, err = decodeTuple(field, depth)
		case spaceDict:
			value, err = decodeDict(field, depth)
		}
		return err
	})
	if err != nil {
		return Space{}, err
	}
	return value, nil
}

func decodeDiscrete(data []byte) (Space, error) {
	value := Space{Variant: VariantDiscrete}
	err := forEachField(data, func(number protowire.Number, kind protowire.Type, field []byte) error {
		if number != valuesField {
			return nil
		}
		raw, err := varintField(kind, field)
		if err != nil {
			return err
		}
		value.Discrete = int64(raw)
		return nil
	})
	return value, err
}

// repeatedVarints collects a repeated varint field that may appear
// packed, unpacked, or as a mix of both.
func repeatedVarints(data []byte) ([]uint64, error) {
	values := []uint64{}
	err := forEachField(data, func(number protowire.Number, kind protowire.Type, field []byte) error {
		if number != valuesField {
			return nil
		}
		switch kind {
		case protowire.VarintType:
			value, err := varintField(kind, field)
			if err != nil {
				return err
			}
			values = append(values, value)
		case protowire.BytesType:
			for len(field) > 0 {
				value, n := protowire.ConsumeVarint(field)
				if n < 0 {
					return malformed("packed varint: %v", protowire.ParseError(n))
				}
				values = append(values, value)
				field = field[n:]
			}
		default:
			return malformed("repeated varint has wire type %d", kind)
		}
		return nil
	})
	return values, err
}

func decodeBox(data []byte) (Space, error) {
	value := Space{Variant: VariantBox, Box: []float64{}}
	err := forEachField(data, func(number protowire.Number, kind protowire.Type, field []byte) error {
		if number != valuesField {
			return nil
		}
		switch kind {
		case protowire.Fixed64Type:
			bits, n := protowire.ConsumeFixed64(field)
			if n < 0 {
				return malformed("double: %v", protowire.ParseError(n))
			}
			value.Box = append(value.Box, math.Float64frombits(bits))
		case protowire.BytesType:
			if len(field)%8 != 0 {
				return malformed("packed doubles have %d bytes, not a multiple of 8", len(field))
			}
			for len(field) > 0 {
				bits, n := protowire.ConsumeFixed64(field)
				if n < 0 {
					return malformed("packed double: %v", protowire.ParseError(n))
				}
				value.Box = append(value.Box, math.Float64frombits(bits))
				field = field[n:]
			}
		default:
			return malformed("box values have wire type %d", kind)
		}
		return nil
	})
	return value, err
}

func decodeMultiDiscrete(data []byte) (Space, error) {
	raw, err := repeatedVarints(data)
	if err != nil {
		return Space{}, err
	}
	value := Space{Variant: VariantMultiDiscrete, MultiDiscrete: make([]int64, len(raw))}
	for i, element := range raw {
		value.MultiDiscrete[i] = int64(element)
	}
	return value, nil
}

func decodeMultiBinary(data []byte) (Space, error) {
	raw, err := repeatedVarints(data)
	if err != nil {
		return Space{}, err
	}
	value := Space{Variant: VariantMultiBinary, MultiBinary: make([]bool, len(raw))}
	for i, element := range raw {
		value.MultiBinary[i] = protowire.DecodeBool(element)
	}
	return value, nil
}

func decodeTuple(data []byte, depth int) (Space, error) {
	value := Space{Variant: VariantTuple, Tuple: []Space{}}
	err := forEachField(data, func(number protowire.Number, kind protowire.Type, field []byte) error {
		if number != valuesField {
			return nil
		}
		if kind != protowire.BytesType {
			return malformed("tuple element has wire type %d", kind)
		}
		element, err := decodeSpace(field, depth+1)
		if err != nil {
			return err
		}
		value.Tuple = append(value.Tuple, element)
		return nil
	})
	return value, err
}

func decodeDict(data []byte, depth int) (Space, error) {
	value := Space{Variant: VariantDict, Dict: []Item{}}
	err := forEachField(data, func(number protowire.Number, kind protowire.Type, field []byte) error {
		if number != valuesField {
			return nil
		}
		if kind != protowire.BytesType {
			return malformed("dict item has wire type %d", kind)
		}
		var item Item
		err := forEachField(field, func(number protowire.Number, kind protowire.Type, field []byte) error {
			switch number {
			case itemKey:
				if kind != protowire.BytesType {
					return malformed("dict key has wire type %d", kind)
				}
				item.Key = string(field)
			case itemValue:
				if kind != protowire.BytesType {
					return malformed("dict value has wire type %d", kind)
				}
				element, err := decodeSpace(field, depth+1)
				if err != nil {
					return err
				}
				item.Value = element
			}
			return nil
		})
		if err != nil {
			return err
		}
		value.Dict = append(value.Dict, item)
		return nil
	})
	return value, err
}
