// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spacecodec

import (
	"fmt"
	"math"
	"slices"

	"github.com/bureau-foundation/gymnet/lib/space"
	"github.com/bureau-foundation/gymnet/lib/wire"
)

// ActionEncoder turns an agent's action into the wire tree sent to the
// simulator. The descriptor is the action descriptor announced at Init.
// Every encoder must accept a [space.Value] drawn from that descriptor,
// since episode-end actions are sampled rather than chosen by the agent.
type ActionEncoder interface {
	EncodeAction(action any, descriptor space.Descriptor) (wire.Space, error)
}

// Encoder names accepted by EncoderByName.
const (
	EncoderDictBox  = "dict-box"
	EncoderDiscrete = "discrete"
	EncoderValue    = "value"
)

// EncoderByName returns the built-in encoder registered under name.
func EncoderByName(name string) (ActionEncoder, error) {
	switch name {
	case EncoderDictBox:
		return DictBoxEncoder{}, nil
	case EncoderDiscrete:
		return DiscreteEncoder{}, nil
	case EncoderValue:
		return ValueEncoder{}, nil
	default:
		return nil, fmt.Errorf("unknown action encoder %q (known: %s, %s, %s)", name, EncoderDictBox, EncoderDiscrete, EncoderValue)
	}
}

// DefaultActionKey is the dict key DictBoxEncoder uses for an action
// that is not already a mapping. The veinsgym example scenarios read
// their action from this key.
const DefaultActionKey = "example_action"

// DictBoxEncoder sends the action as a dict whose values are boxes.
//
// A mapping (map[string]any, map[string]float64, map[string][]float64,
// or a Dict space.Value) becomes one box per key. Anything else is
// wrapped under Key. Each leaf may be a number, a bool, a numeric
// slice, or a leaf space.Value; it is flattened to float64s.
//
// When the action descriptor is a Dict, the action must supply exactly
// its keys, and Box fields must receive the declared element count.
type DictBoxEncoder struct {
	// Key replaces DefaultActionKey when non-empty.
	Key string
}

func (e DictBoxEncoder) EncodeAction(action any, descriptor space.Descriptor) (wire.Space, error) {
	fields, err := e.fields(action)
	if err != nil {
		return wire.Space{}, err
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	if descriptor.Kind == space.KindDict {
		if !slices.Equal(keys, descriptor.Keys()) {
			return wire.Space{}, protocolError("encode action", nil, "action keys %v do not match descriptor keys %v", keys, descriptor.Keys())
		}
		for _, key := range keys {
			field := descriptor.Fields[key]
			if field.Kind == space.KindBox && len(fields[key]) != field.Size() {
				return wire.Space{}, protocolError("encode action", nil, "action %q has %d elements, descriptor %s needs %d",
					key, len(fields[key]), field, field.Size())
			}
		}
	}

	items := make([]wire.Item, len(keys))
	for i, key := range keys {
		items[i] = wire.Item{Key: key, Value: wire.Space{Variant: wire.VariantBox, Box: fields[key]}}
	}
	return wire.Space{Variant: wire.VariantDict, Dict: items}, nil
}

func (e DictBoxEncoder) fields(action any) (map[string][]float64, error) {
	key := e.Key
	if key == "" {
		key = DefaultActionKey
	}

	fields := make(map[string][]float64)
	add := func(name string, leaf any) error {
		values, err := flatten(leaf)
		if err != nil {
			return protocolError("encode action", err, "action %q", name)
		}
		fields[name] = values
		return nil
	}

	switch typed := action.(type) {
	case map[string]any:
		for name, leaf := range typed {
			if err := add(name, leaf); err != nil {
				return nil, err
			}
		}
	case map[string]float64:
		for name, leaf := range typed {
			fields[name] = []float64{leaf}
		}
	case map[string][]float64:
		for name, leaf := range typed {
			fields[name] = slices.Clone(leaf)
		}
	case space.Value:
		if typed.Kind != space.KindDict {
			return fields, add(key, typed)
		}
		for name, leaf := range typed.Fields {
			if err := add(name, leaf); err != nil {
				return nil, err
			}
		}
	default:
		return fields, add(key, action)
	}
	return fields, nil
}

// flatten reduces a leaf to its float64 elements.
func flatten(leaf any) ([]float64, error) {
	switch typed := leaf.(type) {
	case float64:
		return []float64{typed}, nil
	case float32:
		return []float64{float64(typed)}, nil
	case int:
		return []float64{float64(typed)}, nil
	case int32:
		return []float64{float64(typed)}, nil
	case int64:
		return []float64{float64(typed)}, nil
	case uint32:
		return []float64{float64(typed)}, nil
	case bool:
		return []float64{boolFloat(typed)}, nil
	case []float64:
		return slices.Clone(typed), nil
	case []float32:
		return convert(typed), nil
	case []int:
		return convert(typed), nil
	case []int64:
		return convert(typed), nil
	case []bool:
		values := make([]float64, len(typed))
		for i, flag := range typed {
			values[i] = boolFloat(flag)
		}
		return values, nil
	case space.Value:
		switch typed.Kind {
		case space.KindDiscrete:
			return []float64{float64(typed.Int)}, nil
		case space.KindBox:
			return slices.Clone(typed.Floats), nil
		case space.KindMultiDiscrete:
			return convert(typed.Ints), nil
		case space.KindMultiBinary:
			return flatten(typed.Bools)
		default:
			return nil, fmt.Errorf("%s value is not a leaf", typed.Kind)
		}
	default:
		return nil, fmt.Errorf("unsupported leaf type %T", leaf)
	}
}

func convert[T float32 | int | int64](values []T) []float64 {
	converted := make([]float64, len(values))
	for i, value := range values {
		converted[i] = float64(value)
	}
	return converted
}

func boolFloat(flag bool) float64 {
	if flag {
		return 1
	}
	return 0
}

// DiscreteEncoder sends the action as a single Discrete. The action
// may be any Go integer, an integral float, or a Discrete space.Value.
// When the descriptor is Discrete the action must lie in its range.
type DiscreteEncoder struct{}

func (DiscreteEncoder) EncodeAction(action any, descriptor space.Descriptor) (wire.Space, error) {
	var value int64
	switch typed := action.(type) {
	case int:
		value = int64(typed)
	case int32:
		value = int64(typed)
	case int64:
		value = typed
	case uint32:
		value = int64(typed)
	case float64:
		if typed != math.Trunc(typed) || math.Abs(typed) > 1<<53 {
			return wire.Space{}, protocolError("encode action", nil, "%v is not an integer", typed)
		}
		value = int64(typed)
	case space.Value:
		if typed.Kind != space.KindDiscrete {
			return wire.Space{}, protocolError("encode action", nil, "expected a Discrete value, got %s", typed.Kind)
		}
		value = typed.Int
	default:
		return wire.Space{}, protocolError("encode action", nil, "unsupported discrete action type %T", action)
	}

	if descriptor.Kind == space.KindDiscrete && !descriptor.Contains(space.DiscreteValue(value)) {
		return wire.Space{}, protocolError("encode action", nil, "action %d outside %s", value, descriptor)
	}
	return wire.Space{Variant: wire.VariantDiscrete, Discrete: value}, nil
}

// ValueEncoder sends a space.Value unchanged after checking that it
// structurally matches the descriptor.
type ValueEncoder struct{}

func (ValueEncoder) EncodeAction(action any, descriptor space.Descriptor) (wire.Space, error) {
	value, ok := action.(space.Value)
	if !ok {
		return wire.Space{}, protocolError("encode action", nil, "expected a space.Value, got %T", action)
	}
	if !descriptor.IsZero() {
		if err := descriptor.Validate(value); err != nil {
			return wire.Space{}, protocolError("encode action", err, "action does not match %s", descriptor)
		}
	}
	return FromValue(value)
}
