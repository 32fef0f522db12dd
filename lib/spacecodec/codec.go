// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spacecodec

import (
	"strconv"

	"github.com/bureau-foundation/gymnet/lib/space"
	"github.com/bureau-foundation/gymnet/lib/wire"
)

// maxDepth bounds value nesting, matching the descriptor parser.
const maxDepth = 64

// DecodeDescriptor parses the text form of a descriptor received in an
// Init message.
func DecodeDescriptor(code string) (space.Descriptor, error) {
	descriptor, err := space.Parse(code)
	if err != nil {
		return space.Descriptor{}, protocolError("decode descriptor", err, "invalid descriptor")
	}
	return descriptor, nil
}

// ToValue converts a wire tree to a value without checking it against
// a descriptor.
func ToValue(tree wire.Space) (space.Value, error) {
	return toValue(tree, "", 0)
}

func toValue(tree wire.Space, path string, depth int) (space.Value, error) {
	if depth > maxDepth {
		return space.Value{}, protocolError("decode value", nil, "nesting deeper than %d levels", maxDepth)
	}
	switch tree.Variant {
	case wire.VariantDiscrete:
		return space.DiscreteValue(tree.Discrete), nil
	case wire.VariantBox:
		return space.BoxValue(tree.Box...), nil
	case wire.VariantMultiDiscrete:
		return space.MultiDiscreteValue(tree.MultiDiscrete...), nil
	case wire.VariantMultiBinary:
		return space.MultiBinaryValue(tree.MultiBinary...), nil
	case wire.VariantTuple:
		elements := make([]space.Value, len(tree.Tuple))
		for i, element := range tree.Tuple {
			value, err := toValue(element, path+"["+strconv.Itoa(i)+"]", depth+1)
			if err != nil {
				return space.Value{}, err
			}
			elements[i] = value
		}
		return space.TupleValue(elements...), nil
	case wire.VariantDict:
		fields := make(map[string]space.Value, len(tree.Dict))
		for _, item := range tree.Dict {
			if _, duplicate := fields[item.Key]; duplicate {
				return space.Value{}, protocolError("decode value", nil, "duplicate dict key %q at %s", item.Key, pathOrRoot(path))
			}
			value, err := toValue(item.Value, path+"."+item.Key, depth+1)
			if err != nil {
				return space.Value{}, err
			}
			fields[item.Key] = value
		}
		return space.DictValue(fields), nil
	default:
		return space.Value{}, protocolError("decode value", nil, "no recognized variant at %s", pathOrRoot(path))
	}
}

// DecodeValue converts a wire tree and checks that it structurally
// matches descriptor.
func DecodeValue(tree wire.Space, descriptor space.Descriptor) (space.Value, error) {
	value, err := ToValue(tree)
	if err != nil {
		return space.Value{}, err
	}
	if err := descriptor.Validate(value); err != nil {
		return space.Value{}, protocolError("decode value", err, "value does not match %s", descriptor)
	}
	return value, nil
}

// Reward extracts the single scalar a Step message must carry: a
// Discrete, or a Box, MultiDiscrete or MultiBinary with exactly one
// element. A MultiBinary reward counts true as 1.
func Reward(tree wire.Space) (float64, error) {
	value, err := ToValue(tree)
	if err != nil {
		return 0, protocolError("decode reward", err, "invalid reward")
	}
	reward, ok := value.Scalar()
	if !ok {
		return 0, protocolError("decode reward", nil, "reward must be exactly one scalar, got %s", value)
	}
	return reward, nil
}

// Info converts the optional info tree of a Step message. A missing
// info yields the unset value.
func Info(tree *wire.Space) (space.Value, error) {
	if tree == nil {
		return space.Value{}, nil
	}
	value, err := ToValue(*tree)
	if err != nil {
		return space.Value{}, protocolError("decode info", err, "invalid info")
	}
	return value, nil
}

// FromValue converts a value to its wire tree. Dict items are emitted
// in sorted key order so the encoding is deterministic.
func FromValue(value space.Value) (wire.Space, error) {
	return fromValue(value, "")
}

func fromValue(value space.Value, path string) (wire.Space, error) {
	switch value.Kind {
	case space.KindDiscrete:
		return wire.Space{Variant: wire.VariantDiscrete, Discrete: value.Int}, nil
	case space.KindBox:
		return wire.Space{Variant: wire.VariantBox, Box: value.Floats}, nil
	case space.KindMultiDiscrete:
		return wire.Space{Variant: wire.VariantMultiDiscrete, MultiDiscrete: value.Ints}, nil
	case space.KindMultiBinary:
		return wire.Space{Variant: wire.VariantMultiBinary, MultiBinary: value.Bools}, nil
	case space.KindTuple:
		elements := make([]wire.Space, len(value.Elements))
		for i, element := range value.Elements {
			tree, err := fromValue(element, path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return wire.Space{}, err
			}
			elements[i] = tree
		}
		return wire.Space{Variant: wire.VariantTuple, Tuple: elements}, nil
	case space.KindDict:
		keys := value.Keys()
		items := make([]wire.Item, len(keys))
		for i, key := range keys {
			tree, err := fromValue(value.Fields[key], path+"."+key)
			if err != nil {
				return wire.Space{}, err
			}
			items[i] = wire.Item{Key: key, Value: tree}
		}
		return wire.Space{Variant: wire.VariantDict, Dict: items}, nil
	default:
		return wire.Space{}, protocolError("encode value", nil, "no variant set at %s", pathOrRoot(path))
	}
}

func pathOrRoot(path string) string {
	if path == "" {
		return "root"
	}
	return path
}
