// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package space

import (
	"slices"
	"strconv"
	"strings"
)

// Value carries concrete data shaped like a Descriptor. Only the field
// matching Kind is populated.
type Value struct {
	Kind Kind

	// Int is the Discrete value.
	Int int64

	// Floats are the flattened Box elements.
	Floats []float64

	// Ints are the MultiDiscrete elements.
	Ints []int64

	// Bools are the MultiBinary elements.
	Bools []bool

	// Elements are the ordered Tuple children.
	Elements []Value

	// Fields are the Dict children.
	Fields map[string]Value
}

// DiscreteValue returns a Discrete value.
func DiscreteValue(value int64) Value {
	return Value{Kind: KindDiscrete, Int: value}
}

// BoxValue returns a Box value holding the given elements.
func BoxValue(values ...float64) Value {
	if values == nil {
		values = []float64{}
	}
	return Value{Kind: KindBox, Floats: values}
}

// MultiDiscreteValue returns a MultiDiscrete value.
func MultiDiscreteValue(values ...int64) Value {
	if values == nil {
		values = []int64{}
	}
	return Value{Kind: KindMultiDiscrete, Ints: values}
}

// MultiBinaryValue returns a MultiBinary value.
func MultiBinaryValue(values ...bool) Value {
	if values == nil {
		values = []bool{}
	}
	return Value{Kind: KindMultiBinary, Bools: values}
}

// TupleValue returns a Tuple value.
func TupleValue(elements ...Value) Value {
	if elements == nil {
		elements = []Value{}
	}
	return Value{Kind: KindTuple, Elements: elements}
}

// DictValue returns a Dict value.
func DictValue(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{Kind: KindDict, Fields: fields}
}

// IsZero reports whether the value is unset.
func (v Value) IsZero() bool {
	return v.Kind == KindInvalid
}

// Keys returns the Dict keys in sorted order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.Fields))
	for key := range v.Fields {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of leaf elements (vectors) or children
// (containers). Discrete values have length 1.
func (v Value) Len() int {
	switch v.Kind {
	case KindDiscrete:
		return 1
	case KindBox:
		return len(v.Floats)
	case KindMultiDiscrete:
		return len(v.Ints)
	case KindMultiBinary:
		return len(v.Bools)
	case KindTuple:
		return len(v.Elements)
	case KindDict:
		return len(v.Fields)
	default:
		return 0
	}
}

// Scalar returns the single number carried by a Discrete value or a
// one-element Box, MultiDiscrete or MultiBinary value (true is 1). The
// second result is false for anything that is not exactly one scalar.
func (v Value) Scalar() (float64, bool) {
	switch v.Kind {
	case KindDiscrete:
		return float64(v.Int), true
	case KindBox:
		if len(v.Floats) == 1 {
			return v.Floats[0], true
		}
	case KindMultiDiscrete:
		if len(v.Ints) == 1 {
			return float64(v.Ints[0]), true
		}
	case KindMultiBinary:
		if len(v.Bools) == 1 {
			if v.Bools[0] {
				return 1, true
			}
			return 0, true
		}
	}
	return 0, false
}

// String renders the value for logs and error messages.
func (v Value) String() string {
	var builder strings.Builder
	v.write(&builder)
	return builder.String()
}

func (v Value) write(builder *strings.Builder) {
	switch v.Kind {
	case KindDiscrete:
		builder.WriteString(strconv.FormatInt(v.Int, 10))
	case KindBox:
		builder.WriteString(formatFloats(v.Floats))
	case KindMultiDiscrete:
		builder.WriteString(formatInt64s(v.Ints))
	case KindMultiBinary:
		builder.WriteByte('[')
		for i, flag := range v.Bools {
			if i > 0 {
				builder.WriteString(", ")
			}
			if flag {
				builder.WriteByte('1')
			} else {
				builder.WriteByte('0')
			}
		}
		builder.WriteByte(']')
	case KindTuple:
		builder.WriteByte('(')
		for i, element := range v.Elements {
			if i > 0 {
				builder.WriteString(", ")
			}
			element.write(builder)
		}
		builder.WriteByte(')')
	case KindDict:
		builder.WriteByte('{')
		for i, key := range v.Keys() {
			if i > 0 {
				builder.WriteString(", ")
			}
			builder.WriteString(formatKey(key))
			builder.WriteString(": ")
			v.Fields[key].write(builder)
		}
		builder.WriteByte('}')
	default:
		builder.WriteString("<unset>")
	}
}
