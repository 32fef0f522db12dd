// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package space

import (
	"errors"
	"math"
	"testing"
)

func TestValidate(t *testing.T) {
	observation := MustParse("Dict(position: Box(-1, 1, [2]), lane: Discrete(3), flags: Tuple(MultiBinary(2), MultiDiscrete([4, 4])))")

	valid := DictValue(map[string]Value{
		"position": BoxValue(0.5, -0.5),
		"lane":     DiscreteValue(2),
		"flags":    TupleValue(MultiBinaryValue(true, false), MultiDiscreteValue(0, 3)),
	})
	if err := observation.Validate(valid); err != nil {
		t.Fatalf("Validate(valid): %v", err)
	}
	if !observation.Contains(valid) {
		t.Error("Contains(valid) = false")
	}

	tests := []struct {
		name  string
		value Value
		path  string
	}{
		{"wrong root variant", TupleValue(), ""},
		{"missing key", DictValue(map[string]Value{
			"position": BoxValue(0, 0),
			"lane":     DiscreteValue(0),
			"extra":    DiscreteValue(0),
		}), ""},
		{"box arity", DictValue(map[string]Value{
			"position": BoxValue(0),
			"lane":     DiscreteValue(0),
			"flags":    TupleValue(MultiBinaryValue(true, false), MultiDiscreteValue(0, 3)),
		}), ".position"},
		{"tuple arity", DictValue(map[string]Value{
			"position": BoxValue(0, 0),
			"lane":     DiscreteValue(0),
			"flags":    TupleValue(MultiBinaryValue(true, false)),
		}), ".flags"},
		{"nested variant", DictValue(map[string]Value{
			"position": BoxValue(0, 0),
			"lane":     DiscreteValue(0),
			"flags":    TupleValue(MultiBinaryValue(true, false), BoxValue(0, 3)),
		}), ".flags[1]"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := observation.Validate(test.value)
			var mismatch *MismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("Validate error = %v, want *MismatchError", err)
			}
			if mismatch.Path != test.path {
				t.Errorf("Path = %q, want %q", mismatch.Path, test.path)
			}
		})
	}
}

func TestValidateIgnoresBoundsContainsChecksThem(t *testing.T) {
	tests := []struct {
		name       string
		descriptor Descriptor
		value      Value
	}{
		{"discrete above range", Discrete(3), DiscreteValue(3)},
		{"discrete below start", Descriptor{Kind: KindDiscrete, N: 2, Start: 1}, DiscreteValue(0)},
		{"box above high", Box(0, 1, 2), BoxValue(0.5, 1.5)},
		{"box nan", Box(0, 1, 1), BoxValue(math.NaN())},
		{"multidiscrete negative", MultiDiscrete(2, 2), MultiDiscreteValue(-1, 0)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := test.descriptor.Validate(test.value); err != nil {
				t.Errorf("Validate: %v (bounds must not affect structure)", err)
			}
			if test.descriptor.Contains(test.value) {
				t.Error("Contains = true for an out-of-bounds value")
			}
		})
	}
}

func TestCheckRejectsUnsetDescriptor(t *testing.T) {
	if err := (Descriptor{}).Check(); err == nil {
		t.Error("Check on zero descriptor succeeded")
	}
	if err := Tuple(Discrete(2), Descriptor{}).Check(); err == nil {
		t.Error("Check on tuple with unset child succeeded")
	}
}

func TestValueScalar(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  float64
		ok    bool
	}{
		{"discrete", DiscreteValue(4), 4, true},
		{"single box", BoxValue(1.5), 1.5, true},
		{"single multidiscrete", MultiDiscreteValue(7), 7, true},
		{"single multibinary true", MultiBinaryValue(true), 1, true},
		{"single multibinary false", MultiBinaryValue(false), 0, true},
		{"two multibinary", MultiBinaryValue(true, true), 0, false},
		{"empty box", BoxValue(), 0, false},
		{"two box", BoxValue(1, 2), 0, false},
		{"tuple", TupleValue(DiscreteValue(1)), 0, false},
		{"unset", Value{}, 0, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, ok := test.value.Scalar()
			if ok != test.ok || got != test.want {
				t.Errorf("Scalar() = (%v, %v), want (%v, %v)", got, ok, test.want, test.ok)
			}
		})
	}
}
