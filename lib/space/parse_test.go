// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package space

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParseCanonical(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Discrete(2)", "Discrete(2)"},
		{"Discrete(5, start=-2)", "Discrete(5, start=-2)"},
		{"gym.spaces.Discrete(n=3)", "Discrete(3)"},
		{"Box([4])", "Box([4])"},
		{"Box(-1, 1, [4])", "Box(-1, 1, [4])"},
		{"Box(-1.5, 2.25, (2, 3))", "Box(-1.5, 2.25, [2, 3])"},
		{"spaces.Box(low=0.0, high=np.inf, shape=(3,), dtype=np.float32)", "Box(0, inf, [3])"},
		{"Box(low=-inf, high=+inf, shape=[1])", "Box([1])"},
		{"Box([0, 0], [1, 2])", "Box([0, 0], [1, 2], [2])"},
		{"Box(low=[[0, 1], [2, 3]], high=10)", "Box([0, 1, 2, 3], [10, 10, 10, 10], [2, 2])"},
		{"MultiDiscrete([3, 4, 2])", "MultiDiscrete([3, 4, 2])"},
		{"MultiDiscrete(nvec=[5])", "MultiDiscrete([5])"},
		{"MultiBinary(4)", "MultiBinary(4)"},
		{"MultiBinary([2, 3])", "MultiBinary(6)"},
		{"Tuple(Discrete(2), MultiBinary(3))", "Tuple(Discrete(2), MultiBinary(3))"},
		{"Tuple((Discrete(2), Box([1]),))", "Tuple(Discrete(2), Box([1]))"},
		{"Tuple([Discrete(2)])", "Tuple(Discrete(2))"},
		{"Tuple()", "Tuple()"},
		{"Dict(speed: Box([1]), lane: Discrete(3))", "Dict(lane: Discrete(3), speed: Box([1]))"},
		{"Dict(speed=Box([1]))", "Dict(speed: Box([1]))"},
		{`gym.spaces.Dict({"example_action": gym.spaces.Box(-1, 1, (10,)), 'other key': Discrete(2)})`,
			`Dict(example_action: Box(-1, 1, [10]), "other key": Discrete(2))`},
		{"Dict(outer: Tuple(Dict(inner: MultiDiscrete([2]))))", "Dict(outer: Tuple(Dict(inner: MultiDiscrete([2]))))"},
	}
	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			descriptor, err := Parse(test.input)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := descriptor.String(); got != test.want {
				t.Errorf("String() = %q, want %q", got, test.want)
			}

			// The canonical form must parse back to the same descriptor.
			reparsed, err := Parse(descriptor.String())
			if err != nil {
				t.Fatalf("Parse(canonical): %v", err)
			}
			if diff := cmp.Diff(descriptor, reparsed, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("canonical round trip changed descriptor (-first +second):\n%s", diff)
			}
		})
	}
}

func TestParseBoxBounds(t *testing.T) {
	descriptor := MustParse("Box(low=0, high=np.inf, shape=(2,))")
	if descriptor.Kind != KindBox {
		t.Fatalf("Kind = %v, want Box", descriptor.Kind)
	}
	if diff := cmp.Diff([]float64{0, 0}, descriptor.Low); diff != "" {
		t.Errorf("Low (-want +got):\n%s", diff)
	}
	for i, high := range descriptor.High {
		if !math.IsInf(high, 1) {
			t.Errorf("High[%d] = %v, want +Inf", i, high)
		}
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{"empty", "", "expected a space variant"},
		{"unknown variant", "Sphere(3)", "unknown space variant"},
		{"unknown prefix", "torch.Discrete(2)", "unknown space variant"},
		{"code injection", "__import__('os').system('true')", "unknown space variant"},
		{"indented call", "  os.system('true')", "unknown space variant \"os.system\""},
		{"zero discrete", "Discrete(0)", "n > 0"},
		{"fractional discrete", "Discrete(2.5)", "not an integer"},
		{"box without shape", "Box(0, 1)", "needs a shape"},
		{"box bad dimension", "Box([0])", "invalid Box dimension"},
		{"box inverted bounds", "Box(1, 0, [2])", "invalid bounds"},
		{"box bound length", "Box([0, 0, 0], 1, [2])", "shape needs 2"},
		{"box unknown keyword", "Box(shape=[2], colour=1)", "unknown argument"},
		{"ragged list", "Box(low=[[0], [1, 2]], high=3)", "ragged"},
		{"multidiscrete zero", "MultiDiscrete([2, 0])", "must be > 0"},
		{"duplicate dict key", "Dict(a: Discrete(2), a: Discrete(3))", "duplicate Dict key"},
		{"dict missing colon", "Dict({a Discrete(2)})", "expected \":\""},
		{"trailing input", "Discrete(2) Discrete(3)", "after descriptor"},
		{"unterminated", "Dict({'a: Discrete(2)})", "unterminated string"},
		{"bad character", "Discrete(2);", "unexpected character"},
		{"unclosed", "Tuple(Discrete(2)", "expected \")\""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse(test.input)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", test.input)
			}
			var parseError *ParseError
			if !errors.As(err, &parseError) {
				t.Fatalf("error %T is not *ParseError: %v", err, err)
			}
			if !strings.Contains(err.Error(), test.reason) {
				t.Errorf("error %q does not mention %q", err, test.reason)
			}
		})
	}
}

func TestParseRejectsDeepNesting(t *testing.T) {
	input := strings.Repeat("Tuple(", maxDepth+2) + "Discrete(2)" + strings.Repeat(")", maxDepth+2)
	_, err := Parse(input)
	if err == nil || !strings.Contains(err.Error(), "nesting deeper") {
		t.Fatalf("Parse(deep) error = %v, want nesting error", err)
	}
}

func TestFingerprint(t *testing.T) {
	first := Fingerprint(MustParse("Discrete(2)"), MustParse("Dict(a: Box([2]), b: Discrete(3))"))
	reordered := Fingerprint(MustParse("Discrete(2)"), MustParse("Dict(b: Discrete(3), a: Box([2]))"))
	different := Fingerprint(MustParse("Discrete(3)"), MustParse("Dict(a: Box([2]), b: Discrete(3))"))
	swapped := Fingerprint(MustParse("Dict(a: Box([2]), b: Discrete(3))"), MustParse("Discrete(2)"))

	if len(first) != 32 {
		t.Errorf("fingerprint length = %d, want 32 hex characters", len(first))
	}
	if first != reordered {
		t.Errorf("Dict key order changed fingerprint: %s != %s", first, reordered)
	}
	if first == different {
		t.Error("different action descriptors share a fingerprint")
	}
	if first == swapped {
		t.Error("swapping action and observation kept the fingerprint")
	}
}
