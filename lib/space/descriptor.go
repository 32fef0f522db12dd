// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package space

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Kind identifies the variant of a Descriptor or Value.
type Kind uint8

const (
	// KindInvalid is the zero Kind. A Descriptor or Value with this
	// kind is unset.
	KindInvalid Kind = iota
	KindDiscrete
	KindBox
	KindMultiDiscrete
	KindMultiBinary
	KindTuple
	KindDict
)

var kindNames = [...]string{
	KindInvalid:       "Invalid",
	KindDiscrete:      "Discrete",
	KindBox:           "Box",
	KindMultiDiscrete: "MultiDiscrete",
	KindMultiBinary:   "MultiBinary",
	KindTuple:         "Tuple",
	KindDict:          "Dict",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Descriptor describes the shape of an action or observation space.
// Only the fields relevant to Kind are populated.
type Descriptor struct {
	Kind Kind

	// N is the number of choices (Discrete) or the number of flags
	// (MultiBinary).
	N int64

	// Start is the smallest Discrete value. Discrete values lie in
	// [Start, Start+N).
	Start int64

	// Shape is the Box shape. The flattened element count is the
	// product of its dimensions.
	Shape []int

	// Low and High hold per-element Box bounds, each of length
	// Size(). Unbounded elements use -Inf and +Inf.
	Low, High []float64

	// Counts holds the number of choices per MultiDiscrete element.
	Counts []int64

	// Elements are the ordered Tuple children.
	Elements []Descriptor

	// Fields are the Dict children. Key order carries no meaning.
	Fields map[string]Descriptor
}

// Discrete returns a descriptor for one integer in [0, n).
func Discrete(n int64) Descriptor {
	return Descriptor{Kind: KindDiscrete, N: n}
}

// Box returns a descriptor for a float vector of the given shape whose
// elements all lie in [low, high]. Use math.Inf for unbounded sides.
func Box(low, high float64, shape ...int) Descriptor {
	size := shapeSize(shape)
	lows := make([]float64, size)
	highs := make([]float64, size)
	for i := range size {
		lows[i] = low
		highs[i] = high
	}
	return Descriptor{Kind: KindBox, Shape: slices.Clone(shape), Low: lows, High: highs}
}

// UnboundedBox returns a Box descriptor with no bounds.
func UnboundedBox(shape ...int) Descriptor {
	return Box(math.Inf(-1), math.Inf(1), shape...)
}

// MultiDiscrete returns a descriptor for an integer vector whose i-th
// element lies in [0, counts[i]).
func MultiDiscrete(counts ...int64) Descriptor {
	return Descriptor{Kind: KindMultiDiscrete, Counts: slices.Clone(counts)}
}

// MultiBinary returns a descriptor for a vector of n booleans.
func MultiBinary(n int64) Descriptor {
	return Descriptor{Kind: KindMultiBinary, N: n}
}

// Tuple returns a descriptor for an ordered sequence of children.
func Tuple(elements ...Descriptor) Descriptor {
	return Descriptor{Kind: KindTuple, Elements: slices.Clone(elements)}
}

// Dict returns a descriptor for a keyed mapping of children.
func Dict(fields map[string]Descriptor) Descriptor {
	copied := make(map[string]Descriptor, len(fields))
	for key, field := range fields {
		copied[key] = field
	}
	return Descriptor{Kind: KindDict, Fields: copied}
}

// IsZero reports whether the descriptor is unset.
func (d Descriptor) IsZero() bool {
	return d.Kind == KindInvalid
}

// Size returns the flattened element count of a leaf descriptor: 1 for
// Discrete, the shape product for Box, the vector length for
// MultiDiscrete and MultiBinary. Containers return their child count.
func (d Descriptor) Size() int {
	switch d.Kind {
	case KindDiscrete:
		return 1
	case KindBox:
		return shapeSize(d.Shape)
	case KindMultiDiscrete:
		return len(d.Counts)
	case KindMultiBinary:
		return int(d.N)
	case KindTuple:
		return len(d.Elements)
	case KindDict:
		return len(d.Fields)
	default:
		return 0
	}
}

// Keys returns the Dict keys in sorted order.
func (d Descriptor) Keys() []string {
	keys := make([]string, 0, len(d.Fields))
	for key := range d.Fields {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Check verifies the descriptor is internally consistent: positive
// cardinalities, Box bounds of the right length with low <= high,
// and the same for every child.
func (d Descriptor) Check() error {
	return d.check("")
}

func (d Descriptor) check(path string) error {
	switch d.Kind {
	case KindDiscrete:
		if d.N <= 0 {
			return fmt.Errorf("%s: Discrete needs n > 0, got %d", pathOrRoot(path), d.N)
		}
	case KindBox:
		if len(d.Shape) == 0 {
			return fmt.Errorf("%s: Box needs a shape", pathOrRoot(path))
		}
		for _, dimension := range d.Shape {
			if dimension <= 0 {
				return fmt.Errorf("%s: Box shape %v has a non-positive dimension", pathOrRoot(path), d.Shape)
			}
		}
		size := shapeSize(d.Shape)
		if len(d.Low) != size || len(d.High) != size {
			return fmt.Errorf("%s: Box bounds have %d/%d elements, shape %v needs %d",
				pathOrRoot(path), len(d.Low), len(d.High), d.Shape, size)
		}
		for i := range size {
			if math.IsNaN(d.Low[i]) || math.IsNaN(d.High[i]) || d.Low[i] > d.High[i] {
				return fmt.Errorf("%s: Box element %d has invalid bounds [%v, %v]", pathOrRoot(path), i, d.Low[i], d.High[i])
			}
		}
	case KindMultiDiscrete:
		if len(d.Counts) == 0 {
			return fmt.Errorf("%s: MultiDiscrete needs at least one count", pathOrRoot(path))
		}
		for i, count := range d.Counts {
			if count <= 0 {
				return fmt.Errorf("%s: MultiDiscrete count %d is %d, must be > 0", pathOrRoot(path), i, count)
			}
		}
	case KindMultiBinary:
		if d.N <= 0 {
			return fmt.Errorf("%s: MultiBinary needs n > 0, got %d", pathOrRoot(path), d.N)
		}
	case KindTuple:
		for i, element := range d.Elements {
			if err := element.check(path + "[" + strconv.Itoa(i) + "]"); err != nil {
				return err
			}
		}
	case KindDict:
		for _, key := range d.Keys() {
			if err := d.Fields[key].check(path + "." + key); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%s: descriptor has no recognized variant", pathOrRoot(path))
	}
	return nil
}

// String returns the canonical text form of the descriptor. The
// result parses back to an equal descriptor.
func (d Descriptor) String() string {
	var builder strings.Builder
	d.write(&builder)
	return builder.String()
}

func (d Descriptor) write(builder *strings.Builder) {
	switch d.Kind {
	case KindDiscrete:
		fmt.Fprintf(builder, "Discrete(%d", d.N)
		if d.Start != 0 {
			fmt.Fprintf(builder, ", start=%d", d.Start)
		}
		builder.WriteByte(')')
	case KindBox:
		shape := formatInts(d.Shape)
		low, lowUniform := uniform(d.Low)
		high, highUniform := uniform(d.High)
		switch {
		case lowUniform && highUniform && math.IsInf(low, -1) && math.IsInf(high, 1):
			fmt.Fprintf(builder, "Box(%s)", shape)
		case lowUniform && highUniform:
			fmt.Fprintf(builder, "Box(%s, %s, %s)", formatFloat(low), formatFloat(high), shape)
		default:
			fmt.Fprintf(builder, "Box(%s, %s, %s)", formatFloats(d.Low), formatFloats(d.High), shape)
		}
	case KindMultiDiscrete:
		fmt.Fprintf(builder, "MultiDiscrete(%s)", formatInt64s(d.Counts))
	case KindMultiBinary:
		fmt.Fprintf(builder, "MultiBinary(%d)", d.N)
	case KindTuple:
		builder.WriteString("Tuple(")
		for i, element := range d.Elements {
			if i > 0 {
				builder.WriteString(", ")
			}
			element.write(builder)
		}
		builder.WriteByte(')')
	case KindDict:
		builder.WriteString("Dict(")
		for i, key := range d.Keys() {
			if i > 0 {
				builder.WriteString(", ")
			}
			builder.WriteString(formatKey(key))
			builder.WriteString(": ")
			d.Fields[key].write(builder)
		}
		builder.WriteByte(')')
	default:
		builder.WriteString("Invalid")
	}
}

func shapeSize(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	size := 1
	for _, dimension := range shape {
		size *= dimension
	}
	return size
}

func pathOrRoot(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}

func uniform(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	for _, value := range values[1:] {
		if value != values[0] {
			return 0, false
		}
	}
	return values[0], true
}

func formatFloat(value float64) string {
	switch {
	case math.IsInf(value, 1):
		return "inf"
	case math.IsInf(value, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(value, 'g', -1, 64)
	}
}

func formatFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = formatFloat(value)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatInts(values []int) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = strconv.Itoa(value)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatInt64s(values []int64) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = strconv.FormatInt(value, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatKey writes bare identifiers as-is and quotes anything else.
func formatKey(key string) string {
	if isIdentifier(key) {
		return key
	}
	return strconv.Quote(key)
}

func isIdentifier(text string) bool {
	if text == "" {
		return false
	}
	for i, r := range text {
		if !isIdentStart(r) && (i == 0 || !isDigit(r)) {
			return false
		}
	}
	return true
}
