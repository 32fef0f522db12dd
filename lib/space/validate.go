// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package space

import (
	"fmt"
	"math"
	"strconv"
)

// MismatchError reports a value that does not have the shape its
// descriptor declares. Path locates the offending node using Go-like
// selectors (".key" for Dict fields, "[i]" for Tuple elements).
type MismatchError struct {
	Path   string
	Reason string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("value does not match descriptor at %s: %s", pathOrRoot(e.Path), e.Reason)
}

// Validate checks that value structurally matches the descriptor: the
// same variant at every level, the same element count for vectors, the
// same length for tuples, and the same key set for dicts. Bounds are
// not checked; see Contains.
func (d Descriptor) Validate(value Value) error {
	return d.match(value, "", false)
}

// Contains reports whether value structurally matches the descriptor
// and every element lies within the declared bounds.
func (d Descriptor) Contains(value Value) bool {
	return d.match(value, "", true) == nil
}

func (d Descriptor) match(value Value, path string, bounded bool) error {
	if value.Kind != d.Kind {
		return &MismatchError{Path: path, Reason: fmt.Sprintf("expected %s, got %s", d.Kind, value.Kind)}
	}

	switch d.Kind {
	case KindDiscrete:
		if bounded && (value.Int < d.Start || value.Int >= d.Start+d.N) {
			return &MismatchError{Path: path, Reason: fmt.Sprintf("%d outside [%d, %d)", value.Int, d.Start, d.Start+d.N)}
		}

	case KindBox:
		size := shapeSize(d.Shape)
		if len(value.Floats) != size {
			return &MismatchError{Path: path, Reason: fmt.Sprintf("Box has %d elements, expected %d", len(value.Floats), size)}
		}
		if bounded {
			for i, element := range value.Floats {
				if math.IsNaN(element) || element < d.Low[i] || element > d.High[i] {
					return &MismatchError{Path: path, Reason: fmt.Sprintf("element %d = %v outside [%v, %v]", i, element, d.Low[i], d.High[i])}
				}
			}
		}

	case KindMultiDiscrete:
		if len(value.Ints) != len(d.Counts) {
			return &MismatchError{Path: path, Reason: fmt.Sprintf("MultiDiscrete has %d elements, expected %d", len(value.Ints), len(d.Counts))}
		}
		if bounded {
			for i, element := range value.Ints {
				if element < 0 || element >= d.Counts[i] {
					return &MismatchError{Path: path, Reason: fmt.Sprintf("element %d = %d outside [0, %d)", i, element, d.Counts[i])}
				}
			}
		}

	case KindMultiBinary:
		if int64(len(value.Bools)) != d.N {
			return &MismatchError{Path: path, Reason: fmt.Sprintf("MultiBinary has %d elements, expected %d", len(value.Bools), d.N)}
		}

	case KindTuple:
		if len(value.Elements) != len(d.Elements) {
			return &MismatchError{Path: path, Reason: fmt.Sprintf("Tuple has %d elements, expected %d", len(value.Elements), len(d.Elements))}
		}
		for i, element := range d.Elements {
			if err := element.match(value.Elements[i], path+"["+strconv.Itoa(i)+"]", bounded); err != nil {
				return err
			}
		}

	case KindDict:
		if len(value.Fields) != len(d.Fields) {
			return &MismatchError{Path: path, Reason: fmt.Sprintf("Dict has keys %v, expected %v", value.Keys(), d.Keys())}
		}
		for _, key := range d.Keys() {
			field, ok := value.Fields[key]
			if !ok {
				return &MismatchError{Path: path, Reason: fmt.Sprintf("Dict is missing key %q", key)}
			}
			if err := d.Fields[key].match(field, path+"."+key, bounded); err != nil {
				return err
			}
		}

	default:
		return &MismatchError{Path: path, Reason: "descriptor has no recognized variant"}
	}
	return nil
}
