// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package space

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler draws values from descriptors using a seeded source, so a
// given seed always produces the same sequence of samples.
//
// Box elements are drawn the way gym does it: uniform on bounded
// intervals, standard normal when unbounded on both sides, and a
// shifted exponential when bounded on one side only.
//
// A Sampler is not safe for concurrent use.
type Sampler struct {
	source rand.Source
	random *rand.Rand
}

// NewSampler returns a sampler seeded with seed.
func NewSampler(seed uint64) *Sampler {
	source := rand.NewSource(seed)
	return &Sampler{source: source, random: rand.New(source)}
}

// Sample returns a value that the descriptor Contains. An unset
// descriptor yields an unset value.
func (s *Sampler) Sample(d Descriptor) Value {
	switch d.Kind {
	case KindDiscrete:
		return DiscreteValue(d.Start + s.random.Int63n(d.N))

	case KindBox:
		values := make([]float64, len(d.Low))
		for i := range values {
			values[i] = s.boxElement(d.Low[i], d.High[i])
		}
		return BoxValue(values...)

	case KindMultiDiscrete:
		values := make([]int64, len(d.Counts))
		for i, count := range d.Counts {
			values[i] = s.random.Int63n(count)
		}
		return MultiDiscreteValue(values...)

	case KindMultiBinary:
		values := make([]bool, d.N)
		for i := range values {
			values[i] = s.random.Intn(2) == 1
		}
		return MultiBinaryValue(values...)

	case KindTuple:
		elements := make([]Value, len(d.Elements))
		for i, element := range d.Elements {
			elements[i] = s.Sample(element)
		}
		return TupleValue(elements...)

	case KindDict:
		fields := make(map[string]Value, len(d.Fields))
		// Sorted keys keep the draw order, and so the result,
		// independent of map iteration order.
		for _, key := range d.Keys() {
			fields[key] = s.Sample(d.Fields[key])
		}
		return DictValue(fields)

	default:
		return Value{}
	}
}

func (s *Sampler) boxElement(low, high float64) float64 {
	lowBounded := !math.IsInf(low, -1)
	highBounded := !math.IsInf(high, 1)
	switch {
	case lowBounded && highBounded:
		if low == high {
			return low
		}
		return distuv.Uniform{Min: low, Max: high, Src: s.source}.Rand()
	case lowBounded:
		return low + distuv.Exponential{Rate: 1, Src: s.source}.Rand()
	case highBounded:
		return high - distuv.Exponential{Rate: 1, Src: s.source}.Rand()
	default:
		return distuv.Normal{Mu: 0, Sigma: 1, Src: s.source}.Rand()
	}
}
