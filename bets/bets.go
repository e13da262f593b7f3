// Copyright 2026 Overfit Lab

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bets converts predicted probabilities into position sizes.
//
// Each event contributes a signed bet m = side * (2*Phi(z) - 1) with
// z = (p - 0.5) / sqrt(p*(1-p)), active from the event date through its
// vertical barrier. The position held at any date is the average of all
// bets active on that date, and 0 where none are.
package bets

import (
	"math"

	"github.com/stockparfait/stockparfait/db"
	"github.com/stockparfait/stockparfait/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// zClamp bounds the probability z-score so that p near 0 or 1 sizes to a
// full (but finite) bet.
const zClamp = 8.0

// size of a single bet given its predicted probability of success.
func size(p float64) float64 {
	if math.IsNaN(p) {
		return math.NaN()
	}
	den := math.Sqrt(p * (1 - p))
	var z float64
	switch {
	case den == 0:
		if p > 0.5 {
			z = zClamp
		} else if p < 0.5 {
			z = -zClamp
		}
	default:
		z = (p - 0.5) / den
		if z > zClamp {
			z = zClamp
		}
		if z < -zClamp {
			z = -zClamp
		}
	}
	return 2*distuv.UnitNormal.CDF(z) - 1
}

// Size computes the per-date position over the full price index. The
// arguments starts, ends, sides and probs are parallel per-event slices:
// the event date, its vertical barrier, the strategy side in {-1, 0, +1},
// and the predicted probability of the bet paying off. Events with NaN
// probability are ignored. Overlapping events are averaged.
func Size(index []db.Date, starts, ends []db.Date, sides, probs []float64) *stats.Timeseries {
	find := func(d db.Date) int { // first index with date >= d
		lo, hi := 0, len(index)
		for lo < hi {
			mid := (lo + hi) / 2
			if index[mid].Before(d) {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		return lo
	}

	sums := make([]float64, len(index))
	counts := make([]float64, len(index))
	for i := range starts {
		if i >= len(sides) || i >= len(probs) || i >= len(ends) {
			break
		}
		m := sides[i] * size(probs[i])
		if math.IsNaN(m) {
			continue
		}
		lo := find(starts[i])
		hi := find(ends[i])
		if hi < len(index) && !ends[i].Before(index[hi]) {
			hi++ // barrier date inclusive
		}
		for j := lo; j < hi && j < len(index); j++ {
			sums[j] += m
			counts[j]++
		}
	}

	data := make([]float64, len(index))
	for j := range data {
		if counts[j] > 0 {
			data[j] = sums[j] / counts[j]
		}
	}
	return stats.NewTimeseries(append([]db.Date(nil), index...), data)
}
