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

package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat/combin"
)

// excessSharpe computes the per-column Sharpe ratio of values[rows][col]
// net of the risk-free rate, skipping NaN cells.
func excessSharpe(values [][]float64, rows []int, col int, riskFree float64) float64 {
	var xs []float64
	for _, r := range rows {
		v := values[r][col]
		if !math.IsNaN(v) {
			xs = append(xs, v-riskFree)
		}
	}
	return SharpeRatio(xs)
}

// PBO computes the Probability of Backtest Overfitting of a trial-return
// value matrix (rows are time steps, columns are trials) via combinatorially
// symmetric cross-validation: the rows are split into `partitions` even
// groups, and for every half-and-half combination the in-sample-best column
// is ranked against its peers out of sample. PBO is the share of
// combinations where that rank lands at or below the median; the logit of
// each rank is also returned.
//
// Degenerate inputs (fewer rows than partitions, fewer than two columns, an
// odd partition count) yield (NaN, nil).
func PBO(values [][]float64, riskFree float64, partitions int) (float64, []float64) {
	nRows := len(values)
	if nRows == 0 || partitions < 2 || partitions%2 != 0 || nRows < partitions {
		return math.NaN(), nil
	}
	nCols := len(values[0])
	if nCols < 2 {
		return math.NaN(), nil
	}

	groups := make([][]int, partitions)
	for g := 0; g < partitions; g++ {
		lo := g * nRows / partitions
		hi := (g + 1) * nRows / partitions
		for r := lo; r < hi; r++ {
			groups[g] = append(groups[g], r)
		}
	}

	var logits []float64
	for _, combo := range combin.Combinations(partitions, partitions/2) {
		inComb := make([]bool, partitions)
		for _, g := range combo {
			inComb[g] = true
		}
		var isRows, oosRows []int
		for g := 0; g < partitions; g++ {
			if inComb[g] {
				isRows = append(isRows, groups[g]...)
			} else {
				oosRows = append(oosRows, groups[g]...)
			}
		}

		// Stable argmax of the in-sample Sharpe ratios.
		best := -1
		bestSR := math.Inf(-1)
		for c := 0; c < nCols; c++ {
			sr := excessSharpe(values, isRows, c, riskFree)
			if !math.IsNaN(sr) && sr > bestSR {
				bestSR = sr
				best = c
			}
		}
		if best < 0 {
			continue
		}

		bestOOS := excessSharpe(values, oosRows, best, riskFree)
		if math.IsNaN(bestOOS) {
			continue
		}
		rank, total := 0, 0
		for c := 0; c < nCols; c++ {
			sr := excessSharpe(values, oosRows, c, riskFree)
			if math.IsNaN(sr) {
				continue
			}
			total++
			if sr <= bestOOS {
				rank++
			}
		}
		if total < 2 {
			continue
		}
		omega := float64(rank) / float64(total+1)
		logits = append(logits, math.Log(omega/(1-omega)))
	}
	if len(logits) == 0 {
		return math.NaN(), nil
	}
	below := 0
	for _, l := range logits {
		if l <= 0 {
			below++
		}
	}
	return float64(below) / float64(len(logits)), logits
}
