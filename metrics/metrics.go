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

// Package metrics implements the performance statistics consumed by the
// overfitting aggregator: Sharpe ratio, the expected-maximum benchmark
// Sharpe ratio, the probabilistic (deflated) Sharpe ratio, and the CSCV
// Probability of Backtest Overfitting.
//
// All functions propagate NaN for degenerate inputs (too few samples, zero
// variance) rather than failing; the aggregator surfaces those chunks as
// missing results.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Euler-Mascheroni constant, used by the expected-maximum approximation.
const eulerGamma = 0.5772156649015329

// SharpeRatio of a return series: mean over sample standard deviation. NaN
// for fewer than two observations, zero variance, or any NaN observation.
func SharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	for _, r := range returns {
		if math.IsNaN(r) {
			return math.NaN()
		}
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 {
		return math.NaN()
	}
	return mean / std
}

// BenchmarkSharpeRatio estimates the Sharpe ratio one should expect from the
// best of N unskilled trials: the expected maximum of N draws from the
// cross-trial Sharpe distribution (False Strategy theorem). NaN entries in
// srs are ignored; fewer than two finite entries yield NaN.
func BenchmarkSharpeRatio(srs []float64) float64 {
	var finite []float64
	for _, sr := range srs {
		if !math.IsNaN(sr) && !math.IsInf(sr, 0) {
			finite = append(finite, sr)
		}
	}
	n := float64(len(finite))
	if n < 2 {
		return math.NaN()
	}
	std := stat.StdDev(finite, nil)
	return std * ((1-eulerGamma)*distuv.UnitNormal.Quantile(1-1/n) +
		eulerGamma*distuv.UnitNormal.Quantile(1-1/(n*math.E)))
}

// Deflator adjusts an observed Sharpe ratio for multiple testing and return
// non-normality. Implementations are swappable per research need; the
// aggregator is not hardwired to one deflation formula.
type Deflator interface {
	// Deflate the observed Sharpe ratio against the benchmark, given the
	// number of observations and the skewness and excess kurtosis of the
	// observed return distribution.
	Deflate(observed, benchmark float64, n int, skew, exKurtosis float64) float64
}

// PSRDeflator is the probabilistic Sharpe ratio of Bailey and Lopez de
// Prado. With TestStatistic set it returns the underlying z statistic
// instead of the probability.
type PSRDeflator struct {
	TestStatistic bool
}

var _ Deflator = PSRDeflator{}

// Deflate implements Deflator.
func (d PSRDeflator) Deflate(observed, benchmark float64, n int, skew, exKurtosis float64) float64 {
	if n < 2 || math.IsNaN(observed) || math.IsNaN(benchmark) ||
		math.IsNaN(skew) || math.IsNaN(exKurtosis) {
		return math.NaN()
	}
	// (kurtosis - 1)/4 with raw kurtosis = excess + 3.
	denom := 1 - skew*observed + (exKurtosis+2)/4*observed*observed
	if denom <= 0 {
		return math.NaN()
	}
	z := (observed - benchmark) * math.Sqrt(float64(n-1)) / math.Sqrt(denom)
	if d.TestStatistic {
		return z
	}
	return distuv.UnitNormal.CDF(z)
}

// Skew of a return series, NaN-guarded.
func Skew(returns []float64) float64 {
	if len(returns) < 2 || stat.Variance(returns, nil) == 0 {
		return math.NaN()
	}
	return stat.Skew(returns, nil)
}

// ExKurtosis of a return series, NaN-guarded.
func ExKurtosis(returns []float64) float64 {
	if len(returns) < 4 || stat.Variance(returns, nil) == 0 {
		return math.NaN()
	}
	return stat.ExKurtosis(returns, nil)
}
